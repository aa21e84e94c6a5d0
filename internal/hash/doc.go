// Package hash provides the CRC32-Castagnoli checksum S3 uses to validate
// uploads. Table files use CRC32-IEEE from the persistence package.
package hash
