// Package blobstore abstracts the storage that holds persisted histograms.
//
// Every table file and CURRENT pointer written by the persistence package
// goes through a BlobStore. Implementations must be safe for concurrent use.
//
// Built-in implementations:
//
//   - MemoryStore: in-process map, used by tests and scratch histograms
//   - LocalStore: local filesystem with mmap-backed reads
//   - CachingStore: block cache in front of any remote store
//   - s3.Store, s3.ExpressStore, s3.DDBCommitStore: Amazon S3
//   - minio.Store: MinIO and S3-compatible servers
//
// Remote backends should implement Blob.ReadRange so table pages can be
// fetched without reading the whole file.
package blobstore
