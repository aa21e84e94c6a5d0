// Package persistence stores histograms as generations of paged tables in a
// blobstore.BlobStore.
//
// A histogram named "runs/2024" is laid out as
//
//	runs/2024/CURRENT                  generation id of the committed state
//	runs/2024/<generation>/binning.tbl
//	runs/2024/<generation>/content.tbl
//
// Writers create a fresh generation and switch CURRENT with a single Put, so
// readers observe either the old or the new state. Tables are split into
// pages of a fixed number of rows; each page may be LZ4- or zstd-compressed
// and carries a CRC32. Decompressed pages are cached in a byte-bounded LRU
// shared by all tables of a Store.
//
// Only one writer per name may exist in a process (see Store.Acquire).
package persistence
