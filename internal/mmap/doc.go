// Package mmap maps table files read-only into memory for the local blob
// store.
//
// Unix platforms use mmap(2) with random-access advice; Windows uses
// CreateFileMapping/MapViewOfFile. A Mapping is
// safe for concurrent reads. Slices returned by Bytes must not be used
// after Close.
package mmap
