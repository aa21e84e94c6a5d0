// Package cache provides an LRU cache for immutable byte blocks.
//
// Two key spaces share one cache: decompressed table pages, keyed by table
// blob and page index, and raw blob blocks fetched by the caching blob store,
// keyed by blob name and block offset. Memory held by the cache is charged to
// an optional resource.Controller.
package cache
