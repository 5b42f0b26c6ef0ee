// Package tilestore is an embedded storage and query engine for dense and
// sparse multidimensional arrays.
//
// An array is defined by an immutable schema: an ordered domain of
// dimensions, one or more attributes and a tiling scheme. Writes append
// immutable fragments of tiles; reads slice a hyper-rectangle (subarray)
// out of the union of all fragments, with later fragments superseding
// earlier ones at overlapping coordinates.
//
// All persistence goes through the blobstore abstraction, so arrays can
// live on the local filesystem, in memory or on an object store.
package tilestore
