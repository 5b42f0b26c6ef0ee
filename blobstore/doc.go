// Package blobstore provides the byte-blob abstraction the storage layer
// persists fragments through, with in-memory, local filesystem and object
// store backends.
package blobstore
