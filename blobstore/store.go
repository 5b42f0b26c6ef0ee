package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for named immutable byte blobs. The engine
// needs only create/put/read/list/delete semantics; any medium offering
// those primitives (filesystem, object store) is sufficient.
//
// Put must publish atomically: a reader either sees the whole blob or no
// blob at all.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Create creates a new writable blob. The blob becomes visible on
	// Close, not before.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a write-once handle to a new blob.
type WritableBlob interface {
	io.Writer

	// Sync flushes buffered data to the underlying medium.
	Sync() error

	// Close finishes the write and publishes the blob.
	Close() error
}

// ReadAll reads the full contents of a blob.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	data := make([]byte, b.Size())
	if len(data) == 0 {
		return data, nil
	}
	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data[:n], nil
}
