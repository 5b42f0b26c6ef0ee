package tilestore

import (
	"github.com/hupe1980/tilestore/blobstore"
	"github.com/hupe1980/tilestore/storage"
)

// Option configures a Context.
type Option func(*contextConfig)

type contextConfig struct {
	store             blobstore.Store
	logger            *Logger
	compression       storage.Compression
	decodeConcurrency int
}

// WithBlobStore sets the blob store arrays are persisted through.
// Defaults to a LocalStore rooted at the current directory.
func WithBlobStore(store blobstore.Store) Option {
	return func(c *contextConfig) {
		c.store = store
	}
}

// WithLogger sets the logger. Defaults to a text logger at info level.
func WithLogger(logger *Logger) Option {
	return func(c *contextConfig) {
		c.logger = logger
	}
}

// WithCompression sets the tile compression for write queries.
// Defaults to LZ4.
func WithCompression(c storage.Compression) Option {
	return func(cfg *contextConfig) {
		cfg.compression = c
	}
}

// WithDecodeConcurrency bounds the number of tiles decoded in parallel
// during a read. Defaults to GOMAXPROCS.
func WithDecodeConcurrency(n int) Option {
	return func(c *contextConfig) {
		c.decodeConcurrency = n
	}
}
