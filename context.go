package tilestore

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/hupe1980/tilestore/blobstore"
	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/storage"
	"github.com/hupe1980/tilestore/tiling"
)

// ObjectType classifies a name in the store.
type ObjectType uint8

const (
	// ObjectInvalid means no array exists under the name.
	ObjectInvalid ObjectType = iota
	// ObjectArray means the name holds a created array.
	ObjectArray
)

// OpenMode is the mode an array handle is opened in.
type OpenMode uint8

const (
	// ModeRead opens an array for read queries, snapshotting the
	// committed fragments at open time.
	ModeRead OpenMode = iota + 1
	// ModeWrite opens an array for write queries.
	ModeWrite
)

// String returns the string representation of the OpenMode.
func (m OpenMode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "invalid"
	}
}

// Context is the engine's explicit process state: the blob store, the
// storage manager and shared configuration. Multiple independent contexts
// may coexist in one process. Safe for concurrent use; Close is
// idempotent.
type Context struct {
	store       blobstore.Store
	manager     *storage.Manager
	logger      *Logger
	compression storage.Compression
	decodeConc  int
	closed      atomic.Bool
}

// NewContext creates an engine context.
func NewContext(opts ...Option) (*Context, error) {
	cfg := contextConfig{
		compression:       storage.CompressionLZ4,
		decodeConcurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = blobstore.NewLocalStore(".")
	}
	if cfg.logger == nil {
		cfg.logger = NewLogger(nil)
	}
	if cfg.decodeConcurrency <= 0 {
		cfg.decodeConcurrency = runtime.GOMAXPROCS(0)
	}
	return &Context{
		store:       cfg.store,
		manager:     storage.NewManager(cfg.store),
		logger:      cfg.logger,
		compression: cfg.compression,
		decodeConc:  cfg.decodeConcurrency,
	}, nil
}

// Close tears the context down. Open array handles remain usable for
// their own lifetime; new operations on the context fail.
func (c *Context) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *Context) check() error {
	if c.closed.Load() {
		return fmt.Errorf("%w: context is closed", ErrQuery)
	}
	return nil
}

// CreateArray persists a new array under the given name, bound to the
// schema. The schema is validated and immutable from here on.
func (c *Context) CreateArray(ctx context.Context, name string, s *schema.ArraySchema) error {
	if err := c.check(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: array name must not be empty", ErrQuery)
	}
	if s == nil {
		return fmt.Errorf("%w: schema must not be nil", ErrSchema)
	}
	if err := s.Validate(); err != nil {
		c.logger.LogCreateArray(ctx, name, err)
		return err
	}
	err := c.manager.CreateArray(ctx, name, s)
	c.logger.LogCreateArray(ctx, name, err)
	return err
}

// ObjectType reports what exists under the name.
func (c *Context) ObjectType(ctx context.Context, name string) (ObjectType, error) {
	if err := c.check(); err != nil {
		return ObjectInvalid, err
	}
	exists, err := c.manager.ArrayExists(ctx, name)
	if err != nil {
		return ObjectInvalid, err
	}
	if exists {
		return ObjectArray, nil
	}
	return ObjectInvalid, nil
}

// OpenArray opens an array handle in the given mode. Read handles
// snapshot the committed fragment list at open time, so concurrent
// writers never affect an open reader.
func (c *Context) OpenArray(ctx context.Context, name string, mode OpenMode) (*Array, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("%w: invalid open mode", ErrQuery)
	}
	s, err := c.manager.LoadSchema(ctx, name)
	if err != nil {
		return nil, err
	}

	a := &Array{
		ctx:    c,
		name:   name,
		schema: s,
		grid:   tiling.NewGrid(s),
		mode:   mode,
	}
	if mode == ModeRead {
		frags, err := c.manager.ListFragments(ctx, name)
		if err != nil {
			return nil, err
		}
		a.fragments = frags
	}
	return a, nil
}
