package tilestore

import (
	"errors"

	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/storage"
)

// Error taxonomy. Every failure returned by the package wraps exactly one
// of these sentinels; check with errors.Is.
var (
	// ErrSchema marks invalid dimension/attribute/schema definitions,
	// rejected at construction and never persisted.
	ErrSchema = schema.ErrSchema

	// ErrStorage marks I/O failures and missing or corrupt fragments.
	// The array is left in its last-known-good state.
	ErrStorage = storage.ErrStorage

	// ErrQuery marks invalid query input (bad subarray, unbound or
	// mis-sized buffer, layout violation), rejected before any side
	// effect.
	ErrQuery = errors.New("tilestore: invalid query")

	// ErrBufferOverflow is returned when a read result exceeds a bound
	// buffer's capacity. The query stays incomplete and can be
	// resubmitted with the same or larger buffers to continue.
	ErrBufferOverflow = errors.New("tilestore: result exceeds buffer capacity")
)
