package tilestore

import (
	"context"
	"fmt"

	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/storage"
	"github.com/hupe1980/tilestore/tiling"
)

// Array is an open handle on a persisted array. Handles are cheap;
// multiple handles may reference the same persisted object. A handle is
// not safe for concurrent use by multiple goroutines.
type Array struct {
	ctx    *Context
	name   string
	schema *schema.ArraySchema
	grid   *tiling.Grid
	mode   OpenMode

	// fragments is the snapshot taken at open time (read mode only).
	fragments []*storage.FragmentMeta

	closed bool
}

// Name returns the array name.
func (a *Array) Name() string {
	return a.name
}

// Schema returns the array's immutable schema.
func (a *Array) Schema() *schema.ArraySchema {
	return a.schema
}

// Mode returns the open mode.
func (a *Array) Mode() OpenMode {
	return a.mode
}

// Close releases the handle. Idempotent; queries created from the handle
// must not be submitted afterwards.
func (a *Array) Close() error {
	a.closed = true
	return nil
}

func (a *Array) check(mode OpenMode) error {
	if a.closed {
		return fmt.Errorf("%w: array is closed", ErrQuery)
	}
	if a.mode != mode {
		return fmt.Errorf("%w: array %q is open for %s", ErrQuery, a.name, a.mode)
	}
	return nil
}

// fieldCellSize returns the bytes one cell of the field occupies in
// buffers: the attribute's element size, or the coordinate tuple size for
// the reserved coordinates field.
func (a *Array) fieldCellSize(field string) (int, error) {
	if field == CoordsField {
		return a.schema.Domain.CoordTupleSize(), nil
	}
	attr, ok := a.schema.Attribute(field)
	if !ok {
		return 0, fmt.Errorf("%w: unknown field %q", ErrQuery, field)
	}
	return attr.Type.Size(), nil
}

// MaxBufferSize returns a conservative upper bound on the bytes a read of
// the subarray can produce for the field. Dense arrays get the exact
// byte count; sparse arrays an upper bound from per-tile cell counts in
// fragment metadata, which never underestimates. The array must be open
// for reading. A nil subarray means the full domain.
func (a *Array) MaxBufferSize(ctx context.Context, field string, subarray []int64) (uint64, error) {
	if err := a.check(ModeRead); err != nil {
		return 0, err
	}
	cellSize, err := a.fieldCellSize(field)
	if err != nil {
		return 0, err
	}
	if subarray == nil {
		subarray = a.schema.Domain.FullRange()
	} else if !a.schema.Domain.ContainsRange(subarray) {
		return 0, fmt.Errorf("%w: subarray outside domain", ErrQuery)
	}

	if a.schema.Kind == schema.KindDense {
		return tiling.SubarrayVolume(subarray) * uint64(cellSize), nil
	}

	var cells uint64
	candidates := a.grid.TileRange(subarray)
	for _, frag := range a.fragments {
		for _, tileID := range candidates {
			cells += uint64(frag.CellsInTile(tileID))
		}
	}
	return cells * uint64(cellSize), nil
}

// Query creates a query of the given type on the array. The query type
// must match the open mode.
func (a *Array) Query(qt QueryType) (*Query, error) {
	if a.closed {
		return nil, fmt.Errorf("%w: array is closed", ErrQuery)
	}
	switch qt {
	case QueryRead:
		if err := a.check(ModeRead); err != nil {
			return nil, err
		}
	case QueryWrite:
		if err := a.check(ModeWrite); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: invalid query type", ErrQuery)
	}
	return &Query{
		array:   a,
		qtype:   qt,
		layout:  LayoutRowMajor,
		buffers: make(map[string]*buffer),
		status:  StatusInitialized,
	}, nil
}
