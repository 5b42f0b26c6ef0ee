package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/tilestore/schema"
)

// FragmentWriter stages the tiles of one write query and commits them as
// a new fragment. Tiles are written to the store as they are staged; the
// fragment becomes visible only when Finalize publishes the meta blob.
//
// Not safe for concurrent use. Exactly one of Finalize or Abort must be
// called.
type FragmentWriter struct {
	m         *Manager
	array     string
	id        string
	createdAt int64
	comp      Compression
	dense     bool
	subregion []int64

	tileCells map[uint64]uint32
	written   []string
	done      bool
}

// NewFragmentWriter starts a fragment for an array. For dense fragments,
// subregion records the written region as [lo, hi] pairs; sparse
// fragments pass nil.
func (m *Manager) NewFragmentWriter(array string, dense bool, subregion []int64, comp Compression) *FragmentWriter {
	id, createdAt := m.nextFragmentID()
	return &FragmentWriter{
		m:         m,
		array:     array,
		id:        id,
		createdAt: createdAt,
		comp:      comp,
		dense:     dense,
		subregion: append([]int64(nil), subregion...),
		tileCells: make(map[uint64]uint32),
	}
}

// ID returns the fragment id under construction.
func (w *FragmentWriter) ID() string {
	return w.id
}

// WriteAttrTile stages one attribute tile. cells holds the raw contiguous
// cell values; count is the cell count. All attributes of one tile must
// stage the same count.
func (w *FragmentWriter) WriteAttrTile(ctx context.Context, attr string, t schema.Datatype, tileID uint64, cells []byte, count uint32) error {
	if err := w.checkCount(tileID, count); err != nil {
		return err
	}
	return w.writeTile(ctx, attrTileBlobName(w.array, w.id, attr, tileID), t, cells, count)
}

// WriteCoordTile stages the coordinate tile of a sparse fragment. data
// holds contiguous coordinate tuples in the domain's declared widths.
func (w *FragmentWriter) WriteCoordTile(ctx context.Context, tileID uint64, data []byte, count uint32) error {
	if err := w.checkCount(tileID, count); err != nil {
		return err
	}
	return w.writeTile(ctx, coordTileBlobName(w.array, w.id, tileID), schema.TypeInvalid, data, count)
}

func (w *FragmentWriter) checkCount(tileID uint64, count uint32) error {
	if w.done {
		return fmt.Errorf("%w: fragment %s already finalized", ErrStorage, w.id)
	}
	if prev, ok := w.tileCells[tileID]; ok {
		if prev != count {
			return fmt.Errorf("%w: tile %d cell count mismatch: %d vs %d", ErrStorage, tileID, prev, count)
		}
	} else {
		w.tileCells[tileID] = count
	}
	return nil
}

func (w *FragmentWriter) writeTile(ctx context.Context, name string, t schema.Datatype, cells []byte, count uint32) error {
	blob, err := EncodeTile(t, w.comp, cells, count)
	if err != nil {
		return err
	}
	if err := w.m.store.Put(ctx, name, blob); err != nil {
		return fmt.Errorf("%w: write tile %q: %v", ErrStorage, name, err)
	}
	w.written = append(w.written, name)
	return nil
}

// Finalize publishes the fragment meta, making the fragment atomically
// visible. On failure the staged tiles are cleaned up best-effort and
// the fragment never becomes visible.
func (w *FragmentWriter) Finalize(ctx context.Context) (*FragmentMeta, error) {
	if w.done {
		return nil, fmt.Errorf("%w: fragment %s already finalized", ErrStorage, w.id)
	}
	w.done = true

	meta := &FragmentMeta{
		ID:        w.id,
		CreatedAt: w.createdAt,
		Dense:     w.dense,
		Subregion: w.subregion,
	}
	bitmap := roaring64.New()
	var total uint64
	for id, cells := range w.tileCells {
		meta.Tiles = append(meta.Tiles, TileInfo{ID: id, Cells: cells})
		bitmap.Add(id)
		total += uint64(cells)
	}
	sort.Slice(meta.Tiles, func(i, j int) bool { return meta.Tiles[i].ID < meta.Tiles[j].ID })
	meta.TotalCells = total

	bm, err := bitmap.MarshalBinary()
	if err != nil {
		w.cleanup(ctx)
		return nil, fmt.Errorf("%w: marshal tile bitmap: %v", ErrStorage, err)
	}
	meta.TileBitmap = bm
	meta.bitmap = bitmap

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		w.cleanup(ctx)
		return nil, fmt.Errorf("%w: marshal fragment meta: %v", ErrStorage, err)
	}
	if err := w.m.store.Put(ctx, metaBlobName(w.array, w.id), data); err != nil {
		w.cleanup(ctx)
		return nil, fmt.Errorf("%w: publish fragment %s: %v", ErrStorage, w.id, err)
	}
	return meta, nil
}

// Abort discards the staged tiles. Safe to call on an empty writer.
func (w *FragmentWriter) Abort(ctx context.Context) {
	if w.done {
		return
	}
	w.done = true
	w.cleanup(ctx)
}

func (w *FragmentWriter) cleanup(ctx context.Context) {
	for _, name := range w.written {
		_ = w.m.store.Delete(ctx, name)
	}
}

// unmarshalMeta decodes a fragment meta blob. The tile bitmap is decoded
// here so the meta can be shared across goroutines without further
// synchronization.
func unmarshalMeta(data []byte) (*FragmentMeta, error) {
	var meta FragmentMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("fragment meta missing id")
	}
	meta.decodeBitmap()
	return &meta, nil
}
