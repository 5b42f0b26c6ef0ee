package tilestore

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/storage"
	"github.com/hupe1980/tilestore/tiling"
)

// writeCell is one input cell routed through the tiling component.
type writeCell struct {
	coords []int64
	tileID uint64
	rank   uint64
	idx    int // position in the source buffers
}

// submitWrite runs the write path: validate buffers, partition cells by
// tile, sort within tiles by cell order, emit one tile per (field, tile)
// into a new fragment and publish it atomically.
func (q *Query) submitWrite(ctx context.Context) error {
	if q.status != StatusInitialized {
		return fmt.Errorf("%w: write queries are single-shot", ErrQuery)
	}
	s := q.array.schema

	var (
		cells []writeCell
		err   error
	)
	if s.Kind == schema.KindDense {
		cells, err = q.denseWriteCells()
	} else {
		cells, err = q.sparseWriteCells()
	}
	if err != nil {
		// Validation failure: no side effect, caller may fix and retry.
		return err
	}

	frag, tiles, err := q.emitFragment(ctx, cells)
	if err != nil {
		q.status = StatusFailed
		q.array.ctx.logger.LogWrite(ctx, q.array.name, "", 0, 0, err)
		return err
	}

	for _, b := range q.buffers {
		b.used = len(b.data)
	}
	q.status = StatusCompleted
	q.array.ctx.logger.LogWrite(ctx, q.array.name, frag, tiles, len(cells), nil)
	return nil
}

// sparseWriteCells decodes and validates the coordinates buffer and the
// per-attribute buffers of a sparse write.
func (q *Query) sparseWriteCells() ([]writeCell, error) {
	s := q.array.schema
	dom := s.Domain

	cb, ok := q.buffers[CoordsField]
	if !ok {
		return nil, fmt.Errorf("%w: sparse write requires a %s buffer", ErrQuery, CoordsField)
	}
	tupleSize := dom.CoordTupleSize()
	if len(cb.data)%tupleSize != 0 {
		return nil, fmt.Errorf("%w: coordinates buffer is not a whole number of tuples", ErrQuery)
	}
	n := len(cb.data) / tupleSize
	if n == 0 {
		return nil, fmt.Errorf("%w: write has no cells", ErrQuery)
	}
	if err := q.checkAttrBuffers(n); err != nil {
		return nil, err
	}

	cells := make([]writeCell, n)
	off := 0
	for i := 0; i < n; i++ {
		coords := make([]int64, dom.NDim())
		for d, dim := range dom.Dimensions {
			coords[d] = dim.Type.DecodeInt64(cb.data[off:])
			off += dim.Type.Size()
		}
		if !dom.Contains(coords) {
			return nil, fmt.Errorf("%w: coordinate %v outside domain", ErrQuery, coords)
		}
		cells[i] = writeCell{
			coords: coords,
			tileID: q.array.grid.TileID(coords),
			rank:   q.array.grid.CellRank(coords),
			idx:    i,
		}
	}

	// Declared-order layouts are a caller contract; the check is a single
	// linear pass, so violations are rejected instead of trusted.
	if q.layout != LayoutUnordered {
		ord := q.layout.order()
		for i := 1; i < n; i++ {
			if tiling.OrderLess(cells[i].coords, cells[i-1].coords, ord) {
				return nil, fmt.Errorf("%w: cells are not in %s order", ErrQuery, q.layout)
			}
		}
	}
	return cells, nil
}

// denseWriteCells synthesizes coordinates for a full-domain dense write in
// the query layout order and validates the attribute buffers.
func (q *Query) denseWriteCells() ([]writeCell, error) {
	dom := q.array.schema.Domain
	vol, err := dom.Volume()
	if err != nil {
		return nil, err
	}
	if _, ok := q.buffers[CoordsField]; ok {
		return nil, fmt.Errorf("%w: dense writes take no coordinates buffer", ErrQuery)
	}
	if err := q.checkAttrBuffers(int(vol)); err != nil {
		return nil, err
	}

	cells := make([]writeCell, 0, vol)
	idx := 0
	tiling.ForEachCoord(dom.FullRange(), q.layout.order(), func(coords []int64) bool {
		c := append([]int64(nil), coords...)
		cells = append(cells, writeCell{
			coords: c,
			tileID: q.array.grid.TileID(c),
			rank:   q.array.grid.CellRank(c),
			idx:    idx,
		})
		idx++
		return true
	})
	return cells, nil
}

// checkAttrBuffers requires every declared attribute to be bound with a
// buffer holding exactly n cells.
func (q *Query) checkAttrBuffers(n int) error {
	for _, attr := range q.array.schema.Attributes {
		b, ok := q.buffers[attr.Name]
		if !ok {
			return fmt.Errorf("%w: attribute %q has no bound buffer", ErrQuery, attr.Name)
		}
		if len(b.data) != n*attr.Type.Size() {
			return fmt.Errorf("%w: attribute %q buffer holds %d bytes, want %d cells of %d bytes",
				ErrQuery, attr.Name, len(b.data), n, attr.Type.Size())
		}
	}
	return nil
}

// emitFragment groups cells by tile, orders each tile by cell order and
// writes one tile per (field, tile) into a new fragment. Returns the
// fragment id and tile count.
func (q *Query) emitFragment(ctx context.Context, cells []writeCell) (string, int, error) {
	s := q.array.schema
	dom := s.Domain
	dense := s.Kind == schema.KindDense

	byTile := make(map[uint64][]writeCell)
	for _, c := range cells {
		byTile[c.tileID] = append(byTile[c.tileID], c)
	}
	tileIDs := make([]uint64, 0, len(byTile))
	for id := range byTile {
		tileIDs = append(tileIDs, id)
	}
	sort.Slice(tileIDs, func(i, j int) bool { return tileIDs[i] < tileIDs[j] })

	var subregion []int64
	if dense {
		subregion = dom.FullRange()
	}
	w := q.array.ctx.manager.NewFragmentWriter(q.array.name, dense, subregion, q.array.ctx.compression)

	for _, tileID := range tileIDs {
		group := byTile[tileID]
		// Cell order within a tile; the later input wins between
		// duplicate coordinates in one write.
		sort.SliceStable(group, func(i, j int) bool { return group[i].rank < group[j].rank })
		if !dense {
			deduped := group[:0]
			for i, c := range group {
				if i > 0 && c.rank == deduped[len(deduped)-1].rank {
					deduped[len(deduped)-1] = c
					continue
				}
				deduped = append(deduped, c)
			}
			group = deduped
		}

		if err := q.writeTileGroup(ctx, w, tileID, group); err != nil {
			w.Abort(ctx)
			return "", 0, err
		}
	}

	meta, err := w.Finalize(ctx)
	if err != nil {
		return "", 0, err
	}
	return meta.ID, len(tileIDs), nil
}

// writeTileGroup emits the coordinate tile (sparse) and one attribute
// tile per attribute for a single tile id.
func (q *Query) writeTileGroup(ctx context.Context, w *storage.FragmentWriter, tileID uint64, group []writeCell) error {
	s := q.array.schema
	dom := s.Domain
	dense := s.Kind == schema.KindDense

	if dense {
		count := q.array.grid.TileVolume(tileID)
		for _, attr := range s.Attributes {
			src := q.buffers[attr.Name].data
			size := attr.Type.Size()
			buf := make([]byte, int(count)*size)
			for _, c := range group {
				copy(buf[int(c.rank)*size:], src[c.idx*size:(c.idx+1)*size])
			}
			if err := w.WriteAttrTile(ctx, attr.Name, attr.Type, tileID, buf, uint32(count)); err != nil {
				return err
			}
		}
		return nil
	}

	tupleSize := dom.CoordTupleSize()
	coordBytes := make([]byte, len(group)*tupleSize)
	off := 0
	for _, c := range group {
		for d, dim := range dom.Dimensions {
			dim.Type.PutInt64(coordBytes[off:], c.coords[d])
			off += dim.Type.Size()
		}
	}
	if err := w.WriteCoordTile(ctx, tileID, coordBytes, uint32(len(group))); err != nil {
		return err
	}
	for _, attr := range s.Attributes {
		src := q.buffers[attr.Name].data
		size := attr.Type.Size()
		buf := make([]byte, len(group)*size)
		for i, c := range group {
			copy(buf[i*size:], src[c.idx*size:(c.idx+1)*size])
		}
		if err := w.WriteAttrTile(ctx, attr.Name, attr.Type, tileID, buf, uint32(len(group))); err != nil {
			return err
		}
	}
	return nil
}
