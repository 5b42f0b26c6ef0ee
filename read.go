package tilestore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tilestore/schema"
	"github.com/hupe1980/tilestore/storage"
	"github.com/hupe1980/tilestore/tiling"
)

// readCell is one materialized result cell. Attribute values alias the
// decoded tile buffers.
type readCell struct {
	coords []int64
	values map[string][]byte
}

// readResult is the fully merged, ordered result of a read, kept on the
// query so an overflowed submit can resume from its cursor.
type readResult struct {
	cells []readCell
}

// decodeTask is one (fragment, tile) pair to fetch and decode.
type decodeTask struct {
	fragIdx int
	frag    *storage.FragmentMeta
	tileID  uint64
}

// decodedTile holds one decoded tile's cells for the bound attributes.
type decodedTile struct {
	count  uint32
	coords []byte // sparse coordinate tuples
	attrs  map[string][]byte
}

// submitRead runs the read path: enumerate candidate tiles across all
// fragments, decode them in parallel, filter to the subarray, resolve
// overwrites newest-fragment-wins, order by the requested layout and copy
// into the bound buffers up to their capacity.
func (q *Query) submitRead(ctx context.Context) error {
	if q.status == StatusCompleted || q.status == StatusFailed {
		return fmt.Errorf("%w: query is %s", ErrQuery, q.status)
	}
	if len(q.buffers) == 0 {
		return fmt.Errorf("%w: read has no bound buffers", ErrQuery)
	}

	if q.result == nil {
		res, err := q.buildReadResult(ctx)
		if err != nil {
			if ctx.Err() == nil {
				q.status = StatusFailed
			}
			q.array.ctx.logger.LogRead(ctx, q.array.name, 0, q.status, err)
			return err
		}
		q.result = res
		q.cursor = 0
	}

	n, err := q.copyOut()
	q.array.ctx.logger.LogRead(ctx, q.array.name, n, q.status, err)
	return err
}

// copyOut copies as many whole cells as every bound buffer can hold,
// starting at the cursor, and updates the per-buffer used sizes.
func (q *Query) copyOut() (int, error) {
	remaining := len(q.result.cells) - q.cursor

	n := remaining
	for field, b := range q.buffers {
		cellSize, err := q.array.fieldCellSize(field)
		if err != nil {
			return 0, err
		}
		if fit := len(b.data) / cellSize; fit < n {
			n = fit
		}
	}

	// Zero progress would loop forever under the resubmit contract, so a
	// buffer set that cannot hold one cell is rejected distinctly. The
	// query stays incomplete; the caller may rebind larger buffers.
	if n == 0 && remaining > 0 {
		for _, b := range q.buffers {
			b.used = 0
		}
		q.status = StatusIncomplete
		return 0, fmt.Errorf("%w: bound buffers cannot hold a single cell (%d remain)", ErrQuery, remaining)
	}

	dom := q.array.schema.Domain
	for field, b := range q.buffers {
		cellSize, _ := q.array.fieldCellSize(field)
		if field == CoordsField {
			off := 0
			for _, c := range q.result.cells[q.cursor : q.cursor+n] {
				for d, dim := range dom.Dimensions {
					dim.Type.PutInt64(b.data[off:], c.coords[d])
					off += dim.Type.Size()
				}
			}
		} else {
			for i, c := range q.result.cells[q.cursor : q.cursor+n] {
				copy(b.data[i*cellSize:(i+1)*cellSize], c.values[field])
			}
		}
		b.used = n * cellSize
	}

	q.cursor += n
	if q.cursor < len(q.result.cells) {
		q.status = StatusIncomplete
		return n, fmt.Errorf("%w: %d of %d cells remain", ErrBufferOverflow,
			len(q.result.cells)-q.cursor, len(q.result.cells))
	}
	q.status = StatusCompleted
	return n, nil
}

// buildReadResult materializes the merged, ordered result set.
func (q *Query) buildReadResult(ctx context.Context) (*readResult, error) {
	s := q.array.schema
	sub := q.subarray
	if sub == nil {
		sub = s.Domain.FullRange()
	}

	boundAttrs := make([]string, 0, len(q.buffers))
	for field := range q.buffers {
		if field != CoordsField {
			boundAttrs = append(boundAttrs, field)
		}
	}
	sort.Strings(boundAttrs)

	tasks := q.candidateTasks(sub)
	decoded, err := q.decodeTiles(ctx, tasks, boundAttrs)
	if err != nil {
		return nil, err
	}

	merged := q.mergeCells(tasks, decoded, sub, boundAttrs)

	if s.Kind == schema.KindDense {
		return q.materializeDense(merged, sub, boundAttrs), nil
	}

	cells := make([]readCell, 0, len(merged))
	for _, c := range merged {
		cells = append(cells, c)
	}
	ord := q.layout.order()
	sort.Slice(cells, func(i, j int) bool {
		return tiling.OrderLess(cells[i].coords, cells[j].coords, ord)
	})
	return &readResult{cells: cells}, nil
}

// candidateTasks pairs every fragment with the candidate tiles it holds,
// in fragment commit order (oldest first).
func (q *Query) candidateTasks(sub []int64) []decodeTask {
	candidates := q.array.grid.TileRange(sub)
	var tasks []decodeTask
	for fi, frag := range q.array.fragments {
		for _, tileID := range candidates {
			if frag.HasTile(tileID) {
				tasks = append(tasks, decodeTask{fragIdx: fi, frag: frag, tileID: tileID})
			}
		}
	}
	return tasks
}

// decodeTiles fetches and decodes all candidate tiles, fanning out over
// tile ids; results keep task order so the merge stays deterministic.
func (q *Query) decodeTiles(ctx context.Context, tasks []decodeTask, boundAttrs []string) ([]*decodedTile, error) {
	s := q.array.schema
	m := q.array.ctx.manager
	sparse := s.Kind == schema.KindSparse

	decoded := make([]*decodedTile, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.array.ctx.decodeConc)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			dt := &decodedTile{attrs: make(map[string][]byte, len(boundAttrs))}

			if sparse {
				coords, count, err := m.ReadCoordTile(gctx, q.array.name, task.frag, task.tileID)
				if err != nil {
					return err
				}
				dt.coords = coords
				dt.count = count
			} else {
				dt.count = task.frag.CellsInTile(task.tileID)
			}

			for _, attr := range boundAttrs {
				a, _ := s.Attribute(attr)
				cells, count, err := m.ReadAttrTile(gctx, q.array.name, task.frag, attr, task.tileID)
				if err != nil {
					return err
				}
				if count != dt.count || len(cells) != int(count)*a.Type.Size() {
					return fmt.Errorf("%w: tile %d of fragment %s has inconsistent cell count",
						ErrStorage, task.tileID, task.frag.ID)
				}
				dt.attrs[attr] = cells
			}
			decoded[i] = dt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decoded, nil
}

// mergeCells walks the decoded tiles in fragment commit order and keeps,
// per coordinate, the newest fragment's value.
func (q *Query) mergeCells(tasks []decodeTask, decoded []*decodedTile, sub []int64, boundAttrs []string) map[string]readCell {
	s := q.array.schema
	dom := s.Domain
	merged := make(map[string]readCell)

	for i, task := range tasks {
		dt := decoded[i]
		if s.Kind == schema.KindSparse {
			off := 0
			for c := uint32(0); c < dt.count; c++ {
				coords := make([]int64, dom.NDim())
				for d, dim := range dom.Dimensions {
					coords[d] = dim.Type.DecodeInt64(dt.coords[off:])
					off += dim.Type.Size()
				}
				if !tiling.SubarrayContains(sub, coords) {
					continue
				}
				merged[coordKey(coords)] = q.cellAt(dt, coords, c, boundAttrs)
			}
		} else {
			for rank := uint32(0); rank < dt.count; rank++ {
				coords := q.array.grid.CellCoords(task.tileID, uint64(rank))
				if !tiling.SubarrayContains(sub, coords) {
					continue
				}
				if task.frag.Subregion != nil && !tiling.SubarrayContains(task.frag.Subregion, coords) {
					continue
				}
				merged[coordKey(coords)] = q.cellAt(dt, coords, rank, boundAttrs)
			}
		}
	}
	return merged
}

func (q *Query) cellAt(dt *decodedTile, coords []int64, i uint32, boundAttrs []string) readCell {
	s := q.array.schema
	values := make(map[string][]byte, len(boundAttrs))
	for _, attr := range boundAttrs {
		a, _ := s.Attribute(attr)
		size := a.Type.Size()
		values[attr] = dt.attrs[attr][int(i)*size : int(i+1)*size]
	}
	return readCell{coords: coords, values: values}
}

// materializeDense expands the merged cells to the full subarray in
// layout order, substituting the zero fill value for cells no fragment
// covers.
func (q *Query) materializeDense(merged map[string]readCell, sub []int64, boundAttrs []string) *readResult {
	s := q.array.schema
	fill := make(map[string][]byte, len(boundAttrs))
	for _, attr := range boundAttrs {
		a, _ := s.Attribute(attr)
		fill[attr] = make([]byte, a.Type.Size())
	}

	cells := make([]readCell, 0, tiling.SubarrayVolume(sub))
	tiling.ForEachCoord(sub, q.layout.order(), func(coords []int64) bool {
		c := append([]int64(nil), coords...)
		if cell, ok := merged[coordKey(c)]; ok {
			cells = append(cells, cell)
		} else {
			cells = append(cells, readCell{coords: c, values: fill})
		}
		return true
	})
	return &readResult{cells: cells}
}

// coordKey is a map key for a coordinate tuple.
func coordKey(coords []int64) string {
	buf := make([]byte, 8*len(coords))
	for i, c := range coords {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(c))
	}
	return string(buf)
}
