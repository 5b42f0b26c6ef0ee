// Package tiling maps coordinate tuples onto the physical tile grid.
//
// A Grid is derived from a domain plus the schema's tile and cell orders.
// It provides the deterministic, total-order mapping from a coordinate
// tuple to (tile id, in-tile rank) that both the write and read paths
// rely on, and enumerates the minimal candidate tile set for a subarray.
package tiling

import (
	"sort"

	"github.com/hupe1980/tilestore/schema"
)

// Grid is the tiling of one domain. Immutable and safe for concurrent use.
type Grid struct {
	dims       []schema.Dimension
	tileCounts []int64
	cellOrder  schema.Order
	tileOrder  schema.Order
}

// NewGrid builds the grid for a validated schema.
func NewGrid(s *schema.ArraySchema) *Grid {
	return &Grid{
		dims:       s.Domain.Dimensions,
		tileCounts: s.Domain.TileCounts(),
		cellOrder:  s.CellOrder,
		tileOrder:  s.TileOrder,
	}
}

// NDim returns the number of dimensions.
func (g *Grid) NDim() int {
	return len(g.dims)
}

// tileIndex returns the per-dimension tile indices of a coordinate tuple.
func (g *Grid) tileIndex(coords []int64, out []int64) []int64 {
	if out == nil {
		out = make([]int64, len(g.dims))
	}
	for i, d := range g.dims {
		out[i] = (coords[i] - d.Lo) / d.TileExtent
	}
	return out
}

// encode linearizes a multi-index over the given per-dimension sizes.
// Row-major varies the last dimension fastest, col-major the first.
func encode(idx, sizes []int64, order schema.Order) uint64 {
	var id uint64
	switch order {
	case schema.ColMajor:
		for i := len(idx) - 1; i >= 0; i-- {
			id = id*uint64(sizes[i]) + uint64(idx[i])
		}
	default: // row-major
		for i := 0; i < len(idx); i++ {
			id = id*uint64(sizes[i]) + uint64(idx[i])
		}
	}
	return id
}

// decode inverts encode into out.
func decode(id uint64, sizes []int64, order schema.Order, out []int64) {
	switch order {
	case schema.ColMajor:
		for i := 0; i < len(sizes); i++ {
			out[i] = int64(id % uint64(sizes[i]))
			id /= uint64(sizes[i])
		}
	default:
		for i := len(sizes) - 1; i >= 0; i-- {
			out[i] = int64(id % uint64(sizes[i]))
			id /= uint64(sizes[i])
		}
	}
}

// TileID returns the tile id of the tile containing coords, encoded in
// tile order over the grid of per-dimension tile counts.
func (g *Grid) TileID(coords []int64) uint64 {
	idx := g.tileIndex(coords, nil)
	return encode(idx, g.tileCounts, g.tileOrder)
}

// TileIndex returns the per-dimension tile indices of the tile with the
// given id.
func (g *Grid) TileIndex(id uint64) []int64 {
	idx := make([]int64, len(g.dims))
	decode(id, g.tileCounts, g.tileOrder, idx)
	return idx
}

// TileShape returns the per-dimension cell extents of the tile with the
// given per-dimension indices. Tiles at the upper domain edge may be
// remainder tiles smaller than the declared extent.
func (g *Grid) TileShape(idx []int64) []int64 {
	shape := make([]int64, len(g.dims))
	for i, d := range g.dims {
		start := idx[i] * d.TileExtent
		rem := d.Extent() - start
		if rem > d.TileExtent {
			rem = d.TileExtent
		}
		shape[i] = rem
	}
	return shape
}

// TileSubarray returns the [lo, hi] range pairs covered by the tile with
// the given per-dimension indices.
func (g *Grid) TileSubarray(idx []int64) []int64 {
	sub := make([]int64, 0, 2*len(g.dims))
	shape := g.TileShape(idx)
	for i, d := range g.dims {
		lo := d.Lo + idx[i]*d.TileExtent
		sub = append(sub, lo, lo+shape[i]-1)
	}
	return sub
}

// TileVolume returns the cell count of the tile with the given id.
func (g *Grid) TileVolume(id uint64) uint64 {
	shape := g.TileShape(g.TileIndex(id))
	vol := uint64(1)
	for _, s := range shape {
		vol *= uint64(s)
	}
	return vol
}

// CellRank returns the rank of coords within its tile, encoded in cell
// order over the tile's shape.
func (g *Grid) CellRank(coords []int64) uint64 {
	idx := g.tileIndex(coords, nil)
	shape := g.TileShape(idx)
	off := make([]int64, len(g.dims))
	for i, d := range g.dims {
		off[i] = (coords[i] - d.Lo) - idx[i]*d.TileExtent
	}
	return encode(off, shape, g.cellOrder)
}

// CellCoords inverts CellRank for the tile with the given id.
func (g *Grid) CellCoords(tileID, rank uint64) []int64 {
	idx := g.TileIndex(tileID)
	shape := g.TileShape(idx)
	off := make([]int64, len(g.dims))
	decode(rank, shape, g.cellOrder, off)
	coords := make([]int64, len(g.dims))
	for i, d := range g.dims {
		coords[i] = d.Lo + idx[i]*d.TileExtent + off[i]
	}
	return coords
}

// Less is the global cell order: tile id major (tile order), then in-tile
// rank (cell order). It is a total order over the domain.
func (g *Grid) Less(a, b []int64) bool {
	ta, tb := g.TileID(a), g.TileID(b)
	if ta != tb {
		return ta < tb
	}
	return g.CellRank(a) < g.CellRank(b)
}

// OrderLess compares two coordinate tuples in a plain row- or col-major
// traversal of the domain, ignoring tiling. Used to lay out read results
// in the layout the caller asked for.
func OrderLess(a, b []int64, order schema.Order) bool {
	switch order {
	case schema.ColMajor:
		for i := len(a) - 1; i >= 0; i-- {
			if a[i] != b[i] {
				return a[i] < b[i]
			}
		}
	default:
		for i := 0; i < len(a); i++ {
			if a[i] != b[i] {
				return a[i] < b[i]
			}
		}
	}
	return false
}

// TileRange returns the minimal candidate set of tile ids whose tiles can
// intersect the subarray, sorted ascending. The set is exact for the tile
// grid: every returned tile overlaps the subarray's bounding rectangle.
func (g *Grid) TileRange(subarray []int64) []uint64 {
	n := len(g.dims)
	loIdx := make([]int64, n)
	hiIdx := make([]int64, n)
	total := 1
	for i, d := range g.dims {
		loIdx[i] = (subarray[2*i] - d.Lo) / d.TileExtent
		hiIdx[i] = (subarray[2*i+1] - d.Lo) / d.TileExtent
		total *= int(hiIdx[i] - loIdx[i] + 1)
	}

	ids := make([]uint64, 0, total)
	idx := make([]int64, n)
	copy(idx, loIdx)
	for {
		ids = append(ids, encode(idx, g.tileCounts, g.tileOrder))
		// Advance the multi-index, last dimension fastest.
		i := n - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] <= hiIdx[i] {
				break
			}
			idx[i] = loIdx[i]
		}
		if i < 0 {
			break
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}
