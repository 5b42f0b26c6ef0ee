package tiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tilestore/schema"
)

func testSchema(t *testing.T, cellOrder, tileOrder schema.Order) *schema.ArraySchema {
	t.Helper()
	d1, err := schema.NewDimension("rows", schema.TypeInt32, 1, 4, 2)
	require.NoError(t, err)
	d2, err := schema.NewDimension("cols", schema.TypeInt32, 1, 4, 2)
	require.NoError(t, err)
	dom, err := schema.NewDomain(d1, d2)
	require.NoError(t, err)
	attr, err := schema.NewAttribute("a", schema.TypeInt32)
	require.NoError(t, err)
	s, err := schema.New(schema.KindSparse, dom, []schema.Attribute{attr}, cellOrder, tileOrder)
	require.NoError(t, err)
	return s
}

func TestTileIDRowMajor(t *testing.T) {
	g := NewGrid(testSchema(t, schema.RowMajor, schema.RowMajor))

	// 2x2 tile grid; row-major ids: (0,0)=0 (0,1)=1 (1,0)=2 (1,1)=3
	tests := []struct {
		coords []int64
		tileID uint64
	}{
		{[]int64{1, 1}, 0},
		{[]int64{2, 2}, 0},
		{[]int64{1, 3}, 1},
		{[]int64{3, 1}, 2},
		{[]int64{4, 4}, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tileID, g.TileID(tt.coords), "coords %v", tt.coords)
	}
}

func TestTileIDColMajor(t *testing.T) {
	g := NewGrid(testSchema(t, schema.RowMajor, schema.ColMajor))

	// Col-major varies the first dimension fastest: (0,0)=0 (1,0)=1
	// (0,1)=2 (1,1)=3.
	assert.Equal(t, uint64(0), g.TileID([]int64{1, 1}))
	assert.Equal(t, uint64(1), g.TileID([]int64{3, 1}))
	assert.Equal(t, uint64(2), g.TileID([]int64{1, 3}))
	assert.Equal(t, uint64(3), g.TileID([]int64{3, 3}))
}

func TestCellRank(t *testing.T) {
	g := NewGrid(testSchema(t, schema.RowMajor, schema.RowMajor))

	// Within the 2x2 tile at origin, row-major ranks:
	// (1,1)=0 (1,2)=1 (2,1)=2 (2,2)=3
	assert.Equal(t, uint64(0), g.CellRank([]int64{1, 1}))
	assert.Equal(t, uint64(1), g.CellRank([]int64{1, 2}))
	assert.Equal(t, uint64(2), g.CellRank([]int64{2, 1}))
	assert.Equal(t, uint64(3), g.CellRank([]int64{2, 2}))

	gc := NewGrid(testSchema(t, schema.ColMajor, schema.RowMajor))
	assert.Equal(t, uint64(0), gc.CellRank([]int64{1, 1}))
	assert.Equal(t, uint64(1), gc.CellRank([]int64{2, 1}))
	assert.Equal(t, uint64(2), gc.CellRank([]int64{1, 2}))
	assert.Equal(t, uint64(3), gc.CellRank([]int64{2, 2}))
}

func TestCellCoordsInverts(t *testing.T) {
	g := NewGrid(testSchema(t, schema.RowMajor, schema.RowMajor))

	ForEachCoord([]int64{1, 4, 1, 4}, schema.RowMajor, func(coords []int64) bool {
		tileID := g.TileID(coords)
		rank := g.CellRank(coords)
		got := g.CellCoords(tileID, rank)
		assert.Equal(t, coords, got)
		return true
	})
}

func TestRemainderTiles(t *testing.T) {
	d, err := schema.NewDimension("d", schema.TypeInt32, 1, 5, 2)
	require.NoError(t, err)
	dom, err := schema.NewDomain(d)
	require.NoError(t, err)
	attr, err := schema.NewAttribute("a", schema.TypeInt32)
	require.NoError(t, err)
	s, err := schema.New(schema.KindDense, dom, []schema.Attribute{attr}, schema.RowMajor, schema.RowMajor)
	require.NoError(t, err)

	g := NewGrid(s)
	assert.Equal(t, []int64{2}, g.TileShape([]int64{0}))
	assert.Equal(t, []int64{1}, g.TileShape([]int64{2})) // remainder tile
	assert.Equal(t, uint64(2), g.TileVolume(0))
	assert.Equal(t, uint64(1), g.TileVolume(2))
	assert.Equal(t, []int64{5, 5}, g.TileSubarray([]int64{2}))

	// Ranks stay dense inside the remainder tile.
	assert.Equal(t, uint64(2), g.TileID([]int64{5}))
	assert.Equal(t, uint64(0), g.CellRank([]int64{5}))
}

func TestTileRange(t *testing.T) {
	g := NewGrid(testSchema(t, schema.RowMajor, schema.RowMajor))

	tests := []struct {
		name     string
		subarray []int64
		want     []uint64
	}{
		{"FullDomain", []int64{1, 4, 1, 4}, []uint64{0, 1, 2, 3}},
		{"SingleTile", []int64{1, 2, 1, 2}, []uint64{0}},
		{"Straddling", []int64{2, 3, 2, 3}, []uint64{0, 1, 2, 3}},
		{"RightColumn", []int64{1, 4, 3, 4}, []uint64{1, 3}},
		{"SingleCell", []int64{4, 4, 1, 1}, []uint64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.TileRange(tt.subarray))
		})
	}
}

func TestGlobalOrderLess(t *testing.T) {
	g := NewGrid(testSchema(t, schema.RowMajor, schema.RowMajor))

	// (2,2) is in tile 0, (1,3) in tile 1: tile order dominates.
	assert.True(t, g.Less([]int64{2, 2}, []int64{1, 3}))
	assert.False(t, g.Less([]int64{1, 3}, []int64{2, 2}))
	// Same tile: cell order decides.
	assert.True(t, g.Less([]int64{1, 2}, []int64{2, 1}))
}

func TestOrderLess(t *testing.T) {
	assert.True(t, OrderLess([]int64{1, 2}, []int64{1, 3}, schema.RowMajor))
	assert.True(t, OrderLess([]int64{1, 9}, []int64{2, 1}, schema.RowMajor))
	assert.True(t, OrderLess([]int64{9, 1}, []int64{1, 2}, schema.ColMajor))
	assert.False(t, OrderLess([]int64{1, 1}, []int64{1, 1}, schema.RowMajor))
}

func TestSubarrayHelpers(t *testing.T) {
	assert.Equal(t, uint64(6), SubarrayVolume([]int64{1, 2, 2, 4}))
	assert.True(t, SubarrayContains([]int64{1, 2, 2, 4}, []int64{2, 3}))
	assert.False(t, SubarrayContains([]int64{1, 2, 2, 4}, []int64{1, 1}))

	got, ok := SubarrayIntersect([]int64{1, 3, 1, 3}, []int64{2, 4, 3, 4})
	require.True(t, ok)
	assert.Equal(t, []int64{2, 3, 3, 3}, got)

	_, ok = SubarrayIntersect([]int64{1, 2, 1, 2}, []int64{3, 4, 1, 2})
	assert.False(t, ok)
}

func TestForEachCoordOrder(t *testing.T) {
	var rowMajor [][]int64
	ForEachCoord([]int64{1, 2, 1, 2}, schema.RowMajor, func(c []int64) bool {
		rowMajor = append(rowMajor, append([]int64(nil), c...))
		return true
	})
	assert.Equal(t, [][]int64{{1, 1}, {1, 2}, {2, 1}, {2, 2}}, rowMajor)

	var colMajor [][]int64
	ForEachCoord([]int64{1, 2, 1, 2}, schema.ColMajor, func(c []int64) bool {
		colMajor = append(colMajor, append([]int64(nil), c...))
		return true
	})
	assert.Equal(t, [][]int64{{1, 1}, {2, 1}, {1, 2}, {2, 2}}, colMajor)
}
