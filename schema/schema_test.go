package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDim(t *testing.T, name string, lo, hi, extent int64) Dimension {
	t.Helper()
	d, err := NewDimension(name, TypeInt32, lo, hi, extent)
	require.NoError(t, err)
	return d
}

func TestDimensionValidate(t *testing.T) {
	tests := []struct {
		name    string
		dim     Dimension
		wantErr bool
	}{
		{"Valid", Dimension{Name: "rows", Type: TypeInt32, Lo: 1, Hi: 4, TileExtent: 4}, false},
		{"EmptyDomain", Dimension{Name: "rows", Type: TypeInt32, Lo: 5, Hi: 4, TileExtent: 1}, true},
		{"ZeroExtent", Dimension{Name: "rows", Type: TypeInt32, Lo: 1, Hi: 4, TileExtent: 0}, true},
		{"NegativeExtent", Dimension{Name: "rows", Type: TypeInt32, Lo: 1, Hi: 4, TileExtent: -2}, true},
		{"ExtentTooLarge", Dimension{Name: "rows", Type: TypeInt32, Lo: 1, Hi: 4, TileExtent: 5}, true},
		{"TypeOverflow", Dimension{Name: "rows", Type: TypeInt8, Lo: 0, Hi: 300, TileExtent: 10}, true},
		{"FloatDimension", Dimension{Name: "rows", Type: TypeFloat32, Lo: 1, Hi: 4, TileExtent: 2}, true},
		{"EmptyName", Dimension{Name: "", Type: TypeInt32, Lo: 1, Hi: 4, TileExtent: 2}, true},
		{"SlashInName", Dimension{Name: "a/b", Type: TypeInt32, Lo: 1, Hi: 4, TileExtent: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dim.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSchema)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDimensionTileCount(t *testing.T) {
	d := mustDim(t, "d", 1, 5, 2)
	assert.Equal(t, int64(3), d.TileCount()) // last tile is a remainder
	d = mustDim(t, "d", 1, 4, 4)
	assert.Equal(t, int64(1), d.TileCount())
}

func TestDomainValidate(t *testing.T) {
	t.Run("NoDimensions", func(t *testing.T) {
		_, err := NewDomain()
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("DuplicateNames", func(t *testing.T) {
		_, err := NewDomain(mustDim(t, "x", 1, 4, 2), mustDim(t, "x", 1, 4, 2))
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("Valid", func(t *testing.T) {
		dom, err := NewDomain(mustDim(t, "rows", 1, 4, 2), mustDim(t, "cols", 1, 4, 2))
		require.NoError(t, err)
		assert.Equal(t, 2, dom.NDim())
		assert.Equal(t, []int64{2, 2}, dom.TileCounts())
		assert.Equal(t, 8, dom.CoordTupleSize())

		vol, err := dom.Volume()
		require.NoError(t, err)
		assert.Equal(t, uint64(16), vol)
	})
}

func TestDomainVolumeOverflow(t *testing.T) {
	big, err := NewDimension("big", TypeInt64, 0, 1<<40, 1<<20)
	require.NoError(t, err)

	dom, err := NewDomain(big, withName(t, big, "big2"), withName(t, big, "big3"))
	require.NoError(t, err)

	_, err = dom.Volume()
	assert.ErrorIs(t, err, ErrSchema)
}

func withName(t *testing.T, d Dimension, name string) Dimension {
	t.Helper()
	d.Name = name
	return d
}

func TestDomainContains(t *testing.T) {
	dom, err := NewDomain(mustDim(t, "rows", 1, 4, 2), mustDim(t, "cols", 1, 4, 2))
	require.NoError(t, err)

	assert.True(t, dom.Contains([]int64{1, 1}))
	assert.True(t, dom.Contains([]int64{4, 4}))
	assert.False(t, dom.Contains([]int64{0, 1}))
	assert.False(t, dom.Contains([]int64{1, 5}))
	assert.False(t, dom.Contains([]int64{1}))

	assert.True(t, dom.ContainsRange([]int64{1, 2, 2, 4}))
	assert.False(t, dom.ContainsRange([]int64{2, 1, 2, 4})) // lo > hi
	assert.False(t, dom.ContainsRange([]int64{1, 2, 2, 5})) // hi outside
	assert.Equal(t, []int64{1, 4, 1, 4}, dom.FullRange())
}

func TestArraySchemaValidate(t *testing.T) {
	dom, err := NewDomain(mustDim(t, "rows", 1, 4, 4), mustDim(t, "cols", 1, 4, 4))
	require.NoError(t, err)
	attr, err := NewAttribute("a", TypeInt32)
	require.NoError(t, err)

	t.Run("Valid", func(t *testing.T) {
		s, err := New(KindSparse, dom, []Attribute{attr}, RowMajor, RowMajor)
		require.NoError(t, err)
		assert.Equal(t, KindSparse, s.Kind)

		got, ok := s.Attribute("a")
		assert.True(t, ok)
		assert.Equal(t, TypeInt32, got.Type)
		_, ok = s.Attribute("missing")
		assert.False(t, ok)
	})

	t.Run("DefaultOrders", func(t *testing.T) {
		s, err := New(KindDense, dom, []Attribute{attr}, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, RowMajor, s.CellOrder)
		assert.Equal(t, RowMajor, s.TileOrder)
	})

	t.Run("NoAttributes", func(t *testing.T) {
		_, err := New(KindSparse, dom, nil, RowMajor, RowMajor)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("NoDomain", func(t *testing.T) {
		_, err := New(KindSparse, nil, []Attribute{attr}, RowMajor, RowMajor)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("InvalidKind", func(t *testing.T) {
		_, err := New(ArrayKind(9), dom, []Attribute{attr}, RowMajor, RowMajor)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("AttributeShadowsDimension", func(t *testing.T) {
		rows, err := NewAttribute("rows", TypeInt32)
		require.NoError(t, err)
		_, err = New(KindSparse, dom, []Attribute{rows}, RowMajor, RowMajor)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("DuplicateAttributes", func(t *testing.T) {
		_, err := New(KindSparse, dom, []Attribute{attr, attr}, RowMajor, RowMajor)
		assert.ErrorIs(t, err, ErrSchema)
	})
}

func TestArraySchemaRoundTrip(t *testing.T) {
	dom, err := NewDomain(mustDim(t, "rows", 1, 4, 2), mustDim(t, "cols", 1, 8, 3))
	require.NoError(t, err)
	a, err := NewAttribute("a", TypeFloat64)
	require.NoError(t, err)
	b, err := NewAttribute("b", TypeUint16)
	require.NoError(t, err)

	s, err := New(KindSparse, dom, []Attribute{a, b}, ColMajor, RowMajor)
	require.NoError(t, err)

	data, err := s.MarshalBytes()
	require.NoError(t, err)

	got, err := UnmarshalBytes(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestUnmarshalBytesRejectsInvalid(t *testing.T) {
	_, err := UnmarshalBytes([]byte(`{"kind":1}`))
	assert.ErrorIs(t, err, ErrSchema)
	_, err = UnmarshalBytes([]byte(`not json`))
	assert.ErrorIs(t, err, ErrSchema)
}

func TestDatatype(t *testing.T) {
	assert.Equal(t, 4, TypeInt32.Size())
	assert.Equal(t, 8, TypeFloat64.Size())
	assert.Equal(t, 1, TypeUint8.Size())
	assert.Equal(t, 0, TypeInvalid.Size())
	assert.True(t, TypeUint64.IsInteger())
	assert.False(t, TypeFloat32.IsInteger())
	assert.Equal(t, "Int32", TypeInt32.String())

	// Integer round-trip through the wire width.
	buf := make([]byte, 8)
	for _, tt := range []struct {
		typ Datatype
		v   int64
	}{
		{TypeInt8, -5},
		{TypeUint8, 200},
		{TypeInt16, -30000},
		{TypeUint16, 60000},
		{TypeInt32, -2000000000},
		{TypeUint32, 4000000000},
		{TypeInt64, -1 << 62},
	} {
		tt.typ.PutInt64(buf, tt.v)
		assert.Equal(t, tt.v, tt.typ.DecodeInt64(buf), tt.typ.String())
	}
}
