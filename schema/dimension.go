package schema

import (
	"fmt"
	"math"
	"strings"
)

// Dimension is one axis of an array's coordinate space. Bounds are kept
// int64-normalized regardless of the declared Datatype; the Datatype still
// governs the on-wire width of coordinates in buffers and tiles.
type Dimension struct {
	Name       string   `json:"name"`
	Type       Datatype `json:"type"`
	Lo         int64    `json:"lo"`
	Hi         int64    `json:"hi"`
	TileExtent int64    `json:"tile_extent"`
}

// NewDimension builds a validated dimension with an inclusive domain
// [lo, hi] partitioned into tiles of extent cells.
func NewDimension(name string, t Datatype, lo, hi, extent int64) (Dimension, error) {
	d := Dimension{Name: name, Type: t, Lo: lo, Hi: hi, TileExtent: extent}
	if err := d.Validate(); err != nil {
		return Dimension{}, err
	}
	return d, nil
}

// Validate checks the dimension invariants.
func (d Dimension) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: dimension name must not be empty", ErrSchema)
	}
	if strings.ContainsRune(d.Name, '/') {
		return fmt.Errorf("%w: dimension name %q must not contain '/'", ErrSchema, d.Name)
	}
	if !d.Type.Valid() || !d.Type.IsInteger() {
		return fmt.Errorf("%w: dimension %q has non-integer type %s", ErrSchema, d.Name, d.Type)
	}
	if d.Lo > d.Hi {
		return fmt.Errorf("%w: dimension %q has empty domain [%d, %d]", ErrSchema, d.Name, d.Lo, d.Hi)
	}
	if d.Lo < d.Type.MinValue() || d.Hi > d.Type.MaxValue() {
		return fmt.Errorf("%w: dimension %q domain [%d, %d] overflows %s", ErrSchema, d.Name, d.Lo, d.Hi, d.Type)
	}
	// Extent math below needs hi-lo+1 to fit in int64.
	if d.Lo < 0 && d.Hi > math.MaxInt64+d.Lo-1 {
		return fmt.Errorf("%w: dimension %q domain [%d, %d] exceeds addressable range", ErrSchema, d.Name, d.Lo, d.Hi)
	}
	if d.TileExtent <= 0 {
		return fmt.Errorf("%w: dimension %q has non-positive tile extent %d", ErrSchema, d.Name, d.TileExtent)
	}
	if d.TileExtent > d.Extent() {
		return fmt.Errorf("%w: dimension %q tile extent %d exceeds domain size %d", ErrSchema, d.Name, d.TileExtent, d.Extent())
	}
	return nil
}

// Extent returns the number of cells along the dimension, hi-lo+1.
func (d Dimension) Extent() int64 {
	return d.Hi - d.Lo + 1
}

// TileCount returns ceil(extent / tileExtent); the last tile may cover a
// remainder smaller than TileExtent.
func (d Dimension) TileCount() int64 {
	return (d.Extent() + d.TileExtent - 1) / d.TileExtent
}

// Domain is the ordered set of dimensions defining the coordinate space.
// Order is significant: it fixes coordinate tuple order and the default
// traversal order.
type Domain struct {
	Dimensions []Dimension `json:"dimensions"`
}

// NewDomain builds a validated domain from one or more dimensions.
func NewDomain(dims ...Dimension) (*Domain, error) {
	d := &Domain{Dimensions: dims}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the domain invariants.
func (d *Domain) Validate() error {
	if len(d.Dimensions) == 0 {
		return fmt.Errorf("%w: domain must have at least one dimension", ErrSchema)
	}
	seen := make(map[string]struct{}, len(d.Dimensions))
	for _, dim := range d.Dimensions {
		if err := dim.Validate(); err != nil {
			return err
		}
		if _, dup := seen[dim.Name]; dup {
			return fmt.Errorf("%w: duplicate dimension name %q", ErrSchema, dim.Name)
		}
		seen[dim.Name] = struct{}{}
	}
	return nil
}

// NDim returns the number of dimensions.
func (d *Domain) NDim() int {
	return len(d.Dimensions)
}

// Volume returns the total cell count of the domain. Errors rather than
// wrapping silently when the product exceeds uint64.
func (d *Domain) Volume() (uint64, error) {
	vol := uint64(1)
	for _, dim := range d.Dimensions {
		ext := uint64(dim.Extent())
		if ext != 0 && vol > math.MaxUint64/ext {
			return 0, fmt.Errorf("%w: domain volume overflows uint64", ErrSchema)
		}
		vol *= ext
	}
	return vol, nil
}

// TileCounts returns the per-dimension tile counts in declaration order.
func (d *Domain) TileCounts() []int64 {
	counts := make([]int64, len(d.Dimensions))
	for i, dim := range d.Dimensions {
		counts[i] = dim.TileCount()
	}
	return counts
}

// CoordTupleSize returns the byte width of one coordinate tuple: the sum
// of per-dimension type sizes, laid out contiguously in declaration order.
func (d *Domain) CoordTupleSize() int {
	n := 0
	for _, dim := range d.Dimensions {
		n += dim.Type.Size()
	}
	return n
}

// Contains reports whether the coordinate tuple lies inside the domain.
func (d *Domain) Contains(coords []int64) bool {
	if len(coords) != len(d.Dimensions) {
		return false
	}
	for i, dim := range d.Dimensions {
		if coords[i] < dim.Lo || coords[i] > dim.Hi {
			return false
		}
	}
	return true
}

// ContainsRange reports whether the subarray (lo, hi pairs per dimension)
// lies inside the domain with lo <= hi in every dimension.
func (d *Domain) ContainsRange(subarray []int64) bool {
	if len(subarray) != 2*len(d.Dimensions) {
		return false
	}
	for i, dim := range d.Dimensions {
		lo, hi := subarray[2*i], subarray[2*i+1]
		if lo > hi || lo < dim.Lo || hi > dim.Hi {
			return false
		}
	}
	return true
}

// FullRange returns the subarray covering the whole domain.
func (d *Domain) FullRange() []int64 {
	r := make([]int64, 0, 2*len(d.Dimensions))
	for _, dim := range d.Dimensions {
		r = append(r, dim.Lo, dim.Hi)
	}
	return r
}
