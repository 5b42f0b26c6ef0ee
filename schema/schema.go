// Package schema defines the array data model: scalar datatypes,
// dimensions, domains, attributes and the immutable array schema that
// ties them together. All invariants are enforced at construction time;
// a schema that validates is safe to hand to the tiling and storage
// layers without further checking.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSchema is the sentinel wrapped by every schema validation failure.
var ErrSchema = errors.New("tilestore: invalid schema")

// ArrayKind discriminates dense and sparse arrays.
type ArrayKind uint8

const (
	KindDense ArrayKind = iota + 1
	KindSparse
)

// String returns the string representation of the ArrayKind.
func (k ArrayKind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindSparse:
		return "sparse"
	default:
		return "invalid"
	}
}

// Order is a traversal order over a hyper-rectangle of cells or tiles.
type Order uint8

const (
	// RowMajor varies the last dimension fastest.
	RowMajor Order = iota + 1
	// ColMajor varies the first dimension fastest.
	ColMajor
)

// String returns the string representation of the Order.
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColMajor:
		return "col-major"
	default:
		return "invalid"
	}
}

// Valid reports whether the order is one of the defined constants.
func (o Order) Valid() bool {
	return o == RowMajor || o == ColMajor
}

// Attribute is a named per-cell value field. Attributes are not part of
// the coordinate space.
type Attribute struct {
	Name string   `json:"name"`
	Type Datatype `json:"type"`
}

// NewAttribute builds a validated fixed-length scalar attribute.
func NewAttribute(name string, t Datatype) (Attribute, error) {
	a := Attribute{Name: name, Type: t}
	if err := a.Validate(); err != nil {
		return Attribute{}, err
	}
	return a, nil
}

// Validate checks the attribute invariants.
func (a Attribute) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: attribute name must not be empty", ErrSchema)
	}
	if strings.ContainsRune(a.Name, '/') {
		return fmt.Errorf("%w: attribute name %q must not contain '/'", ErrSchema, a.Name)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: attribute %q has invalid type", ErrSchema, a.Name)
	}
	return nil
}

// ArraySchema describes one array: its kind, coordinate space, attributes
// and traversal orders. Immutable once an array has been created from it.
type ArraySchema struct {
	Kind       ArrayKind   `json:"kind"`
	Domain     *Domain     `json:"domain"`
	Attributes []Attribute `json:"attributes"`
	CellOrder  Order       `json:"cell_order"`
	TileOrder  Order       `json:"tile_order"`
}

// New builds a validated array schema. Orders default to row-major when
// left zero.
func New(kind ArrayKind, domain *Domain, attrs []Attribute, cellOrder, tileOrder Order) (*ArraySchema, error) {
	if cellOrder == 0 {
		cellOrder = RowMajor
	}
	if tileOrder == 0 {
		tileOrder = RowMajor
	}
	s := &ArraySchema{
		Kind:       kind,
		Domain:     domain,
		Attributes: attrs,
		CellOrder:  cellOrder,
		TileOrder:  tileOrder,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the schema invariants.
func (s *ArraySchema) Validate() error {
	if s.Kind != KindDense && s.Kind != KindSparse {
		return fmt.Errorf("%w: array kind must be dense or sparse", ErrSchema)
	}
	if s.Domain == nil {
		return fmt.Errorf("%w: schema has no domain", ErrSchema)
	}
	if err := s.Domain.Validate(); err != nil {
		return err
	}
	if len(s.Attributes) == 0 {
		return fmt.Errorf("%w: schema must have at least one attribute", ErrSchema)
	}
	if !s.CellOrder.Valid() || !s.TileOrder.Valid() {
		return fmt.Errorf("%w: cell and tile order must be row-major or col-major", ErrSchema)
	}
	seen := make(map[string]struct{}, len(s.Attributes))
	for _, dim := range s.Domain.Dimensions {
		seen[dim.Name] = struct{}{}
	}
	for _, a := range s.Attributes {
		if err := a.Validate(); err != nil {
			return err
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", ErrSchema, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}

// Attribute returns the attribute with the given name, if any.
func (s *ArraySchema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// MarshalBytes serializes the schema to its persisted JSON form.
func (s *ArraySchema) MarshalBytes() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalBytes deserializes and re-validates a persisted schema.
func UnmarshalBytes(data []byte) (*ArraySchema, error) {
	var s ArraySchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
