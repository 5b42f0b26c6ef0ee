package tilestore

import (
	"context"
	"fmt"

	"github.com/hupe1980/tilestore/schema"
)

// CoordsField is the reserved field name of the coordinates buffer.
// Sparse write queries must bind it; read queries may bind it to receive
// the coordinates of result cells.
const CoordsField = "__coords"

// QueryType discriminates read and write queries.
type QueryType uint8

const (
	QueryRead QueryType = iota + 1
	QueryWrite
)

// Layout is the cell ordering contract of a query's buffers.
type Layout uint8

const (
	// LayoutRowMajor orders cells row-major over the queried region.
	LayoutRowMajor Layout = iota + 1
	// LayoutColMajor orders cells col-major over the queried region.
	LayoutColMajor
	// LayoutUnordered accepts cells in any order (sparse writes only).
	LayoutUnordered
)

// String returns the string representation of the Layout.
func (l Layout) String() string {
	switch l {
	case LayoutRowMajor:
		return "row-major"
	case LayoutColMajor:
		return "col-major"
	case LayoutUnordered:
		return "unordered"
	default:
		return "invalid"
	}
}

// order maps an ordered layout onto a traversal order.
func (l Layout) order() schema.Order {
	if l == LayoutColMajor {
		return schema.ColMajor
	}
	return schema.RowMajor
}

// QueryStatus is the explicit query state machine:
// initialized -> completed, or initialized -> incomplete -> ... ->
// completed for reads that overflow their buffers.
type QueryStatus uint8

const (
	StatusInitialized QueryStatus = iota
	StatusIncomplete
	StatusCompleted
	StatusFailed
)

// String returns the string representation of the QueryStatus.
func (s QueryStatus) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusIncomplete:
		return "incomplete"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// buffer carries a bound user buffer plus the bytes actually used by the
// last submit. Capacity and used count are explicit, not in/out params.
type buffer struct {
	data []byte
	used int
}

// Query scopes one write or one read operation on an open array. Not
// safe for concurrent use. Reads that return ErrBufferOverflow stay
// incomplete and may be resubmitted (with the same or rebound buffers) to
// continue where they stopped.
type Query struct {
	array    *Array
	qtype    QueryType
	layout   Layout
	subarray []int64
	buffers  map[string]*buffer
	status   QueryStatus

	// read continuation state
	result *readResult
	cursor int
}

// Type returns the query type.
func (q *Query) Type() QueryType {
	return q.qtype
}

// Status returns the query state.
func (q *Query) Status() QueryStatus {
	return q.status
}

// SetLayout sets the cell ordering contract of the bound buffers.
// LayoutUnordered is valid only for sparse writes.
func (q *Query) SetLayout(l Layout) error {
	switch l {
	case LayoutRowMajor, LayoutColMajor:
	case LayoutUnordered:
		if q.qtype != QueryWrite || q.array.schema.Kind != schema.KindSparse {
			return fmt.Errorf("%w: unordered layout is only valid for sparse writes", ErrQuery)
		}
	default:
		return fmt.Errorf("%w: invalid layout", ErrQuery)
	}
	q.layout = l
	return nil
}

// SetSubarray constrains a read query to a hyper-rectangle, given as
// [lo, hi] pairs per dimension in declaration order. Read queries only.
func (q *Query) SetSubarray(ranges []int64) error {
	if q.qtype != QueryRead {
		return fmt.Errorf("%w: subarray applies to read queries only", ErrQuery)
	}
	if q.status == StatusIncomplete {
		return fmt.Errorf("%w: cannot change subarray of an incomplete read", ErrQuery)
	}
	if !q.array.schema.Domain.ContainsRange(ranges) {
		return fmt.Errorf("%w: subarray outside domain", ErrQuery)
	}
	q.subarray = append([]int64(nil), ranges...)
	return nil
}

// SetBuffer binds a buffer to an attribute name, or to CoordsField for
// coordinates. For writes the buffer holds input cells (its full length
// is consumed); for reads it is result capacity. Between submits of an
// incomplete read, already-bound fields may be rebound (e.g. to a larger
// buffer), but new fields cannot be added: the result was materialized
// for the fields bound at the first submit.
func (q *Query) SetBuffer(field string, data []byte) error {
	if q.status == StatusCompleted || q.status == StatusFailed {
		return fmt.Errorf("%w: query is %s", ErrQuery, q.status)
	}
	if q.status == StatusIncomplete {
		if _, ok := q.buffers[field]; !ok {
			return fmt.Errorf("%w: cannot bind new field %q to an incomplete read", ErrQuery, field)
		}
	}
	cellSize, err := q.array.fieldCellSize(field)
	if err != nil {
		return err
	}
	if field == CoordsField && q.qtype == QueryWrite && q.array.schema.Kind == schema.KindDense {
		return fmt.Errorf("%w: dense writes take no coordinates buffer", ErrQuery)
	}
	if q.qtype == QueryWrite && len(data)%cellSize != 0 {
		return fmt.Errorf("%w: buffer for %q is not a whole number of cells", ErrQuery, field)
	}
	q.buffers[field] = &buffer{data: data}
	return nil
}

// BufferSize returns the bytes used by the last submit and the bound
// capacity of the field's buffer.
func (q *Query) BufferSize(field string) (used, capacity int, err error) {
	b, ok := q.buffers[field]
	if !ok {
		return 0, 0, fmt.Errorf("%w: no buffer bound for %q", ErrQuery, field)
	}
	return b.used, len(b.data), nil
}

// Submit executes the query synchronously. Write queries either commit a
// fragment or fail with no side effect. Read queries fill the bound
// buffers; ErrBufferOverflow leaves the query incomplete and resumable.
func (q *Query) Submit(ctx context.Context) error {
	if q.array.closed {
		return fmt.Errorf("%w: array is closed", ErrQuery)
	}
	switch q.qtype {
	case QueryWrite:
		return q.submitWrite(ctx)
	case QueryRead:
		return q.submitRead(ctx)
	default:
		return fmt.Errorf("%w: invalid query type", ErrQuery)
	}
}
