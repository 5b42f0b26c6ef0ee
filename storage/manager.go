// Package storage persists tiles grouped into immutable, append-only
// fragments on top of a blobstore.Store.
//
// A fragment is committed by publishing its meta blob last: readers treat
// a fragment as existing iff the meta blob exists, so a crash mid-write
// leaves at most invisible garbage tiles, never a partially visible
// fragment.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/tilestore/blobstore"
	"github.com/hupe1980/tilestore/schema"
)

// ErrStorage is the sentinel wrapped by every storage-layer failure.
var ErrStorage = errors.New("tilestore: storage failure")

// Manager owns fragment lifecycle for arrays stored under a blob store.
// Safe for concurrent use; concurrent writers obtain distinct fragment
// ids and never contend beyond the id counter.
type Manager struct {
	store blobstore.Store

	mu        sync.Mutex
	lastNanos int64
}

// NewManager creates a manager on top of the given blob store.
func NewManager(store blobstore.Store) *Manager {
	return &Manager{store: store}
}

// CreateArray persists the schema of a new array. Fails when the array
// already exists.
func (m *Manager) CreateArray(ctx context.Context, array string, s *schema.ArraySchema) error {
	exists, err := m.ArrayExists(ctx, array)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: array %q already exists", ErrStorage, array)
	}
	data, err := s.MarshalBytes()
	if err != nil {
		return fmt.Errorf("%w: marshal schema: %v", ErrStorage, err)
	}
	if err := m.store.Put(ctx, schemaBlobName(array), data); err != nil {
		return fmt.Errorf("%w: write schema for %q: %v", ErrStorage, array, err)
	}
	return nil
}

// ArrayExists reports whether an array has been created under the name.
func (m *Manager) ArrayExists(ctx context.Context, array string) (bool, error) {
	b, err := m.store.Open(ctx, schemaBlobName(array))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat array %q: %v", ErrStorage, array, err)
	}
	b.Close()
	return true, nil
}

// LoadSchema reads and validates the persisted schema of an array.
func (m *Manager) LoadSchema(ctx context.Context, array string) (*schema.ArraySchema, error) {
	b, err := m.store.Open(ctx, schemaBlobName(array))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: array %q does not exist", ErrStorage, array)
		}
		return nil, fmt.Errorf("%w: open schema for %q: %v", ErrStorage, array, err)
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema for %q: %v", ErrStorage, array, err)
	}
	s, err := schema.UnmarshalBytes(data)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListFragments returns the committed fragments of an array ordered by
// commit time, oldest first. Later fragments supersede earlier ones at
// overlapping coordinates.
func (m *Manager) ListFragments(ctx context.Context, array string) ([]*FragmentMeta, error) {
	prefix := path.Join(array, FragmentsPrefix) + "/"
	names, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list fragments of %q: %v", ErrStorage, array, err)
	}

	var metas []*FragmentMeta
	for _, name := range names {
		if !strings.HasSuffix(name, "/"+MetaBlobName) {
			continue
		}
		meta, err := m.readMeta(ctx, name)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CreatedAt != metas[j].CreatedAt {
			return metas[i].CreatedAt < metas[j].CreatedAt
		}
		return metas[i].ID < metas[j].ID
	})
	return metas, nil
}

func (m *Manager) readMeta(ctx context.Context, name string) (*FragmentMeta, error) {
	b, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: open fragment meta %q: %v", ErrStorage, name, err)
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%w: read fragment meta %q: %v", ErrStorage, name, err)
	}
	meta, err := unmarshalMeta(data)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt fragment meta %q: %v", ErrStorage, name, err)
	}
	return meta, nil
}

// ReadAttrTile fetches and decodes one attribute tile of a fragment,
// returning the raw cell bytes and the cell count.
func (m *Manager) ReadAttrTile(ctx context.Context, array string, frag *FragmentMeta, attr string, tileID uint64) ([]byte, uint32, error) {
	return m.readTile(ctx, attrTileBlobName(array, frag.ID, attr, tileID))
}

// ReadCoordTile fetches and decodes one coordinate tile of a sparse
// fragment.
func (m *Manager) ReadCoordTile(ctx context.Context, array string, frag *FragmentMeta, tileID uint64) ([]byte, uint32, error) {
	return m.readTile(ctx, coordTileBlobName(array, frag.ID, tileID))
}

func (m *Manager) readTile(ctx context.Context, name string) ([]byte, uint32, error) {
	b, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open tile %q: %v", ErrStorage, name, err)
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read tile %q: %v", ErrStorage, name, err)
	}
	return DecodeTile(data)
}

// nextFragmentID returns a fragment id whose lexical order matches commit
// order within this process, plus the commit timestamp.
func (m *Manager) nextFragmentID() (string, int64) {
	m.mu.Lock()
	now := time.Now().UnixNano()
	if now <= m.lastNanos {
		now = m.lastNanos + 1
	}
	m.lastNanos = now
	m.mu.Unlock()

	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("%020d_%s", now, hex.EncodeToString(suffix[:])), now
}
