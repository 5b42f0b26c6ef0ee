package storage

import (
	"fmt"
	"path"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

const (
	// SchemaBlobName is the per-array schema blob.
	SchemaBlobName = "schema.json"
	// FragmentsPrefix groups all fragment blobs of an array.
	FragmentsPrefix = "fragments"
	// MetaBlobName is the fragment metadata blob. It is published last:
	// a fragment is visible iff its meta blob exists.
	MetaBlobName = "__meta.json"
)

// TileInfo records the cell count of one tile in a fragment.
type TileInfo struct {
	ID    uint64 `json:"id"`
	Cells uint32 `json:"cells"`
}

// FragmentMeta describes one immutable fragment. Serialized as the
// fragment's meta blob; its presence is what commits the fragment.
type FragmentMeta struct {
	ID         string     `json:"id"`
	CreatedAt  int64      `json:"created_at"` // unix nanos, commit order
	Dense      bool       `json:"dense"`
	Subregion  []int64    `json:"subregion,omitempty"` // dense write region, [lo, hi] pairs
	Tiles      []TileInfo `json:"tiles"`
	TotalCells uint64     `json:"total_cells"`
	TileBitmap []byte     `json:"tile_bitmap"` // serialized roaring64 of tile ids

	bitmap *roaring64.Bitmap // lazily decoded from TileBitmap
}

// decodeBitmap materializes the tile-presence bitmap. A bitmap that fails
// to decode falls back to the tile list. Metas produced by the manager
// and the fragment writer decode eagerly, so HasTile is safe to call from
// multiple goroutines on those.
func (f *FragmentMeta) decodeBitmap() {
	f.bitmap = roaring64.New()
	if len(f.TileBitmap) > 0 {
		if err := f.bitmap.UnmarshalBinary(f.TileBitmap); err != nil {
			for _, t := range f.Tiles {
				f.bitmap.Add(t.ID)
			}
		}
	}
}

// HasTile reports whether the fragment contains the tile.
func (f *FragmentMeta) HasTile(tileID uint64) bool {
	if f.bitmap == nil {
		// Only hand-constructed metas reach here; not synchronized.
		f.decodeBitmap()
	}
	return f.bitmap.Contains(tileID)
}

// CellsInTile returns the recorded cell count of the tile, or 0 when the
// fragment does not contain it.
func (f *FragmentMeta) CellsInTile(tileID uint64) uint32 {
	if !f.HasTile(tileID) {
		return 0
	}
	for _, t := range f.Tiles {
		if t.ID == tileID {
			return t.Cells
		}
	}
	return 0
}

// Blob naming. Names are constructed, never parsed; attribute names may
// contain underscores.

func fragmentPrefix(array, fragID string) string {
	return path.Join(array, FragmentsPrefix, fragID)
}

func metaBlobName(array, fragID string) string {
	return path.Join(fragmentPrefix(array, fragID), MetaBlobName)
}

func attrTileBlobName(array, fragID, attr string, tileID uint64) string {
	return path.Join(fragmentPrefix(array, fragID), fmt.Sprintf("a_%s_%d.tile", attr, tileID))
}

func coordTileBlobName(array, fragID string, tileID uint64) string {
	return path.Join(fragmentPrefix(array, fragID), fmt.Sprintf("c_%d.tile", tileID))
}

func schemaBlobName(array string) string {
	return path.Join(array, SchemaBlobName)
}
