package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/hupe1980/tilestore/schema"
)

// Tile blob format:
//
//	[Magic uint32][Version uint16][Datatype uint8][Compression uint8]
//	[CellCount uint32][Block...][CRC32 uint32]
//
// The CRC covers everything before the footer. Coordinate tiles carry
// mixed-width tuples and use Datatype 0; their cell width is known from
// the schema, not the tile.
const (
	// TileMagic identifies tile blobs (ASCII: "TSTL").
	TileMagic = 0x5453544C
	// TileVersion is the current tile format version.
	TileVersion = 1

	tileHeaderSize = 12
	tileFooterSize = 4
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// EncodeTile frames cells (the raw contiguous cell bytes of one tile)
// into a tile blob.
func EncodeTile(t schema.Datatype, c Compression, cells []byte, cellCount uint32) ([]byte, error) {
	block, err := compressBlock(cells, c)
	if err != nil {
		return nil, fmt.Errorf("%w: encode tile: %v", ErrStorage, err)
	}

	buf := make([]byte, tileHeaderSize+len(block)+tileFooterSize)
	binary.LittleEndian.PutUint32(buf[0:], TileMagic)
	binary.LittleEndian.PutUint16(buf[4:], TileVersion)
	buf[6] = byte(t)
	buf[7] = byte(c)
	binary.LittleEndian.PutUint32(buf[8:], cellCount)
	copy(buf[tileHeaderSize:], block)

	crc := crc32.Checksum(buf[:tileHeaderSize+len(block)], crcTable)
	binary.LittleEndian.PutUint32(buf[tileHeaderSize+len(block):], crc)
	return buf, nil
}

// DecodeTile verifies and unframes a tile blob, returning the raw cell
// bytes and the recorded cell count.
func DecodeTile(blob []byte) (cells []byte, cellCount uint32, err error) {
	if len(blob) < tileHeaderSize+tileFooterSize {
		return nil, 0, fmt.Errorf("%w: tile blob truncated (%d bytes)", ErrStorage, len(blob))
	}
	if binary.LittleEndian.Uint32(blob[0:]) != TileMagic {
		return nil, 0, fmt.Errorf("%w: bad tile magic", ErrStorage)
	}
	if v := binary.LittleEndian.Uint16(blob[4:]); v != TileVersion {
		return nil, 0, fmt.Errorf("%w: unsupported tile version %d", ErrStorage, v)
	}
	comp := Compression(blob[7])
	cellCount = binary.LittleEndian.Uint32(blob[8:])

	body := blob[:len(blob)-tileFooterSize]
	want := binary.LittleEndian.Uint32(blob[len(blob)-tileFooterSize:])
	if got := crc32.Checksum(body, crcTable); got != want {
		return nil, 0, fmt.Errorf("%w: tile checksum mismatch: expected 0x%08x, got 0x%08x", ErrStorage, want, got)
	}

	cells, derr := decompressBlock(body[tileHeaderSize:], comp)
	if derr != nil {
		return nil, 0, fmt.Errorf("%w: decode tile: %v", ErrStorage, derr)
	}
	return cells, cellCount, nil
}
