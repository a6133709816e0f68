package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// errTagBounds marks a TIFF entry whose declared value length cannot fit in
// the block. goexif multiplies count by type size in 32 bits and allocates
// from the count, so such entries are rejected before decoding.
var errTagBounds = errors.New("exif tag length exceeds block")

// maxIFDs caps how many directories one TIFF block may chain or nest.
const maxIFDs = 32

var exifMarker = []byte("Exif\x00\x00")

// tiffTypeSizes maps TIFF field types to the byte size of one value.
var tiffTypeSizes = map[uint16]uint64{
	1: 1, 2: 1, 6: 1, 7: 1,
	3: 2, 8: 2,
	4: 4, 9: 4, 11: 4,
	5: 8, 10: 8, 12: 8,
}

// subIFDTags point from a directory to the Exif, GPS and interop IFDs.
var subIFDTags = map[uint16]bool{
	0x8769: true,
	0x8825: true,
	0xA005: true,
}

func isTIFFHeader(b []byte) bool {
	return len(b) >= 8 && (string(b[:4]) == "II*\x00" || string(b[:4]) == "MM\x00*")
}

// checkTagBounds validates every TIFF block the EXIF decoder could reach:
// a bare TIFF payload, or any block introduced by an Exif marker.
func checkTagBounds(data []byte) error {
	if isTIFFHeader(data) {
		return checkTIFF(data)
	}
	for rest := data; ; {
		i := bytes.Index(rest, exifMarker)
		if i < 0 {
			return nil
		}
		rest = rest[i+len(exifMarker):]
		if isTIFFHeader(rest) {
			if err := checkTIFF(rest); err != nil {
				return err
			}
		}
	}
}

// checkTIFF walks the IFD chain and its sub-directories. Truncated
// directories are left to the decoder, which fails on them without
// allocating.
func checkTIFF(b []byte) error {
	var order binary.ByteOrder = binary.LittleEndian
	if b[0] == 'M' {
		order = binary.BigEndian
	}
	size := uint64(len(b))

	pending := []uint32{order.Uint32(b[4:8])}
	seen := make(map[uint32]bool)
	for len(pending) > 0 && len(seen) < maxIFDs {
		off := pending[0]
		pending = pending[1:]
		if off == 0 || seen[off] || uint64(off)+2 > size {
			continue
		}
		seen[off] = true

		n := uint64(order.Uint16(b[off:]))
		pos := uint64(off) + 2
		for i := uint64(0); i < n && pos+12 <= size; i, pos = i+1, pos+12 {
			entry := b[pos : pos+12]
			tag := order.Uint16(entry[0:2])
			typ := order.Uint16(entry[2:4])
			count := uint64(order.Uint32(entry[4:8]))

			if typeSize, ok := tiffTypeSizes[typ]; ok && count*typeSize > size {
				return fmt.Errorf("%w: tag 0x%04X count %d", errTagBounds, tag, count)
			}
			if subIFDTags[tag] {
				pending = append(pending, order.Uint32(entry[8:12]))
			}
		}
		if pos+4 <= size && pos == uint64(off)+2+12*n {
			pending = append(pending, order.Uint32(b[pos:pos+4]))
		}
	}
	return nil
}
