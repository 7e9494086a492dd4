// Package rle implements DICOM RLE Lossless compression
// (PS3.5 Annex G): PackBits-coded byte segments behind a 64-byte
// segment-offset header. 16-bit samples are split into high-byte and
// low-byte planes, one segment each.
package rle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const headerSize = 64

// Encode compresses one frame of grayscale samples. Pixels are
// little-endian, row-major; bytesPerSample is 1 or 2.
func Encode(w io.Writer, pixels []byte, width, height, bytesPerSample int) error {
	numPixels := width * height
	if numPixels <= 0 {
		return errors.New("rle: invalid dimensions")
	}
	if len(pixels) != numPixels*bytesPerSample {
		return fmt.Errorf("rle: pixel buffer is %d bytes, want %d", len(pixels), numPixels*bytesPerSample)
	}

	var segments [][]byte
	switch bytesPerSample {
	case 1:
		segments = append(segments, PackBits(pixels))
	case 2:
		// Split into MSB and LSB planes. Input is little-endian.
		highBytes := make([]byte, numPixels)
		lowBytes := make([]byte, numPixels)
		for i := 0; i < numPixels; i++ {
			lowBytes[i] = pixels[i*2]
			highBytes[i] = pixels[i*2+1]
		}
		segments = append(segments, PackBits(highBytes))
		segments = append(segments, PackBits(lowBytes))
	default:
		return fmt.Errorf("rle: unsupported sample width %d", bytesPerSample)
	}

	// Segments are padded to even length
	for i := range segments {
		if len(segments[i])%2 != 0 {
			segments[i] = append(segments[i], 0x00)
		}
	}

	// 64-byte header: segment count then up to 15 offsets relative to
	// the start of the header.
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:], uint32(len(segments)))
	offset := uint32(headerSize)
	for i, seg := range segments {
		binary.LittleEndian.PutUint32(header[4+i*4:], offset)
		offset += uint32(len(seg))
	}

	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, seg := range segments {
		if _, err := w.Write(seg); err != nil {
			return err
		}
	}
	return nil
}

// Decode reverses Encode, returning little-endian row-major samples.
func Decode(data []byte, width, height, bytesPerSample int) ([]byte, error) {
	numPixels := width * height
	if numPixels <= 0 {
		return nil, errors.New("rle: invalid dimensions")
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("rle: data shorter than header (%d bytes)", len(data))
	}

	numSegments := int(binary.LittleEndian.Uint32(data[0:]))
	if numSegments < 1 || numSegments > 15 {
		return nil, fmt.Errorf("rle: invalid segment count %d", numSegments)
	}
	if numSegments != bytesPerSample {
		return nil, fmt.Errorf("rle: %d segments for %d-byte samples", numSegments, bytesPerSample)
	}

	segments := make([][]byte, numSegments)
	for i := 0; i < numSegments; i++ {
		start := binary.LittleEndian.Uint32(data[4+i*4:])
		end := uint32(len(data))
		if i+1 < numSegments {
			end = binary.LittleEndian.Uint32(data[4+(i+1)*4:])
		}
		if start < headerSize || start > end || end > uint32(len(data)) {
			return nil, fmt.Errorf("rle: segment %d offsets out of range [%d,%d)", i, start, end)
		}
		seg, err := UnpackBits(data[start:end], numPixels)
		if err != nil {
			return nil, err
		}
		if len(seg) != numPixels {
			return nil, fmt.Errorf("rle: segment %d decoded to %d bytes, want %d", i, len(seg), numPixels)
		}
		segments[i] = seg
	}

	switch bytesPerSample {
	case 1:
		return segments[0], nil
	case 2:
		out := make([]byte, numPixels*2)
		for i := 0; i < numPixels; i++ {
			out[i*2] = segments[1][i]   // LSB plane
			out[i*2+1] = segments[0][i] // MSB plane
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rle: unsupported sample width %d", bytesPerSample)
	}
}
