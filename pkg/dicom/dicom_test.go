package dicom

import (
	"bytes"

	"github.com/openrad/dicompress/pkg/dicom/tag"
	"github.com/openrad/dicompress/pkg/dicom/transfer"
	"github.com/openrad/dicompress/pkg/dicom/vr"
)

// testInstanceSpec drives the synthetic DICOM files the tests parse.
type testInstanceSpec struct {
	Rows, Columns   int
	Bits            int
	SamplesPerPixel int
	Signed          bool
	Modality        string
	Photometric     string
	Pixels          []byte
}

func defaultSpec(rows, cols int, pixels []byte) testInstanceSpec {
	return testInstanceSpec{
		Rows: rows, Columns: cols,
		Bits:            8,
		SamplesPerPixel: 1,
		Modality:        "CT",
		Photometric:     "MONOCHROME2",
		Pixels:          pixels,
	}
}

// buildNativeDicom emits a minimal explicit-VR-little-endian Part-10
// file with a native pixel-data run, the shape the compression
// pipeline consumes.
func buildNativeDicom(s testInstanceSpec) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")

	// File meta group
	var meta bytes.Buffer
	writeElement(&meta, tag.FileMetaInformationVersion, vr.OB, []byte{0x00, 0x01})
	writeElement(&meta, tag.MediaStorageSOPClassUID, vr.UI, uiBytes("1.2.840.10008.5.1.4.1.1.2"))
	writeElement(&meta, tag.MediaStorageSOPInstanceUID, vr.UI, uiBytes("1.2.3.4.5.6.7.8.9"))
	writeElement(&meta, tag.TransferSyntaxUID, vr.UI, uiBytes(string(transfer.ExplicitVRLittleEndian)))
	writeElement(&buf, tag.FileMetaInformationGroupLength, vr.UL, u32Bytes(uint32(meta.Len())))
	buf.Write(meta.Bytes())

	// Dataset
	writeElement(&buf, tag.SOPClassUID, vr.UI, uiBytes("1.2.840.10008.5.1.4.1.1.2"))
	writeElement(&buf, tag.SOPInstanceUID, vr.UI, uiBytes("1.2.3.4.5.6.7.8.9"))
	writeElement(&buf, tag.Modality, vr.CS, uiBytes(s.Modality))
	writeElement(&buf, tag.SamplesPerPixel, vr.US, u16Bytes(s.SamplesPerPixel))
	writeElement(&buf, tag.PhotometricInterpretation, vr.CS, uiBytes(s.Photometric))
	writeElement(&buf, tag.Rows, vr.US, u16Bytes(s.Rows))
	writeElement(&buf, tag.Columns, vr.US, u16Bytes(s.Columns))
	writeElement(&buf, tag.BitsAllocated, vr.US, u16Bytes(bitsAllocatedFor(s.Bits)))
	writeElement(&buf, tag.BitsStored, vr.US, u16Bytes(s.Bits))
	writeElement(&buf, tag.HighBit, vr.US, u16Bytes(s.Bits-1))
	pixelRep := 0
	if s.Signed {
		pixelRep = 1
	}
	writeElement(&buf, tag.PixelRepresentation, vr.US, u16Bytes(pixelRep))

	pixels := s.Pixels
	if len(pixels)%2 != 0 {
		pixels = append(append([]byte{}, pixels...), 0x00)
	}
	writeElement(&buf, tag.PixelData, vr.OB, pixels)

	return buf.Bytes()
}

func bitsAllocatedFor(bits int) int {
	if bits > 8 {
		return 16
	}
	return 8
}

func u32Bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// ramp16 is the 4x4 8-bit gradient used across the pipeline tests.
func ramp16() []byte {
	return []byte{
		0x00, 0x10, 0x20, 0x30,
		0x40, 0x50, 0x60, 0x70,
		0x80, 0x90, 0xA0, 0xB0,
		0xC0, 0xD0, 0xE0, 0xF0,
	}
}
