package dicom

import (
	"bytes"
	"encoding/binary"

	"github.com/openrad/dicompress/pkg/dicom/tag"
	"github.com/openrad/dicompress/pkg/dicom/transfer"
	"github.com/openrad/dicompress/pkg/dicom/vr"
)

// Implementation identity stamped into every file meta group.
const (
	ImplementationClassUID    = "1.2.826.0.1.3680043.10.1455.1"
	ImplementationVersionName = "DICOMPRESS_01"
)

// WriteInstance serializes a complete Part-10 file: preamble, file
// meta group (explicit VR little endian, group length patched after
// the fact), a minimal image-pixel dataset copied from src, and the
// codec payload as an encapsulated pixel-data element under the target
// transfer syntax.
//
// sopInstanceUID overrides the source SOP instance UID when non-empty.
// Given a valid source instance the writer cannot fail; file I/O is
// the caller's concern.
func WriteInstance(src *Instance, payload []byte, target transfer.Syntax, sopInstanceUID string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(payload) + 512)

	// Preamble and magic
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")

	if sopInstanceUID == "" {
		sopInstanceUID = src.SOPInstanceUID
	}

	// File meta group. The group length element is written with a
	// placeholder and patched once the group is complete.
	writeElement(&buf, tag.FileMetaInformationGroupLength, vr.UL, []byte{0, 0, 0, 0})
	groupLenValuePos := buf.Len() - 4
	groupStart := buf.Len()

	writeElement(&buf, tag.FileMetaInformationVersion, vr.OB, []byte{0x00, 0x01})
	writeElement(&buf, tag.MediaStorageSOPClassUID, vr.UI, uiBytes(src.SOPClassUID))
	writeElement(&buf, tag.MediaStorageSOPInstanceUID, vr.UI, uiBytes(sopInstanceUID))
	writeElement(&buf, tag.TransferSyntaxUID, vr.UI, uiBytes(string(target)))
	writeElement(&buf, tag.ImplementationClassUID, vr.UI, uiBytes(ImplementationClassUID))
	writeElement(&buf, tag.ImplementationVersionName, vr.SH, uiBytes(ImplementationVersionName))

	binary.LittleEndian.PutUint32(buf.Bytes()[groupLenValuePos:], uint32(buf.Len()-groupStart))

	// Minimal dataset
	writeElement(&buf, tag.SOPClassUID, vr.UI, uiBytes(src.SOPClassUID))
	writeElement(&buf, tag.SOPInstanceUID, vr.UI, uiBytes(sopInstanceUID))
	writeElement(&buf, tag.Modality, vr.CS, uiBytes(src.ModalityCode))
	writeElement(&buf, tag.SamplesPerPixel, vr.US, u16Bytes(src.SamplesPerPixel))
	writeElement(&buf, tag.PhotometricInterpretation, vr.CS, uiBytes(src.PhotometricInterpretation))
	writeElement(&buf, tag.Rows, vr.US, u16Bytes(src.Rows))
	writeElement(&buf, tag.Columns, vr.US, u16Bytes(src.Columns))
	writeElement(&buf, tag.BitsAllocated, vr.US, u16Bytes(src.BitsAllocated))
	writeElement(&buf, tag.BitsStored, vr.US, u16Bytes(src.BitsStored))
	writeElement(&buf, tag.HighBit, vr.US, u16Bytes(src.HighBit))
	writeElement(&buf, tag.PixelRepresentation, vr.US, u16Bytes(src.PixelRepresentation))

	writeEncapsulatedPixelData(&buf, payload)

	return buf.Bytes()
}

// writeElement emits one explicit-VR little-endian element. VRs in the
// 32-bit-length set get 2 reserved bytes and a u32 length; everything
// else a u16 length.
func writeElement(buf *bytes.Buffer, t tag.Tag, v vr.VR, value []byte) {
	writeTag(buf, t)
	buf.WriteString(string(v))
	if v.IsExplicitLength() {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(len(value)))
		buf.Write(b[:])
	} else {
		buf.Write([]byte{0, 0})
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(value)))
		buf.Write(b[:])
	}
	buf.Write(value)
}

// writeEncapsulatedPixelData emits (7FE0,0010) OB with undefined
// length: an empty basic offset table item, one fragment item carrying
// the payload (padded outside its declared length when odd), and the
// sequence delimiter.
func writeEncapsulatedPixelData(buf *bytes.Buffer, payload []byte) {
	writeTag(buf, tag.PixelData)
	buf.WriteString(string(vr.OB))
	buf.Write([]byte{0, 0})
	writeUint32(buf, undefinedLength)

	// Empty basic offset table
	writeTag(buf, tag.Item)
	writeUint32(buf, 0)

	// Fragment
	writeTag(buf, tag.Item)
	writeUint32(buf, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 != 0 {
		buf.WriteByte(0x00)
	}

	// Sequence delimiter
	writeTag(buf, tag.SequenceDelimitation)
	writeUint32(buf, 0)
}

func writeTag(buf *bytes.Buffer, t tag.Tag) {
	var b [4]byte
	binary.LittleEndian.PutUint16(b[:2], t.Group)
	binary.LittleEndian.PutUint16(b[2:], t.Element)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// uiBytes pads a string value to even length with NUL. Conformant
// readers require this for UI and tolerate it for the other string VRs
// this writer emits.
func uiBytes(s string) []byte {
	b := []byte(s)
	if len(b)%2 != 0 {
		b = append(b, 0x00)
	}
	return b
}

func u16Bytes(v int) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	return b[:]
}
