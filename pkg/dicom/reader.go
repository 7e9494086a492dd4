package dicom

import (
	"encoding/binary"

	"github.com/openrad/dicompress/pkg/dicom/tag"
	"github.com/openrad/dicompress/pkg/dicom/transfer"
	"github.com/openrad/dicompress/pkg/dicom/vr"
)

const preambleSize = 132 // 128 zero bytes + "DICM"

// ParseDicom parses a whole in-memory DICOM file.
//
// The parser assumes explicit VR little endian for the file meta group
// and the dataset alike; implicit-VR inputs will mis-parse. Parsing is
// best-effort: a malformed or truncated tail ends the element loop
// cleanly and the instance keeps whatever parsed before it.
func ParseDicom(data []byte) (*Instance, error) {
	if len(data) < preambleSize {
		return nil, newError(KindInvalidFormat, "file is %d bytes, shorter than the %d-byte DICOM preamble", len(data), preambleSize)
	}
	if string(data[128:132]) != "DICM" {
		return nil, newError(KindInvalidFormat, "missing DICM magic")
	}

	inst := &Instance{Elements: make(map[tag.Tag]*Element), SourceSize: len(data)}

	pos := preambleSize
	for pos+8 <= len(data) {
		t := tag.New(
			binary.LittleEndian.Uint16(data[pos:]),
			binary.LittleEndian.Uint16(data[pos+2:]),
		)

		// Item and delimiter tags carry no VR, only a 32-bit length.
		if t.IsItem() {
			length := binary.LittleEndian.Uint32(data[pos+4:])
			pos += 8
			if length != undefinedLength && int(length) <= len(data)-pos {
				pos += int(length)
			}
			continue
		}

		v := vr.VR(data[pos+4 : pos+6])
		if !plausibleVR(v) {
			// Not explicit VR at this offset; the stream is misaligned
			// or malformed. Stop and keep what parsed.
			break
		}
		var length uint32
		var headerLen int
		if v.IsExplicitLength() {
			length = uint32(binary.LittleEndian.Uint16(data[pos+6:]))
			headerLen = 8
		} else {
			if pos+12 > len(data) {
				break
			}
			length = binary.LittleEndian.Uint32(data[pos+8:])
			headerLen = 12
		}

		if length == undefinedLength {
			if t.Equals(tag.PixelData) {
				next := parseEncapsulated(data, pos+headerLen, inst)
				pos = next
				continue
			}
			// Sequences are not parsed; skip to the sequence delimiter.
			next, ok := skipToSequenceDelimiter(data, pos+headerLen)
			if !ok {
				break
			}
			pos = next
			continue
		}

		valueStart := pos + headerLen
		if int(length) < 0 || int(length) > len(data)-valueStart {
			// Overrun: stop the loop, keep what parsed.
			break
		}
		value := data[valueStart : valueStart+int(length)]
		inst.Elements[t] = &Element{Tag: t, VR: v, Data: value}
		populateKnown(inst, t, value)
		pos = valueStart + int(length)
	}

	return inst, nil
}

const undefinedLength = 0xFFFFFFFF

func plausibleVR(v vr.VR) bool {
	if len(v) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if v[i] < 'A' || v[i] > 'Z' {
			return false
		}
	}
	return true
}

// populateKnown decodes the typed view of the attribute subset the
// pipeline needs.
func populateKnown(inst *Instance, t tag.Tag, value []byte) {
	str := func() string { return trimDicomString(value) }
	u16 := func() int {
		if len(value) < 2 {
			return 0
		}
		return int(binary.LittleEndian.Uint16(value))
	}

	switch t {
	case tag.TransferSyntaxUID:
		inst.TransferSyntax = transfer.FromUID(str())
	case tag.MediaStorageSOPClassUID, tag.SOPClassUID:
		inst.SOPClassUID = str()
	case tag.MediaStorageSOPInstanceUID, tag.SOPInstanceUID:
		inst.SOPInstanceUID = str()
	case tag.Modality:
		inst.ModalityCode = str()
	case tag.PhotometricInterpretation:
		inst.PhotometricInterpretation = str()
	case tag.Rows:
		inst.Rows = u16()
	case tag.Columns:
		inst.Columns = u16()
	case tag.BitsAllocated:
		inst.BitsAllocated = u16()
	case tag.BitsStored:
		inst.BitsStored = u16()
	case tag.HighBit:
		inst.HighBit = u16()
	case tag.PixelRepresentation:
		inst.PixelRepresentation = u16()
	case tag.SamplesPerPixel:
		inst.SamplesPerPixel = u16()
	case tag.PixelData:
		inst.PixelData = value
		inst.Encapsulated = false
	}
}

// parseEncapsulated walks the item sequence of an undefined-length
// pixel-data element: basic offset table first, then one item per
// fragment, ended by the sequence delimiter. A tag that is not an item
// ends the walk leniently (odd fragments are padded outside their
// declared length, which misaligns the stream behind them).
func parseEncapsulated(data []byte, pos int, inst *Instance) int {
	start := pos
	first := true
	for pos+8 <= len(data) {
		t := tag.New(
			binary.LittleEndian.Uint16(data[pos:]),
			binary.LittleEndian.Uint16(data[pos+2:]),
		)
		length := binary.LittleEndian.Uint32(data[pos+4:])

		if t.Equals(tag.SequenceDelimitation) {
			pos += 8
			break
		}
		if !t.Equals(tag.Item) || length == undefinedLength {
			break
		}
		if int(length) > len(data)-pos-8 {
			break
		}

		payload := data[pos+8 : pos+8+int(length)]
		if first {
			// Basic offset table; offsets are not needed for the
			// single-frame pipeline.
			first = false
		} else {
			inst.Fragments = append(inst.Fragments, payload)
		}
		pos += 8 + int(length)
	}

	inst.Encapsulated = true
	inst.PixelData = data[start:pos]
	inst.Elements[tag.PixelData] = &Element{Tag: tag.PixelData, VR: vr.OB, Data: inst.PixelData}
	return pos
}

// skipToSequenceDelimiter scans for (FFFE,E0DD) and returns the
// position just past its zero length field.
func skipToSequenceDelimiter(data []byte, pos int) (int, bool) {
	for pos+8 <= len(data) {
		g := binary.LittleEndian.Uint16(data[pos:])
		e := binary.LittleEndian.Uint16(data[pos+2:])
		if g == tag.SequenceDelimitation.Group && e == tag.SequenceDelimitation.Element {
			return pos + 8, true
		}
		pos += 2
	}
	return 0, false
}
