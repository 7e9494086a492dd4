// Package dicom implements the subset of DICOM needed by the pixel
// compression pipeline: a best-effort explicit-VR parser, a Part-10
// writer with encapsulated pixel data, the codec layer, and the
// modality policy that constrains it.
package dicom

import (
	"encoding/binary"
	"strings"

	"github.com/openrad/dicompress/pkg/dicom/tag"
	"github.com/openrad/dicompress/pkg/dicom/transfer"
	"github.com/openrad/dicompress/pkg/dicom/vr"
)

// Element is one data element as read from the file: tag, VR, and the
// raw value bytes. The reader stores unknown elements verbatim and
// never interprets them.
type Element struct {
	Tag  tag.Tag
	VR   vr.VR
	Data []byte
}

// GetString returns the element value as a trimmed string.
func (e *Element) GetString() string {
	return trimDicomString(e.Data)
}

// GetUint16 returns the element value as a little-endian uint16.
func (e *Element) GetUint16() (uint16, bool) {
	if len(e.Data) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(e.Data), true
}

// Instance is the parsed, read-only view of a DICOM file.
type Instance struct {
	Elements map[tag.Tag]*Element

	// SourceSize is the byte length of the file this instance was
	// parsed from, 0 for hand-built instances.
	SourceSize int

	TransferSyntax transfer.Syntax
	SOPClassUID    string
	SOPInstanceUID string
	ModalityCode   string

	Rows                      int
	Columns                   int
	BitsAllocated             int
	BitsStored                int
	HighBit                   int
	PixelRepresentation       int
	SamplesPerPixel           int
	PhotometricInterpretation string

	// PixelData is the payload of (7FE0,0010): a contiguous byte run
	// for native syntaxes, or the raw bytes of the encapsulated
	// element for compressed ones.
	PixelData    []byte
	Encapsulated bool
	// Fragments holds the encapsulated item payloads, basic offset
	// table excluded.
	Fragments [][]byte
}

// Modality returns the typed modality for the instance's code.
func (inst *Instance) Modality() Modality {
	return ModalityFromCode(inst.ModalityCode)
}

// FindElement returns the element for a tag, if present.
func (inst *Instance) FindElement(t tag.Tag) (*Element, bool) {
	e, ok := inst.Elements[t]
	return e, ok
}

// EffectiveBits returns BitsStored when it is set, else BitsAllocated.
func (inst *Instance) EffectiveBits() int {
	if inst.BitsStored > 0 {
		return inst.BitsStored
	}
	return inst.BitsAllocated
}

// FirstFragment returns the first encapsulated fragment, or the native
// pixel run when the instance is not encapsulated.
func (inst *Instance) FirstFragment() []byte {
	if inst.Encapsulated {
		if len(inst.Fragments) == 0 {
			return nil
		}
		return inst.Fragments[0]
	}
	return inst.PixelData
}

// GetImageData builds the uncompressed frame record from the parsed
// attributes. It fails when the instance has no pixel payload or when
// the payload is still encapsulated.
func (inst *Instance) GetImageData() (*ImageData, error) {
	if len(inst.PixelData) == 0 {
		return nil, newError(KindDicomParse, "no pixel data")
	}
	if inst.Encapsulated {
		return nil, newError(KindImageData, "pixel data is encapsulated under %s; decode it with a codec",
			inst.TransferSyntax.Name())
	}

	bits := inst.EffectiveBits()
	spp := inst.SamplesPerPixel
	if spp == 0 {
		spp = 1
	}

	img := &ImageData{
		Width:                     inst.Columns,
		Height:                    inst.Rows,
		BitsPerSample:             bits,
		SamplesPerPixel:           spp,
		Signed:                    inst.PixelRepresentation == 1,
		PhotometricInterpretation: inst.PhotometricInterpretation,
	}

	want := img.ExpectedSize()
	if want <= 0 || want > len(inst.PixelData) {
		return nil, newError(KindImageData,
			"pixel data is %d bytes but attributes imply %d", len(inst.PixelData), want)
	}
	// Native runs may carry an even-length pad byte; slice to the
	// attribute-implied size.
	img.Pixels = inst.PixelData[:want]
	return img, nil
}

// trimDicomString strips the trailing NUL and space padding DICOM
// string values carry.
func trimDicomString(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}
