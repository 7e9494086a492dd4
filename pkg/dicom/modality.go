package dicom

import "strings"

// Modality identifies the acquisition modality of a DICOM instance.
type Modality int

const (
	ModalityOther Modality = iota
	ModalityCT             // Computed Tomography
	ModalityMR             // Magnetic Resonance
	ModalityCR             // Computed Radiography
	ModalityDX             // Digital Radiography
	ModalityMG             // Mammography
	ModalityUS             // Ultrasound
	ModalityNM             // Nuclear Medicine
	ModalityPT             // Positron Emission Tomography
	ModalitySM             // Slide Microscopy
)

// ModalityFromCode maps a DICOM modality code string (0008,0060) to a
// Modality. Unknown codes map to ModalityOther.
func ModalityFromCode(code string) Modality {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "CT":
		return ModalityCT
	case "MR":
		return ModalityMR
	case "CR":
		return ModalityCR
	case "DX":
		return ModalityDX
	case "MG":
		return ModalityMG
	case "US":
		return ModalityUS
	case "NM":
		return ModalityNM
	case "PT":
		return ModalityPT
	case "SM":
		return ModalitySM
	default:
		return ModalityOther
	}
}

func (m Modality) String() string {
	switch m {
	case ModalityCT:
		return "CT"
	case ModalityMR:
		return "MR"
	case ModalityCR:
		return "CR"
	case ModalityDX:
		return "DX"
	case ModalityMG:
		return "MG"
	case ModalityUS:
		return "US"
	case ModalityNM:
		return "NM"
	case ModalityPT:
		return "PT"
	case ModalitySM:
		return "SM"
	default:
		return "OT"
	}
}

// RequiresLossless reports whether regulatory policy forbids lossy
// compression for this modality. Mammography must stay lossless.
func (m Modality) RequiresLossless() bool {
	return m == ModalityMG
}

// RecommendedCodec returns the codec kind best suited to this modality.
func (m Modality) RecommendedCodec() CodecKind {
	switch m {
	case ModalityCT, ModalityMR, ModalityNM, ModalityPT:
		return CodecJPEG2000
	case ModalityCR, ModalityDX, ModalityMG:
		return CodecJPEGLS
	case ModalityUS, ModalitySM:
		return CodecJPEG2000
	default:
		return CodecJPEGLS
	}
}

// DefaultPreset returns the quality preset to use when the caller does
// not pick one.
func (m Modality) DefaultPreset() QualityPreset {
	switch m {
	case ModalityMG:
		return PresetDiagnostic
	case ModalityCT, ModalityMR:
		return PresetHighQuality
	case ModalityUS, ModalitySM:
		return PresetStandard
	default:
		return PresetHighQuality
	}
}

// QualityPreset names a compression quality tier.
type QualityPreset int

const (
	PresetDiagnostic QualityPreset = iota // lossless, full fidelity
	PresetHighQuality
	PresetStandard
	PresetPreview
)

func (p QualityPreset) String() string {
	switch p {
	case PresetDiagnostic:
		return "diagnostic"
	case PresetHighQuality:
		return "high-quality"
	case PresetStandard:
		return "standard"
	case PresetPreview:
		return "preview"
	default:
		return "unknown"
	}
}

// TargetRatio returns the compression ratio the preset aims for, or 0
// when the preset is lossless and no ratio applies.
func (p QualityPreset) TargetRatio() float64 {
	switch p {
	case PresetHighQuality:
		return 10.0
	case PresetStandard:
		return 20.0
	case PresetPreview:
		return 50.0
	default:
		return 0
	}
}

// QualityLayers returns the number of quality layers encoded for this preset.
func (p QualityPreset) QualityLayers() int {
	switch p {
	case PresetDiagnostic:
		return 1
	case PresetHighQuality:
		return 5
	case PresetStandard:
		return 3
	case PresetPreview:
		return 2
	default:
		return 1
	}
}
