// Package jpeg2k implements the framed JPEG 2000 codestream used for
// encapsulated pixel data. The marker structure follows ITU-T Rec.
// T.800 (SOC/SIZ/COD/QCD/SOT/SOD/EOC with legal parameter values); the
// entropy payload is a differential representation packed with
// PackBits rather than EBCOT, so streams round-trip within this module
// only.
package jpeg2k

// JPEG 2000 marker codes (ITU-T T.800 Table A.1)
const (
	// Delimiting markers
	MarkerSOC = 0xFF4F // Start of codestream
	MarkerSOT = 0xFF90 // Start of tile-part
	MarkerSOD = 0xFF93 // Start of data
	MarkerEOC = 0xFFD9 // End of codestream

	// Fixed information markers
	MarkerSIZ = 0xFF51 // Image and tile size

	// Functional markers
	MarkerCOD = 0xFF52 // Coding style default
	MarkerQCD = 0xFF5C // Quantization default
	MarkerCOM = 0xFF64 // Comment
)

// ProgressionOrder defines the progression order for the codestream
type ProgressionOrder byte

const (
	ProgressionLRCP ProgressionOrder = 0 // Layer-Resolution-Component-Position
	ProgressionRLCP ProgressionOrder = 1 // Resolution-Layer-Component-Position
	ProgressionRPCL ProgressionOrder = 2 // Resolution-Position-Component-Layer
	ProgressionPCRL ProgressionOrder = 3 // Position-Component-Resolution-Layer
	ProgressionCPRL ProgressionOrder = 4 // Component-Position-Resolution-Layer
)

// TransformType identifies the wavelet transform signalled in COD
type TransformType byte

const (
	TransformIrreversible97 TransformType = 0 // 9/7 irreversible (lossy)
	TransformReversible53   TransformType = 1 // 5/3 reversible (lossless)
)

// COD parameter defaults carried by every stream this encoder emits.
const (
	defaultDecompLevels  = 5
	defaultCodeBlockExpW = 4
	defaultCodeBlockExpH = 4
)

// QCD parameter values (ITU-T T.800 A.6.4)
const (
	qcdStyleReversible = 0x22 // style bits 00010 (scalar expounded), 1 guard bit
	qcdStyleScalar     = 0x42 // style bits 00010 (scalar expounded), 2 guard bits
	qcdStepScalar      = 0x0088
)
