package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openrad/dicompress/pkg/dicom"
)

// NewCompressCmd creates the compress cobra command
func NewCompressCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <input> <output>",
		Short: "Compress a DICOM file",
		Long:  "Reads an uncompressed DICOM instance and writes it back with encapsulated pixel data under the selected codec's transfer syntax.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			codecName, _ := cmd.Flags().GetString("codec")
			modeName, _ := cmd.Flags().GetString("mode")
			ratio, _ := cmd.Flags().GetFloat64("ratio")
			near, _ := cmd.Flags().GetInt("near")
			verify, _ := cmd.Flags().GetBool("verify")
			override, _ := cmd.Flags().GetBool("override-safety")
			freshUID, _ := cmd.Flags().GetBool("fresh-uid")

			kind, ok := dicom.CodecKindFromName(codecName)
			if !ok {
				return fmt.Errorf("unknown codec %q (jpeg2000|j2k, jpegls|jls, rle, uncompressed|raw)", codecName)
			}

			cfg := dicom.DefaultConfig(kind)
			switch modeName {
			case "lossless":
				cfg.Mode = dicom.ModeLossless
			case "lossy":
				cfg.Mode = dicom.ModeLossy
				cfg.Preset = dicom.PresetStandard
				cfg.TargetRatio = ratio
				cfg.QualityLayers = cfg.Preset.QualityLayers()
			case "nearlossless":
				cfg.Mode = dicom.ModeNearLossless
				cfg.NearLosslessTolerance = near
			default:
				return fmt.Errorf("unknown mode %q (lossless, lossy, nearlossless)", modeName)
			}
			cfg.VerifyRoundTrip = verify
			cfg.OverrideSafety = override
			cfg.PreserveMetadata = !freshUID

			res, err := dicom.CompressFile(args[0], cfg, args[1])
			if err != nil {
				return err
			}

			if res.Warning != "" {
				fmt.Printf("Warning: %s\n", res.Warning)
			}
			fmt.Printf("Codec: %s\n", res.CodecName)
			fmt.Printf("TransferSyntax: %s (%s)\n", res.TransferSyntax, res.TransferSyntax.Name())
			fmt.Printf("Lossless: %v\n", res.IsLossless)
			fmt.Printf("Original: %d bytes\n", res.OriginalSize)
			fmt.Printf("Compressed: %d bytes\n", res.CompressedSize)
			fmt.Printf("Ratio: %.2fx (%.1f%% saved)\n", res.Ratio(), res.SavingsPercent())
			fmt.Printf("Elapsed: %dms\n", res.ElapsedMS)
			fmt.Printf("Output: %s\n", res.OutputPath)
			return nil
		},
	}

	pf := cmd.Flags()
	pf.StringP("codec", "c", "jpeg2000", "codec (jpeg2000|j2k, jpegls|jls, rle, uncompressed|raw)")
	pf.StringP("mode", "m", "lossless", "mode (lossless, lossy, nearlossless)")
	pf.Float64P("ratio", "r", 0, "target compression ratio for lossy mode (0 = preset default)")
	pf.IntP("near", "n", 2, "NEAR tolerance for nearlossless mode")
	pf.Bool("verify", false, "decode the output and verify it against the input")
	pf.Bool("override-safety", false, "bypass modality lossless policy (surfaces a warning)")
	pf.Bool("fresh-uid", false, "stamp a newly derived SOP Instance UID on the output")
	return cmd
}
