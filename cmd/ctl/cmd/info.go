package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openrad/dicompress/pkg/dicom"
)

// NewInfoCmd creates the info cobra command
func NewInfoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <input>",
		Short: "Print parsed DICOM attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			inst, err := dicom.ParseDicom(data)
			if err != nil {
				return err
			}

			fmt.Printf("TransferSyntax: %s (%s)\n", inst.TransferSyntax, inst.TransferSyntax.Name())
			fmt.Printf("SOPClassUID: %s\n", inst.SOPClassUID)
			fmt.Printf("SOPInstanceUID: %s\n", inst.SOPInstanceUID)
			fmt.Printf("Modality: %s\n", inst.ModalityCode)
			fmt.Printf("Rows: %d\n", inst.Rows)
			fmt.Printf("Columns: %d\n", inst.Columns)
			fmt.Printf("BitsAllocated: %d\n", inst.BitsAllocated)
			fmt.Printf("BitsStored: %d\n", inst.BitsStored)
			fmt.Printf("HighBit: %d\n", inst.HighBit)
			fmt.Printf("PixelRepresentation: %d (0=unsigned, 1=signed)\n", inst.PixelRepresentation)
			fmt.Printf("SamplesPerPixel: %d\n", inst.SamplesPerPixel)
			fmt.Printf("PhotometricInterpretation: %s\n", inst.PhotometricInterpretation)
			fmt.Printf("Encapsulated: %v\n", inst.Encapsulated)
			fmt.Printf("PixelDataSize: %d bytes\n", len(inst.PixelData))
			if inst.Encapsulated {
				fmt.Printf("Fragments: %d\n", len(inst.Fragments))
			}
			fmt.Printf("Elements: %d\n", len(inst.Elements))
			return nil
		},
	}
	return cmd
}
