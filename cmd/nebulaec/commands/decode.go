package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/piwi3910/nebulaec/internal/compression"
)

// File permission for decoded output.
const outputPermissions = 0600

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <name> <output-file|->",
		Short: "Rebuild a file from its surviving fragments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, output := args[0], args[1]

			m, obj, err := a.store.GetObject(cmd.Context(), name)
			if err != nil {
				return err
			}

			seg, err := a.segmenter(m.Driver)
			if err != nil {
				return err
			}

			stored, err := seg.Decode(cmd.Context(), obj)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", name, err)
			}

			data, err := compression.Restore(compression.Algorithm(m.Compression), stored)
			if err != nil {
				return err
			}

			if len(data) != m.Size {
				return fmt.Errorf("decoded %d bytes, manifest says %d", len(data), m.Size)
			}

			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := os.WriteFile(output, data, outputPermissions); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Decoded %s to %s (%s)\n", name, output, humanize.IBytes(uint64(len(data))))

			return nil
		},
	}
}
