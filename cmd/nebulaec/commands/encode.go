package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/piwi3910/nebulaec/internal/compression"
	"github.com/piwi3910/nebulaec/internal/storage/shard"
)

func newEncodeCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "encode <file>",
		Short: "Encode a file into the fragment store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			localFile := args[0]

			// If name is empty, use filename
			if name == "" {
				name = filepath.Base(localFile)
			}

			//nolint:gosec // G304: user-supplied input file
			data, err := os.ReadFile(localFile)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			stored, stats, err := compression.Apply(a.cfg.Compression, data)
			if err != nil {
				return err
			}

			seg, err := a.segmenter(a.cfg.Driver.Config)
			if err != nil {
				return err
			}

			obj, err := seg.Encode(cmd.Context(), stored)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", localFile, err)
			}

			fragments := 0
			if len(obj.Segments) > 0 {
				fragments = len(obj.Segments[0])
			}

			m := &shard.Manifest{
				Name:        name,
				Size:        len(data),
				StoredSize:  len(stored),
				Compression: string(stats.Algorithm),
				Driver:      a.cfg.Driver.Config,
				Info:        obj.Info,
				Fragments:   fragments,
			}

			if err := a.store.PutObject(cmd.Context(), m, obj); err != nil {
				return fmt.Errorf("failed to store fragments: %w", err)
			}

			log.Info().
				Str("name", name).
				Int("segments", obj.Info.NumSegments).
				Str("compression", m.Compression).
				Msg("Encoded object")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Encoded %s as %s\n", localFile, name)
			fmt.Fprintf(out, "  Size:        %s\n", humanize.IBytes(uint64(len(data))))
			if stats.Algorithm != compression.AlgorithmNone {
				fmt.Fprintf(out, "  Compressed:  %s (%s, %.1f%% saved)\n",
					humanize.IBytes(uint64(len(stored))), stats.Algorithm, stats.SpaceSavedPercent())
			}
			fmt.Fprintf(out, "  Segments:    %d\n", obj.Info.NumSegments)
			fmt.Fprintf(out, "  Fragments:   %d per segment (k=%d, m=%d)\n",
				fragments, a.cfg.Driver.DataFragments, a.cfg.Driver.ParityFragments)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Object name (defaults to the file name)")

	return cmd
}
