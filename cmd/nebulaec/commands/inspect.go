package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/piwi3910/nebulaec/internal/erasure/driver"
)

// ErrVerifyFailed is returned by verify when a stripe is inconsistent.
var ErrVerifyFailed = errors.New("stripe verification failed")

func newNeededCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "needed <name>",
		Short: "Show which fragments must be fetched to rebuild missing ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, obj, err := a.store.GetObject(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			d, err := factory(m.Driver)()
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEGMENT\tMISSING\tNEEDED")

			for s, fragments := range obj.Segments {
				var missing []int
				for i, frag := range fragments {
					if frag == nil {
						missing = append(missing, i)
					}
				}

				if len(missing) == 0 {
					fmt.Fprintf(w, "%d\t-\t-\n", s)
					continue
				}

				needed, err := d.FragmentsNeeded(missing)
				if err != nil {
					fmt.Fprintf(w, "%d\t%v\t%v\n", s, missing, err)
					continue
				}

				fmt.Fprintf(w, "%d\t%v\t%v\n", s, missing, needed)
			}

			return w.Flush()
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <name>",
		Short: "Check that the stored fragments of every segment belong together",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			m, obj, err := a.store.GetObject(cmd.Context(), name)
			if err != nil {
				return err
			}

			d, err := factory(m.Driver)()
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			failed := 0
			for s, fragments := range obj.Segments {
				blobs := make([][]byte, 0, len(fragments))
				for _, frag := range fragments {
					if frag == nil {
						continue
					}

					blob, err := d.GetMetadata(frag)
					if err != nil {
						return fmt.Errorf("segment %d: %w", s, err)
					}
					blobs = append(blobs, blob)
				}

				ok, err := d.VerifyStripeMetadata(blobs)
				if err != nil {
					return fmt.Errorf("segment %d: %w", s, err)
				}

				status := "ok"
				if !ok {
					status = "FAILED"
					failed++
				}

				fmt.Fprintf(cmd.OutOrStdout(), "segment %d: %d/%d fragments, %s\n", s, len(blobs), len(fragments), status)
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d segment(s) of %s", ErrVerifyFailed, failed, len(obj.Segments), name)
			}

			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the segment sizing plan for an object size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := humanize.ParseBytes(size)
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", size, err)
			}

			cfg := a.cfg.Driver.Config

			d, err := driver.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			info, err := d.GetSegmentInfo(int(n), a.cfg.SegmentSize)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Driver:\t%s (k=%d, m=%d, %s, %s)\n",
				cfg.Type, cfg.DataFragments, cfg.ParityFragments, cfg.Algorithm, cfg.Checksum)
			fmt.Fprintf(w, "Overhead:\t%.1f%% (tolerates %d lost fragments)\n", cfg.StorageOverhead(), cfg.MaxLoss())
			fmt.Fprintf(w, "Object size:\t%s\n", humanize.IBytes(n))
			fmt.Fprintf(w, "Segments:\t%d\n", info.NumSegments)
			fmt.Fprintf(w, "Segment size:\t%s\n", humanize.IBytes(uint64(info.SegmentSize)))
			fmt.Fprintf(w, "Last segment size:\t%s\n", humanize.IBytes(uint64(info.LastSegmentSize)))
			fmt.Fprintf(w, "Fragment size:\t%s\n", humanize.IBytes(uint64(info.FragmentSize)))
			fmt.Fprintf(w, "Last fragment size:\t%s\n", humanize.IBytes(uint64(info.LastFragmentSize)))

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&size, "size", "", "Object size (e.g. 1000, 64MiB, 2GB)")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List objects in the fragment store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.store.ListObjects(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tSEGMENTS\tDRIVER")

			for _, name := range names {
				m, err := a.store.ReadManifest(name)
				if err != nil {
					return err
				}

				fmt.Fprintf(w, "%s\t%s\t%d\t%s %d+%d\n", m.Name, humanize.IBytes(uint64(m.Size)),
					m.Info.NumSegments, m.Driver.Type, m.Driver.DataFragments, m.Driver.ParityFragments)
			}

			return w.Flush()
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an object and all of its fragments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteObject(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])

			return nil
		},
	}
}
