package commands

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/nebulaec/internal/segment"
)

// missingIndexes returns the sorted union of nil fragment slots over all segments.
func missingIndexes(obj *segment.Object) []int {
	var missing []int
	for _, fragments := range obj.Segments {
		for i, frag := range fragments {
			if frag == nil && !slices.Contains(missing, i) {
				missing = append(missing, i)
			}
		}
	}

	slices.Sort(missing)

	return missing
}

func newReconstructCmd(a *app) *cobra.Command {
	var indexes []int

	cmd := &cobra.Command{
		Use:   "reconstruct <name>",
		Short: "Rebuild lost fragments and write them back to the store",
		Long: `Rebuild fragments of every segment. Without --index every fragment that is
missing from the store is rebuilt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			m, obj, err := a.store.GetObject(cmd.Context(), name)
			if err != nil {
				return err
			}

			targets := slices.Clone(indexes)
			if len(targets) == 0 {
				targets = missingIndexes(obj)
			}
			if len(targets) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to reconstruct\n", name)
				return nil
			}
			slices.Sort(targets)

			seg, err := a.segmenter(m.Driver)
			if err != nil {
				return err
			}

			rebuilt, err := seg.Reconstruct(cmd.Context(), obj, targets)
			if err != nil {
				return fmt.Errorf("failed to reconstruct %s: %w", name, err)
			}

			g, gctx := errgroup.WithContext(cmd.Context())
			workers := a.cfg.Workers
			if workers <= 0 {
				workers = runtime.GOMAXPROCS(0)
			}
			g.SetLimit(workers)

			for s, fragments := range rebuilt {
				for j, frag := range fragments {
					g.Go(func() error {
						_, err := a.store.WriteFragment(gctx, name, s, targets[j], frag)
						return err
					})
				}
			}

			if err := g.Wait(); err != nil {
				return fmt.Errorf("failed to store rebuilt fragments: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reconstructed fragments %v of %d segment(s) of %s\n", targets, len(rebuilt), name)

			return nil
		},
	}

	cmd.Flags().IntSliceVar(&indexes, "index", nil, "Fragment indexes to rebuild (comma separated)")

	return cmd
}
