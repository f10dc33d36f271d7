// Package commands implements the nebulaec command line.
package commands

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/piwi3910/nebulaec/internal/config"
	"github.com/piwi3910/nebulaec/internal/erasure/driver"
	"github.com/piwi3910/nebulaec/internal/segment"
	"github.com/piwi3910/nebulaec/internal/storage/shard"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	dataDir     string
	debug       bool
	logLevel    string
	driverType  string
	preset      string
	k           int
	m           int
	algorithm   string
	checksum    string
	compression string
	segmentSize int
	workers     int
}

// app is the state built once the configuration has been loaded.
type app struct {
	flags globalFlags
	cfg   *config.Config
	store *shard.Store
}

// NewRootCmd creates the nebulaec command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "nebulaec",
		Short: "nebulaec - erasure coding toolkit",
		Long: `nebulaec splits files into erasure-coded fragments, stores them in a local
fragment store and rebuilds files or lost fragments from whatever survives.

Configuration is read from nebulaec.yaml (., /etc/nebulaec, $HOME/.nebulaec),
NEBULAEC_* environment variables and the flags below.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "Path to configuration file")
	f.StringVar(&a.flags.dataDir, "data", "", "Fragment store directory")
	f.BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&a.flags.driverType, "driver", "", "Driver type (erasure, striping, null)")
	f.StringVar(&a.flags.preset, "preset", "", "Erasure preset (minimal, standard, maximum)")
	f.IntVarP(&a.flags.k, "data-fragments", "k", 0, "Number of data fragments")
	f.IntVarP(&a.flags.m, "parity-fragments", "m", 0, "Number of parity fragments")
	f.StringVar(&a.flags.algorithm, "algorithm", "", "Erasure algorithm")
	f.StringVar(&a.flags.checksum, "checksum", "", "Fragment checksum type (none, inline, algsig)")
	f.StringVar(&a.flags.compression, "compression", "", "Compression algorithm (none, zstd, lz4, gzip)")
	f.IntVar(&a.flags.segmentSize, "segment-size", 0, "Segment size in bytes")
	f.IntVar(&a.flags.workers, "workers", 0, "Concurrent segment workers")

	rootCmd.AddCommand(newEncodeCmd(a))
	rootCmd.AddCommand(newDecodeCmd(a))
	rootCmd.AddCommand(newReconstructCmd(a))
	rootCmd.AddCommand(newNeededCmd(a))
	rootCmd.AddCommand(newVerifyCmd(a))
	rootCmd.AddCommand(newInfoCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newDeleteCmd(a))

	return rootCmd
}

// setup loads the configuration, configures logging and opens the store.
func (a *app) setup(cmd *cobra.Command) error {
	opts := config.Options{
		DataDir:     a.flags.dataDir,
		DriverType:  a.flags.driverType,
		Preset:      a.flags.preset,
		Algorithm:   a.flags.algorithm,
		Checksum:    a.flags.checksum,
		Compression: a.flags.compression,
		SegmentSize: a.flags.segmentSize,
		Workers:     a.flags.workers,
		LogLevel:    a.flags.logLevel,
	}
	if cmd.Flags().Changed("data-fragments") {
		opts.DataFragments = &a.flags.k
	}
	if cmd.Flags().Changed("parity-fragments") {
		opts.ParityFragments = &a.flags.m
	}

	cfg, err := config.Load(a.flags.configPath, opts)
	if err != nil {
		return err
	}

	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if a.flags.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(cfg.Level())
	}

	store, err := shard.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.store = store

	return nil
}

// factory returns a segment factory for an instrumented driver.
func factory(cfg driver.Config) segment.Factory {
	return func() (driver.Driver, error) {
		d, err := driver.New(cfg)
		if err != nil {
			return nil, err
		}

		return driver.Instrument(d, string(cfg.Type)), nil
	}
}

// segmenter builds a segmenter for the given driver configuration.
func (a *app) segmenter(cfg driver.Config) (*segment.Segmenter, error) {
	return segment.New(factory(cfg), a.cfg.SegmentSize, a.cfg.Workers)
}
