// Package cmd provides the command-line interface for pmemctl.
package cmd

import (
	"errors"

	"github.com/sarchlab/pmem/cfg"
	"github.com/sarchlab/pmem/mem/memmap"
	"github.com/sarchlab/pmem/mem/pagetable"
	"github.com/sarchlab/pmem/mem/pmem"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	config cfg.Config
	logger *zap.Logger
}

// NewRootCmd creates the pmemctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use: "pmemctl",
		Short: "pmemctl builds the physical page permission table from a " +
			"memory map.",
		Long: `pmemctl builds the physical page permission table from a ` +
			`memory map, the way the kernel does at boot, and reports, ` +
			`records, or serves the result.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("map", "", "memory map file, in YAML or JSON")
	flags.Bool("verbose", false, "log the initialization steps")
	flags.String("env-file", ".env", "dotenv file to load the configuration from")

	rootCmd.AddCommand(
		newInitCmd(opts),
		newServeCmd(opts),
		newShowCmd(opts),
	)

	return rootCmd
}

// Execute runs the command line and returns the exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err != nil {
		return 1
	}

	return 0
}

func (o *options) load(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")

	config, err := cfg.Parse(envFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("map") {
		config.MapFile, _ = cmd.Flags().GetString("map")
	}

	if cmd.Flags().Changed("verbose") {
		config.Verbose, _ = cmd.Flags().GetBool("verbose")
	}

	o.config = config

	o.logger, err = newLogger(config.Verbose)

	return err
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

	return c.Build()
}

// initialize builds a fresh page table from the configured memory map.
func (o *options) initialize() (pagetable.Table, memmap.Map, error) {
	if o.config.MapFile == "" {
		return nil, nil, errors.New(
			"no memory map given, use --map or PMEM_MAP_FILE")
	}

	regions, err := memmap.LoadFile(o.config.MapFile)
	if err != nil {
		return nil, nil, err
	}

	table := pagetable.NewTable()

	initializer := pmem.MakeBuilder().
		WithProber(memmap.StaticProber{Regions: regions}).
		WithTable(table).
		WithLogger(o.logger).
		Build()
	nps := initializer.Init(0)

	o.logger.Info("page table initialized",
		zap.String("map", o.config.MapFile),
		zap.Uint64("num_pages", nps))

	return table, initializer.MemoryMap(), nil
}
