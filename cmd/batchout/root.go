package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ilia-khaustov/batchout-go/internal/batch"
	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/logging"
)

// rootFlags holds the root command's persistent run options. batchout has
// no subcommands besides version, so the root command itself runs the batch
// daemon.
type rootFlags struct {
	configPath string
	importFrom []string
	numBatches int
	minWaitSec int
	maxWaitSec int
	logLevel   int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "batchout",
		Short:         "Run a declarative batch data pipeline from a YAML config",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringArrayVarP(&flags.importFrom, "import-from", "I", nil, "Extra component modules (accepted for CLI-surface compatibility, otherwise a no-op)")
	cmd.Flags().IntVarP(&flags.numBatches, "num-batches", "n", -1, "Stop after N batches (never stop if -1)")
	cmd.Flags().IntVarP(&flags.minWaitSec, "min-wait-sec", "w", 0, "Minimum seconds to wait between batches")
	cmd.Flags().IntVarP(&flags.maxWaitSec, "max-wait-sec", "W", 1, "Maximum seconds to wait between batches")
	cmd.Flags().IntVarP(&flags.logLevel, "log-level", "l", 20, "Logging level, Python logging numbers (10=DEBUG .. 50=CRITICAL)")
	_ = cmd.MarkFlagRequired("config")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func runBatch(cmd *cobra.Command, flags *rootFlags) error {
	if err := config.ValidateRunOptions(config.RunOptions{
		NumBatches: flags.numBatches,
		MinWaitSec: flags.minWaitSec,
		MaxWaitSec: flags.maxWaitSec,
	}); err != nil {
		return fmt.Errorf("invalid run options: %w", err)
	}

	log := logging.New(logging.Options{Level: pythonLevelToName(flags.logLevel), Human: true})

	for _, mod := range flags.importFrom {
		log.Info("import-from is a no-op in this build", "module", mod)
	}

	doc, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	b, err := batch.FromConfig(doc, log)
	if err != nil {
		return fmt.Errorf("building batch: %w", err)
	}

	return b.RunForever(
		cmd.Context(),
		flags.numBatches,
		time.Duration(flags.minWaitSec)*time.Second,
		time.Duration(flags.maxWaitSec)*time.Second,
	)
}

// pythonLevelToName translates the --log-level flag's numeric scale
// (10=DEBUG, 20=INFO, 30=WARNING, 40=ERROR and above) into the named level
// logging.Options expects.
func pythonLevelToName(level int) string {
	switch {
	case level <= 10:
		return "debug"
	case level <= 20:
		return "info"
	case level <= 30:
		return "warn"
	default:
		return "error"
	}
}
