// Package config loads the process-wide startup settings: one
// PersistentFlags block bound to plain Go fields, and Execute() run
// once at startup rather than per-subcommand, since this system has
// exactly one command line shape (`nebulite <command>[;<command>;...]`).
package config

import (
	"strings"

	"github.com/spf13/cobra"
)

// Config is the resolved set of startup settings: resolution, frame
// rate, logging, and the engine's tunable runtime knobs.
type Config struct {
	ResolutionX float64
	ResolutionY float64
	TargetFPS   int
	RecoverMode bool

	LogPath         string
	ErrorLogEnabled bool
	LogLevel        string

	BatchCostGoal     uint64
	ThreadRunnerCount int

	// SweepProbability is the Pair Engine's per-frame listener-sweep
	// chance, tunable instead of a hardcoded 1/100.
	SweepProbability float64

	StrictSchema bool

	// Command is the startup command line, joined from the remaining
	// positional arguments (spec 6: "<command>[;<command>;...]"). Empty
	// means the zero-argument default idle state applies.
	Command string
}

// defaults returns the zero-argument startup state: the process
// enters a default set-fps 60 idle state, plus the ambient logging
// and engine knobs.
func defaults() *Config {
	return &Config{
		ResolutionX:       1280,
		ResolutionY:       720,
		TargetFPS:         60,
		LogPath:           "errors.log",
		LogLevel:          "info",
		BatchCostGoal:     1000,
		ThreadRunnerCount: 4,
		SweepProbability:  1.0 / 100.0,
	}
}

// Load parses args (typically os.Args[1:]) into a Config: one root
// cobra.Command with PersistentFlags bound directly to local variables
// and a RunE that just records what was parsed.
func Load(args []string) (*Config, error) {
	cfg := defaults()

	root := &cobra.Command{
		Use:           "nebulite [command]",
		Short:         "Run the Nebulite scene/rule engine",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, positional []string) error {
			cfg.Command = strings.Join(positional, " ")
			return nil
		},
	}

	root.PersistentFlags().Float64Var(&cfg.ResolutionX, "res-x", cfg.ResolutionX, "tile width in world units")
	root.PersistentFlags().Float64Var(&cfg.ResolutionY, "res-y", cfg.ResolutionY, "tile height in world units")
	root.PersistentFlags().IntVar(&cfg.TargetFPS, "fps", cfg.TargetFPS, "target frames per second")
	root.PersistentFlags().BoolVar(&cfg.RecoverMode, "recover", cfg.RecoverMode, "recover mode; stored in Config.RecoverMode, which no component reads")
	root.PersistentFlags().StringVar(&cfg.LogPath, "log-path", cfg.LogPath, "path for the errors.log file sink")
	root.PersistentFlags().BoolVar(&cfg.ErrorLogEnabled, "errorlog", cfg.ErrorLogEnabled, "open the error log file sink at startup")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	root.PersistentFlags().Uint64Var(&cfg.BatchCostGoal, "batch-cost-goal", cfg.BatchCostGoal, "target estimated cost per tile batch")
	root.PersistentFlags().IntVar(&cfg.ThreadRunnerCount, "threadrunner-count", cfg.ThreadRunnerCount, "Pair Engine worker count")
	root.PersistentFlags().Float64Var(&cfg.SweepProbability, "sweep-probability", cfg.SweepProbability, "listener-sweep chance per processed ruleset")
	root.PersistentFlags().BoolVar(&cfg.StrictSchema, "strict-schema", cfg.StrictSchema, "promote a schema violation to a critical error")

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}
