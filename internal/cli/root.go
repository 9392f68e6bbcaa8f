// Package cli is the hlshorts command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/console"
	"github.com/forPelevin/hlshorts/internal/logger"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
	out        string
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		console.New(os.Stderr).Fail("%v", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rf := &runFlags{}

	root := &cobra.Command{
		Use:   "hlshorts [URL|FILE]",
		Short: "Turn a long video into subtitled vertical shorts",
		Long: `hlshorts downloads or reads a video, transcribes it with whisper.cpp,
asks an LLM for the most engaging moments and renders each one as a 9:16
short with burned-in subtitles.

Without an argument an interactive menu lists the videos in videos/.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShorts(cmd, g, rf, args)
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", config.DefaultFile, "Config file (YAML)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.out, "out", "", "Output directory (default from config: out)")
	addRunFlags(root, rf)

	runCmd := &cobra.Command{
		Use:   "run [URL|FILE]",
		Short: "Produce shorts from a video (the default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShorts(cmd, g, rf, args)
		},
	}
	addRunFlags(runCmd, rf)

	root.AddCommand(runCmd, newWatchCmd(g), newHistoryCmd(g), newSweepCmd(g), newDoctorCmd(g))
	return root
}

// loadConfig reads the config file, the environment and global flags, then
// lets overlay apply command flags before validation. needLLM requires the
// provider credential, even for --times runs.
func loadConfig(cmd *cobra.Command, g *globalFlags, needLLM bool, overlay func(*config.Config)) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(g.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if g.out != "" {
		cfg.Paths.Output = g.out
	}
	if g.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(g.logLevel)
	}
	if overlay != nil {
		overlay(&cfg)
	}

	validate := cfg.Normalize
	if needLLM {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return cfg, nil, fmt.Errorf("%w: logger: %w", config.ErrConfig, err)
	}
	return cfg, log, nil
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
