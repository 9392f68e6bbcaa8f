package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/console"
	"github.com/forPelevin/hlshorts/internal/deps"
	"github.com/forPelevin/hlshorts/internal/pipeline"
)

func newDoctorCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg, ffprobe, whisper.cpp and yt-dlp are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, g, false, nil)
			if err != nil {
				return err
			}
			defer log.Sync()
			return doctor(console.New(cmd.OutOrStdout()), cfg)
		},
	}
}

func doctor(p *console.Printer, cfg config.Config) error {
	paths := pipeline.DepPaths(cfg)
	missing := 0
	for _, t := range deps.Tools(paths) {
		path, err := t.Check()
		switch {
		case err == nil:
			p.OK("%-12s %s", t.Name, path)
		case t.Optional:
			p.Warn("%-12s %v (only needed for URLs)", t.Name, err)
		default:
			p.Fail("%-12s %v", t.Name, err)
			missing++
		}
	}
	if err := deps.CheckModel(paths.WhisperModel); err != nil {
		p.Fail("%-12s %v", "model", err)
		missing++
	} else {
		p.OK("%-12s %s", "model", paths.WhisperModel)
	}

	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		p.Warn("%-12s %s is not set (only --times runs work)", cfg.LLM.Provider, config.KeyEnv(cfg.LLM.Provider))
	} else {
		p.OK("%-12s %s", cfg.LLM.Provider, cfg.LLM.Model)
	}

	if missing > 0 {
		return fmt.Errorf("%w: %d required", pipeline.ErrMissingDeps, missing)
	}
	return nil
}
