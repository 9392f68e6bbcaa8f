package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/console"
	"github.com/forPelevin/hlshorts/internal/domain/highlights"
	"github.com/forPelevin/hlshorts/internal/pipeline"
	"github.com/forPelevin/hlshorts/internal/types"
	"github.com/forPelevin/hlshorts/internal/usecase"
)

// renderFlags shape every produced short. run and watch share them.
type renderFlags struct {
	shorts          int
	subtitleStyle   string
	zoom            string
	freshTranscript bool
}

type runFlags struct {
	renderFlags
	autoApprove bool
	times       string
	keepTemp    bool
}

func addRenderFlags(cmd *cobra.Command, f *renderFlags) {
	fl := cmd.Flags()
	fl.IntVar(&f.shorts, "shorts", 1, "Number of shorts to produce")
	fl.StringVar(&f.subtitleStyle, "subtitle-style", "", "Subtitle style: green-box, tiktok, yellow, minimal")
	fl.StringVar(&f.zoom, "zoom", "", "Reframing: auto, fit, fill, none")
	fl.BoolVar(&f.freshTranscript, "fresh-transcript", false, "Ignore the transcript cache")
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	addRenderFlags(cmd, &f.renderFlags)
	fl := cmd.Flags()
	fl.BoolVar(&f.autoApprove, "auto-approve", false, "Skip interactive prompts and take defaults")
	fl.StringVar(&f.times, "times", "", "Manual highlights as START-END,... in seconds (skips AI selection)")

	// Debug flag (internal)
	fl.BoolVar(&f.keepTemp, "keep-temp", false, "Keep the session work dir")
	_ = fl.MarkHidden("keep-temp")
}

// overlay applies the render flags the user set explicitly.
func (f *renderFlags) overlay(cmd *cobra.Command) func(*config.Config) {
	return func(c *config.Config) {
		fl := cmd.Flags()
		if fl.Changed("shorts") {
			c.Render.Shorts = f.shorts
		}
		if fl.Changed("subtitle-style") {
			c.Render.SubtitleStyle = f.subtitleStyle
		}
		if fl.Changed("zoom") {
			c.Render.Zoom = f.zoom
		}
	}
}

func runShorts(cmd *cobra.Command, g *globalFlags, f *runFlags, args []string) error {
	ctx := cmd.Context()
	p := console.New(cmd.OutOrStdout())

	var timeframes []types.Highlight
	if strings.TrimSpace(f.times) != "" {
		tf, err := highlights.ParseTimeframes(f.times)
		if err != nil {
			return err
		}
		timeframes = tf
	}

	cfg, log, err := loadConfig(cmd, g, true, f.overlay(cmd))
	if err != nil {
		return err
	}
	defer log.Sync()

	source := ""
	if len(args) == 1 {
		source = strings.TrimSpace(args[0])
	}
	count := cfg.Render.Shorts
	if source == "" {
		if f.autoApprove {
			return fmt.Errorf("%w: a URL or file argument is required with --auto-approve", config.ErrConfig)
		}
		choice, ok, err := runMenu(ctx, cfg.Paths.Videos, count)
		if err != nil {
			return err
		}
		if !ok {
			p.Dim("Cancelled.")
			return nil
		}
		source, count = choice.Source, choice.Count
	}

	opts := pipeline.Options{
		Source:          source,
		Count:           count,
		Timeframes:      timeframes,
		AutoApprove:     f.autoApprove,
		FreshTranscript: f.freshTranscript,
		KeepTemp:        f.keepTemp,
		Progress:        progressPrinter(p),
	}
	if !f.autoApprove {
		opts.Confirm = askConfirm
	}

	p.Banner("hlshorts", source)
	out, err := pipeline.Run(ctx, cfg, opts, log)
	return report(p, out, err)
}

// progressPrinter turns driver events into console lines.
func progressPrinter(p *console.Printer) func(usecase.Event) {
	return func(e usecase.Event) {
		switch e.State {
		case usecase.StateCropped:
			p.Step(e.Index, e.Total, "cut %s", e.Message)
		case usecase.StateReframed:
			p.Step(e.Index, e.Total, "reframed to 9:16")
		case usecase.StateSubtitled:
			p.Step(e.Index, e.Total, "subtitles burned")
		case usecase.StateRemuxed:
			p.Step(e.Index, e.Total, "audio remuxed")
		case usecase.StateSourceResolved:
			p.Dim("source ready")
		case usecase.StateAudioExtracted:
			p.Dim("audio extracted")
		case usecase.StateTranscribed:
			p.Dim("transcribed")
		case usecase.StateHighlightsSelected:
			p.Dim("highlights selected")
		}
	}
}

// report prints the outcome. A run that selected highlights but produced
// no short is an error and exits 1, not a "created 0 shorts" success.
// Empty runs (declined, silent or speechless sources) still return nil.
func report(p *console.Printer, out pipeline.Outcome, err error) error {
	if err != nil {
		return err
	}
	if out.Empty {
		p.Warn("Nothing to do: %s", out.Reason)
		return nil
	}
	for _, f := range out.Failed {
		p.Fail("%v", f)
	}
	if len(out.Outputs) == 0 {
		return fmt.Errorf("no shorts produced (%d failed)", len(out.Failed))
	}
	for _, o := range out.Outputs {
		p.OK("%s", o)
	}
	if out.ManifestPath != "" {
		p.Dim("manifest: %s", out.ManifestPath)
	}
	return nil
}
