package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/console"
)

func newSweepCmd(g *globalFlags) *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove temp files left by interrupted runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := console.New(cmd.OutOrStdout())
			cfg, log, err := loadConfig(cmd, g, false, nil)
			if err != nil {
				return err
			}
			defer log.Sync()

			age := cfg.Store.StaleAfter.Duration
			if cmd.Flags().Changed("older-than") {
				if age, err = parseAge(olderThan); err != nil {
					return err
				}
			}

			db, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			swept, err := db.Sweep(cmd.Context(), age)
			for _, s := range swept {
				p.OK("removed %s (%s, %s)", s.WorkDir, s.ID, s.Source)
			}
			if err != nil {
				return err
			}
			if len(swept) == 0 {
				p.Dim("Nothing to sweep.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "", "Only sweep runs idle for longer than this (e.g. 2h, default from config: 12h)")
	return cmd
}

func parseAge(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: --older-than: %w", config.ErrConfig, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: --older-than must not be negative", config.ErrConfig)
	}
	return d, nil
}
