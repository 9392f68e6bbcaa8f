package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/hlshorts/internal/config"
	"github.com/forPelevin/hlshorts/internal/store"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List produced shorts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, g, false, nil)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			recs, err := db.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No shorts yet.")
				return nil
			}
			return printHistory(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of shorts to list")
	return cmd
}

func printHistory(out io.Writer, recs []store.ShortRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Finished\tSession\tTitle\t#\tRange\tFile")
	fmt.Fprintln(w, "--------\t-------\t-----\t-\t-----\t----")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s-%s\t%s\n",
			r.FinishedAt.Local().Format(time.DateTime),
			r.SessionID,
			truncateText(r.Title, 40),
			r.Index,
			formatSeconds(r.StartSec),
			formatSeconds(r.EndSec),
			filepath.Base(r.File),
		)
	}
	return w.Flush()
}

func openLedger(cfg config.Config) (*store.Store, error) {
	if cfg.Store.Disabled || cfg.Store.Path == "" {
		return nil, fmt.Errorf("%w: the run ledger is disabled", config.ErrConfig)
	}
	return store.Open(cfg.Store.Path)
}

// formatSeconds renders seconds as M:SS or H:MM:SS.
func formatSeconds(sec int) string {
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
