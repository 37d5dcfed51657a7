package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridstats/sports-cli/internal/monitoring"
)

var (
	statusLeagues  string
	statusWatch    bool
	statusInterval time.Duration
	statusJSON     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored entity counts, quarantine depth, and request budgets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leagues, err := parseLeagues(statusLeagues)
		if err != nil {
			return err
		}

		render := func(snap *monitoring.StatusSnapshot) {
			if statusJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(snap)
				return
			}
			formatStatus(os.Stdout, snap)
		}

		if statusWatch {
			env.Collector.Watch(ctx, statusInterval, leagues, render)
			return nil
		}

		snap, err := env.Collector.Collect(ctx, leagues)
		if err != nil {
			return err
		}
		render(snap)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusLeagues, "league", "", "comma-separated leagues (default: all)")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "re-collect on an interval until interrupted")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 30*time.Second, "re-collection interval for --watch")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}

// formatStatus writes the snapshot as sectioned text to out.
func formatStatus(out io.Writer, snap *monitoring.StatusSnapshot) {
	_, _ = fmt.Fprintf(out, "=== Status at %s ===\n", snap.CollectedAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LEAGUE\tTEAMS\tPLAYERS\tGAMES\tINJURIES\tUPSETS")
	for _, ls := range snap.Leagues {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
			ls.League, ls.Teams, ls.Players, ls.Games, ls.Injuries, ls.Upsets)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nQuarantine depth: %d\n", snap.QuarantineDepth)

	if len(snap.RecentUpsets) > 0 {
		_, _ = fmt.Fprintln(out, "\nRecent upsets:")
		formatUpsetsList(out, snap.RecentUpsets)
	}

	if len(snap.Budgets) > 0 {
		_, _ = fmt.Fprintln(out, "\nRequest budgets:")
		bw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(bw, "SOURCE\tMODE\tLIMIT\tUSED\tREMAINING\tRESET")
		for _, b := range snap.Budgets {
			_, _ = fmt.Fprintf(bw, "%s\t%s\t%d\t%d\t%d\t%s\n",
				b.Source, b.Mode, b.Limit, b.Used, b.Remaining,
				b.ResetIn.Round(time.Second))
		}
		_ = bw.Flush()
	}
	_, _ = fmt.Fprintln(out)
}
