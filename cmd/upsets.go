package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/store"
)

var upsetsCmd = &cobra.Command{
	Use:   "upsets",
	Short: "Detect and inspect upset results",
	Long:  "Commands for scanning final games for upsets and reviewing what the detector has recorded.",
}

// -- upsets detect --

var upsetsDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Scan final games for upsets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		league, err := singleLeagueFlag(cmd)
		if err != nil {
			return err
		}

		var since time.Time
		if window, _ := cmd.Flags().GetDuration("since"); window > 0 {
			since = time.Now().Add(-window)
		}

		upsets, err := env.Pipeline.DetectUpsets(ctx, league, since)
		if err != nil {
			return eris.Wrap(err, "upsets detect")
		}

		if len(upsets) == 0 {
			fmt.Fprintln(os.Stderr, "No new upsets detected.")
			return nil
		}

		formatUpsetsList(os.Stdout, upsets)
		return nil
	},
}

// -- upsets list --

var upsetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded upsets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		league, err := singleLeagueFlag(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.UpsetFilter{League: league, Limit: limit}
		if window, _ := cmd.Flags().GetDuration("since"); window > 0 {
			filter.Since = time.Now().Add(-window)
		}

		upsets, err := st.ListUpsets(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "upsets list")
		}

		if len(upsets) == 0 {
			fmt.Fprintln(os.Stderr, "No upsets recorded.")
			return nil
		}

		formatUpsetsList(os.Stdout, upsets)
		return nil
	},
}

// -- upsets stats --

var upsetsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate upset statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		league, err := singleLeagueFlag(cmd)
		if err != nil {
			return err
		}

		leagues := model.Leagues()
		if league != "" {
			leagues = []model.League{league}
		}

		printed := false
		for _, l := range leagues {
			stats, err := st.GetUpsetStats(ctx, l)
			if err != nil {
				return eris.Wrapf(err, "upsets stats %s", l)
			}
			if stats.Total == 0 && league == "" {
				continue
			}
			formatUpsetStats(os.Stdout, l, stats)
			printed = true
		}

		if !printed {
			fmt.Fprintln(os.Stderr, "No upsets recorded.")
		}
		return nil
	},
}

func init() {
	upsetsDetectCmd.Flags().String("league", "", "restrict detection to one league")
	upsetsDetectCmd.Flags().Duration("since", 0, "only scan games played within this window (e.g. 168h)")

	upsetsListCmd.Flags().String("league", "", "filter by league")
	upsetsListCmd.Flags().Duration("since", 0, "only show upsets from games within this window")
	upsetsListCmd.Flags().Int("limit", 50, "max number of upsets to display")

	upsetsStatsCmd.Flags().String("league", "", "restrict stats to one league")

	upsetsCmd.AddCommand(upsetsDetectCmd)
	upsetsCmd.AddCommand(upsetsListCmd)
	upsetsCmd.AddCommand(upsetsStatsCmd)
	rootCmd.AddCommand(upsetsCmd)
}

// singleLeagueFlag reads the optional --league flag; empty means all.
func singleLeagueFlag(cmd *cobra.Command) (model.League, error) {
	raw, _ := cmd.Flags().GetString("league")
	if raw == "" {
		return "", nil
	}
	return model.ParseLeague(raw)
}

// formatUpsetsList writes a tabular list of upsets to out.
func formatUpsetsList(out io.Writer, upsets []model.Upset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tLEAGUE\tMATCHUP\tSCORE\tWINNER\tSIGNAL\tMAG\tREASON")

	for _, u := range upsets {
		matchup := u.AwayTeam + " @ " + u.HomeTeam
		if len(matchup) > 40 {
			matchup = matchup[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d-%d\t%s\t%s\t%.1f\t%s\n",
			u.GameDate.Format("2006-01-02"), u.League, matchup,
			u.HomeScore, u.AwayScore, u.Winner, u.Signal, u.Magnitude, u.Reason)
	}
	_ = w.Flush()
}

// formatUpsetStats writes one league's aggregate upset section to out.
func formatUpsetStats(out io.Writer, league model.League, stats *store.UpsetStats) {
	_, _ = fmt.Fprintf(out, "=== %s upsets ===\n", league)
	_, _ = fmt.Fprintf(out, "Total:          %d\n", stats.Total)
	_, _ = fmt.Fprintf(out, "Avg magnitude:  %.1f\n", stats.AvgMagnitude)
	_, _ = fmt.Fprintf(out, "Max magnitude:  %.1f\n", stats.MaxMagnitude)

	if len(stats.BySignal) > 0 {
		signals := make([]string, 0, len(stats.BySignal))
		for s := range stats.BySignal {
			signals = append(signals, string(s))
		}
		sort.Strings(signals)

		_, _ = fmt.Fprintln(out, "By signal:")
		for _, s := range signals {
			_, _ = fmt.Fprintf(out, "  %-10s %d\n", s, stats.BySignal[model.UpsetSignal(s)])
		}
	}

	if b := stats.Biggest; b != nil {
		_, _ = fmt.Fprintf(out, "Biggest:        %s %s over %s (%.1f) %s\n",
			b.GameDate.Format("2006-01-02"), b.Winner, b.Loser, b.Magnitude, b.Reason)
	}
	_, _ = fmt.Fprintln(out)
}
