package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/provider"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show which sources serve each league",
	Long:  "Lists the registered sources per league in resolution order; a fetch without --source tries them left to right.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		league, err := singleLeagueFlag(cmd)
		if err != nil {
			return err
		}

		leagues := model.Leagues()
		if league != "" {
			leagues = []model.League{league}
		}

		formatSources(os.Stdout, env.Registry, leagues)
		return nil
	},
}

func init() {
	sourcesCmd.Flags().String("league", "", "restrict to one league")
	rootCmd.AddCommand(sourcesCmd)
}

// formatSources writes each league's source resolution order to out.
func formatSources(out io.Writer, registry *provider.Registry, leagues []model.League) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LEAGUE\tSOURCES")
	for _, league := range leagues {
		names := registry.Sources(league)
		if len(names) == 0 {
			_, _ = fmt.Fprintf(w, "%s\t(none registered)\n", league)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", league, strings.Join(names, ", "))
	}
	_ = w.Flush()
}
