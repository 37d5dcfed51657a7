package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/pipeline"
)

var (
	exportLeagues  string
	exportEntities string
	exportFormat   string
	exportOut      string
	exportSeason   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored datasets to CSV, JSON, or XLSX",
	Long:  "Reads the stored entities for each league and writes one file per dataset, or one workbook per league for XLSX.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leagues, err := parseLeagues(exportLeagues)
		if err != nil {
			return err
		}

		reports, err := env.Pipeline.RunExport(ctx, pipeline.ExportOptions{
			Leagues: leagues,
			Kinds:   parseKinds(exportEntities),
			Format:  exportFormat,
			Dir:     exportOut,
			Season:  exportSeason,
		})
		if err != nil {
			return err
		}

		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to export.")
			return nil
		}

		formatExportReports(os.Stdout, reports)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportLeagues, "league", "", "comma-separated leagues (default: configured leagues)")
	exportCmd.Flags().StringVar(&exportEntities, "entity", "", "comma-separated datasets (teams, players, games, injuries, upsets)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: csv, json, or xlsx (default: configured format)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default: configured export dir)")
	exportCmd.Flags().StringVar(&exportSeason, "season", "", "restrict the games dataset to one season")
	rootCmd.AddCommand(exportCmd)
}

// formatExportReports writes one line per exported dataset to out.
func formatExportReports(out io.Writer, reports []model.ExportReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LEAGUE\tDATASET\tROWS\tFILE")
	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.League, r.Kind, r.Rows, r.Path)
	}
	_ = w.Flush()
}
