package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/yield-atlas/internal/model"
	"github.com/sells-group/yield-atlas/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing and viewing recorded pipeline runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		state, _ := cmd.Flags().GetInt("state")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:    model.RunStatus(status),
			StateCode: state,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its county results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		results, err := st.CountyResults(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*model.Run
				Counties []model.CountyResult `json:"counties"`
			}{run, results})
		}
		formatRunDetail(os.Stdout, run, results)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("state", 0, "filter by state FIPS code")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("json", false, "print the run and its county results as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATE\tSTATUS\tCOUNTIES\tFILLED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t--------\t------\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%02d\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.StateCode,
			r.Status,
			r.CountyCount,
			r.FilledCount,
			r.StartedAt.Format("2006-01-02 15:04"),
			runDuration(r),
		)
	}
	_ = w.Flush()
}

// formatRunDetail writes a run summary followed by its county results.
func formatRunDetail(out io.Writer, r *model.Run, results []model.CountyResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	_, _ = fmt.Fprintf(w, "State:\t%02d\n", r.StateCode)
	_, _ = fmt.Fprintf(w, "Yield table:\t%s\n", r.YieldPath)
	_, _ = fmt.Fprintf(w, "Counties:\t%s\n", r.CountiesPath)
	_, _ = fmt.Fprintf(w, "Baseline:\t%s (band %d)\n", r.BaselinePath, r.BaselineBand)
	_, _ = fmt.Fprintf(w, "Future:\t%s (band %d)\n", r.FuturePath, r.FutureBand)
	_, _ = fmt.Fprintf(w, "Started:\t%s\n", r.StartedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", runDuration(*r))
	_, _ = fmt.Fprintf(w, "Counties/filled/null change:\t%d/%d/%d\n", r.CountyCount, r.FilledCount, r.NullPctCount)
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
	_ = w.Flush()

	if len(results) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GEOID\tNAME\tYIELD\tSOURCE\tCHANGE %\tPROJECTED")
	for _, c := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.GEOID, c.Name,
			formatFloat(c.Yield, 1),
			c.YieldSource,
			formatFloat(model.RoundPct(c.PctChange), 0),
			formatFloat(c.ProjectedYield, 1),
		)
	}
	_ = w.Flush()
}

func runDuration(r model.Run) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
