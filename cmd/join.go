package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/yield-atlas/internal/config"
	"github.com/sells-group/yield-atlas/internal/match"
	"github.com/sells-group/yield-atlas/internal/model"
	"github.com/sells-group/yield-atlas/internal/pipeline"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Load inputs and join yields to counties without aggregating",
	Long: `Runs the load and join stages only and prints one row per county with the
resolved yield and where it came from. Unresolved counties are listed and the
command exits non-zero.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		return runJoin(cmd.Context(), cfg, os.Stdout)
	},
}

func init() {
	addRunFlags(joinCmd)
	rootCmd.AddCommand(joinCmd)
}

func runJoin(ctx context.Context, c *config.Config, out io.Writer) error {
	p := pipeline.New(c, pipeline.Deps{})
	in, err := p.LoadInputs(ctx)
	if err != nil {
		return eris.Wrap(err, "join")
	}

	report, err := p.Join(in)
	if report != nil {
		formatJoin(out, in.Layer.Counties)
		_, _ = fmt.Fprintf(out, "\n%s\n", report.Summary())
		formatUnresolved(out, report)
	}
	return eris.Wrap(err, "join")
}

// formatJoin writes one row per county.
func formatJoin(out io.Writer, counties []*model.County) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GEOID\tNAME\tYIELD\tSOURCE")
	_, _ = fmt.Fprintln(w, "-----\t----\t-----\t------")
	for _, c := range counties {
		source := string(c.YieldSource)
		if source == "" {
			source = "unresolved"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.GEOID, c.Name, formatFloat(c.Yield, 1), source)
	}
	_ = w.Flush()
}

// formatUnresolved lists counties the join could not resolve.
func formatUnresolved(out io.Writer, report *match.Report) {
	if len(report.Unresolved) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%d unresolved counties:\n", len(report.Unresolved))
	for _, c := range report.Unresolved {
		_, _ = fmt.Fprintf(out, "  %s %s\n", c.GEOID, c.Name)
	}
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, *v)
}
