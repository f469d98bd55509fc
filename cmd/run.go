package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/yield-atlas/internal/config"
	"github.com/sells-group/yield-atlas/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for one state",
	Long: `Loads the yield table, county boundaries and both raster bands, joins yields to
counties, aggregates the percentage change per county, renders the maps and writes
the exports listed in the config. The run is recorded in the configured store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		return runPipeline(ctx, cfg, os.Stdout)
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// addRunFlags registers the flags shared by run and join.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("state", 0, "state FIPS code (overrides counties.state_code)")
	cmd.Flags().String("out", "", "output directory (overrides render.out_dir)")
}

// applyRunFlags copies explicitly set flags over the loaded config and
// validates the result.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	if cmd.Flags().Changed("state") {
		state, _ := cmd.Flags().GetInt("state")
		c.Counties.StateCode = state
	}
	if cmd.Flags().Changed("out") {
		out, _ := cmd.Flags().GetString("out")
		c.Render.OutDir = out
	}
	return c.Validate()
}

func runPipeline(ctx context.Context, c *config.Config, out io.Writer) error {
	st, err := openStore(ctx, c.Store)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	res, err := pipeline.New(c, pipeline.Deps{Store: st}).Run(ctx)
	if res != nil && res.Report != nil {
		_, _ = fmt.Fprintf(out, "join: %s\n", res.Report.Summary())
	}
	if err != nil {
		if res != nil && res.Report != nil && !res.Report.OK() {
			formatUnresolved(out, res.Report)
		}
		return eris.Wrap(err, "run")
	}

	_, _ = fmt.Fprintf(out, "run %s complete\n", res.RunID)
	for _, path := range res.Outputs {
		_, _ = fmt.Fprintf(out, "  %s\n", path)
	}
	return nil
}
