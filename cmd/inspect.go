package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/yield-atlas/internal/raster"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.nc>",
	Short: "List the variables and band counts of a netCDF raster",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		vars, err := raster.Describe(args[0])
		if err != nil {
			return eris.Wrap(err, "inspect")
		}
		formatVariables(os.Stdout, vars)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func formatVariables(out io.Writer, vars []raster.VariableInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VARIABLE\tDIMENSIONS\tSHAPE\tBANDS")
	for _, v := range vars {
		shape := make([]string, len(v.Lengths))
		for i, n := range v.Lengths {
			shape[i] = fmt.Sprint(n)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			v.Name, strings.Join(v.Dimensions, ","), strings.Join(shape, "x"), v.Bands())
	}
	_ = w.Flush()
}
