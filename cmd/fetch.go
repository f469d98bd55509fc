package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/boundary"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download public input data",
}

var fetchCountiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "Download the Census TIGER/Line county shapefile",
	Long: `Downloads and extracts the national TIGER/Line county boundary shapefile for the
given year. An archive already present in the destination is reused. The path of
the extracted .shp is printed; point counties.path at it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, _ := cmd.Flags().GetInt("year")
		dest, _ := cmd.Flags().GetString("dest")
		if !cmd.Flags().Changed("year") && cfg.Counties.Year > 0 {
			year = cfg.Counties.Year
		}
		if dest == "" {
			dest = cfg.Counties.DownloadDir
		}
		return fetchCounties(ctx, nil, boundary.CountyURL(year), dest, os.Stdout)
	},
}

func init() {
	fetchCountiesCmd.Flags().Int("year", 2024, "TIGER/Line vintage")
	fetchCountiesCmd.Flags().String("dest", "", "destination directory (default counties.download_dir)")

	fetchCmd.AddCommand(fetchCountiesCmd)
	rootCmd.AddCommand(fetchCmd)
}

func fetchCounties(ctx context.Context, client *http.Client, url, dest string, out io.Writer) error {
	zap.L().Info("fetching county boundaries",
		zap.String("command", "fetch counties"),
		zap.String("url", url),
		zap.String("dest", dest),
	)
	path, err := boundary.Download(ctx, client, url, dest)
	if err != nil {
		return eris.Wrap(err, "fetch counties")
	}
	_, _ = fmt.Fprintln(out, path)
	return nil
}
