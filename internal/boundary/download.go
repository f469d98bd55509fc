package boundary

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/fetcher"
)

const tigerBaseURL = "https://www2.census.gov/geo/tiger"

// CountyURL returns the Census TIGER/Line URL of the national county layer
// for the given vintage year.
func CountyURL(year int) string {
	return fmt.Sprintf("%s/TIGER%d/COUNTY/tl_%d_us_county.zip", tigerBaseURL, year, year)
}

// Download fetches a ZIP archive into destDir, extracts it next to the
// archive and returns the path of the extracted .shp file. An archive that
// already exists with content is not downloaded again. A nil client gets a
// default client with a long timeout.
func Download(ctx context.Context, client *http.Client, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "boundary.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "boundary: create dest dir")
	}

	parts := strings.Split(url, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading county boundaries")
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Client: client})
		n, err := f.DownloadToFile(ctx, url, zipPath)
		if err != nil {
			return "", eris.Wrap(err, "boundary: download")
		}
		log.Debug("archive downloaded", zap.Int64("bytes", n))
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	files, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "boundary: extract zip")
	}

	shpPath, ok := fetcher.FindByExt(files, ".shp")
	if !ok {
		return "", eris.Errorf("boundary: no .shp file found in %s", zipName)
	}
	log.Info("county boundaries ready", zap.String("shp", shpPath))
	return shpPath, nil
}
