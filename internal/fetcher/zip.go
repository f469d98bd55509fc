package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts every file entry of the archive into destDir,
// dropping directory components. Returns the extracted paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "zip: create directory")
	}

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		extracted = append(extracted, path)
	}

	return extracted, nil
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	name := filepath.Base(filepath.FromSlash(f.Name))
	if name == "." || name == ".." || name == string(os.PathSeparator) {
		return "", eris.Errorf("zip: illegal entry name %q", f.Name)
	}
	destPath := filepath.Join(destDir, name)

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrapf(err, "zip: write %s", f.Name)
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "zip: close file")
	}

	return destPath, nil
}

// FindByExt returns the first path in paths whose extension matches ext,
// ignoring case.
func FindByExt(paths []string, ext string) (string, bool) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ext) {
			return p, true
		}
	}
	return "", false
}
