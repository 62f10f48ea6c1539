// Package fetch holds the small I/O helpers the SDK needs around remote
// results: downloading a URL to a temp file and unpacking zip bundles.
package fetch

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/peelkit/matte/pkg/util"
)

// Download fetches url into destDir and returns the written path. The file
// name is unique per call, preserving the URL's extension so downstream
// format inference keeps working.
func Download(ctx context.Context, client *http.Client, url, destDir string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if err := util.EnsureDir(destDir); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	name := uuid.NewString()
	if ext := util.Extension(url); ext != "" {
		name += "." + ext
	}
	path := filepath.Join(destDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("download %s: %w", url, err)
	}

	return path, nil
}

// Unzip extracts src into destDir and returns the extracted paths. Entries
// that would escape destDir are rejected.
func Unzip(src, destDir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open archive %s: %w", src, err)
	}
	// ErrInsecurePath still yields a usable reader; the per-entry check
	// below rejects the offending names with a clearer error.
	defer r.Close()

	if err := util.EnsureDir(destDir); err != nil {
		return nil, err
	}

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		dest := filepath.Join(destDir, filepath.Clean(f.Name))
		if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if err := extractFile(f, dest); err != nil {
			return nil, err
		}
		extracted = append(extracted, dest)
	}

	return extracted, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := util.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}
