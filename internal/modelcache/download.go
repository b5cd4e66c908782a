package modelcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// EnsureLocal makes sure the model artifact exists under modelsPath and
// returns its canonical path, downloading it if absent.
func EnsureLocal(ctx context.Context, def ModelDef, modelsPath, repoOverride string, progress io.Writer) (string, error) {
	if err := os.MkdirAll(modelsPath, 0o755); err != nil {
		return "", fmt.Errorf("creating models directory: %w", err)
	}

	localPath := filepath.Join(modelsPath, def.LocalName)
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	if err := download(ctx, DownloadURL(def, repoOverride), localPath, progress); err != nil {
		return "", fmt.Errorf("downloading model %s: %w", def.Name, err)
	}
	return localPath, nil
}

// download fetches a blob to a temp file in the destination directory and
// renames it into place, so partial downloads never produce a usable path.
func download(ctx context.Context, url, dest string, progress io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	if progress != nil {
		w = io.MultiWriter(tmp, progress)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// ContentLength returns the size of a model artifact without downloading it,
// used to size download progress bars. Returns -1 when unknown.
func ContentLength(ctx context.Context, def ModelDef, repoOverride string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, DownloadURL(def, repoOverride), nil)
	if err != nil {
		return -1
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return -1
	}
	return resp.ContentLength
}
