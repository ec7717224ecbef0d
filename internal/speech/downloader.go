package speech

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultModel is the whisper.cpp model used when none is configured.
const DefaultModel = "ggml-base.bin"

// ModelMirror serves the published ggml conversions of the whisper models.
const ModelMirror = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Downloader fetches ggml whisper models by name into Dir.
type Downloader struct {
	Dir    string
	Mirror string
	Client *http.Client
}

func NewDownloader(dir string) *Downloader {
	return &Downloader{
		Dir:    dir,
		Mirror: ModelMirror,
		Client: &http.Client{Timeout: 30 * time.Minute},
	}
}

// Resolve turns a configured model into a local file. Existing file paths
// are used as is, a directory is rejected and anything else is treated as a
// model name such as "base" or "ggml-small.en.bin" and fetched once.
func (d *Downloader) Resolve(ctx context.Context, model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if info, err := os.Stat(model); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("whisper model %q is a directory, expected a ggml file", model)
		}
		return model, nil
	}
	if strings.ContainsRune(model, os.PathSeparator) {
		return "", fmt.Errorf("whisper model file %q not found", model)
	}

	name := ggmlFileName(model)
	path := filepath.Join(d.Dir, name)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}
	if err := d.fetch(ctx, name, path); err != nil {
		return "", fmt.Errorf("fetch whisper model %s: %w", name, err)
	}
	return path, nil
}

// fetch streams the model into a temp file next to path and renames it into
// place, so an interrupted transfer never looks like a cached model.
func (d *Downloader) fetch(ctx context.Context, name, path string) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	mirror := d.Mirror
	if !strings.HasSuffix(mirror, "/") {
		mirror += "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mirror+name, nil)
	if err != nil {
		return err
	}
	log.Info().Str("model", name).Str("dir", d.Dir).Msg("whisper model not cached, fetching")
	start := time.Now()
	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mirror answered %s", resp.Status)
	}

	tmp, err := os.CreateTemp(d.Dir, name+".part-*")
	if err != nil {
		return err
	}
	n, err := tmp.ReadFrom(resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}

	log.Info().Str("model", name).Int64("bytes", n).Dur("took", time.Since(start)).Msg("whisper model cached")
	return nil
}

// ggmlFileName maps "base" and "ggml-base" to the mirror's "ggml-base.bin".
func ggmlFileName(model string) string {
	name := strings.TrimSuffix(strings.TrimSpace(model), ".bin")
	if !strings.HasPrefix(name, "ggml-") {
		name = "ggml-" + name
	}
	return name + ".bin"
}
