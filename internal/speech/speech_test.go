package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsHelpers(t *testing.T) {
	var o Options
	assert.False(t, o.WithLanguage("None").LanguageSet)
	assert.False(t, o.WithLanguage("  ").LanguageSet)

	de := o.WithLanguage(" de ")
	assert.True(t, de.LanguageSet)
	assert.Equal(t, "de", de.Language)

	merged := Merge(Options{Language: "en", LanguageSet: true, Threads: 4, ThreadsSet: true}, de.WithTranslate(true))
	assert.Equal(t, "de", merged.Language)
	assert.True(t, merged.Translate)
	assert.Equal(t, 4, merged.Threads)
}

func TestCleanText(t *testing.T) {
	r := &Result{Segments: []Segment{
		{Text: " Hello there. "},
		{Text: " Untertitel der Amara.org-Community"},
		{Text: "General Kenobi."},
	}}
	assert.Equal(t, "Hello there. General Kenobi.", CleanText(r))

	assert.Equal(t, "", CleanText(&Result{Text: " Copyright WDR 2021."}))
	assert.Equal(t, "plain", CleanText(&Result{Text: " plain "}))
	assert.Equal(t, "", CleanText(nil))
}

func TestGGMLFileName(t *testing.T) {
	assert.Equal(t, "ggml-base.bin", ggmlFileName("base"))
	assert.Equal(t, "ggml-small.en.bin", ggmlFileName("ggml-small.en"))
	assert.Equal(t, "ggml-tiny.bin", ggmlFileName(" ggml-tiny.bin "))
}

func TestDownloaderResolve(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ggml-tiny.bin" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir)
	d.Mirror = srv.URL
	ctx := context.Background()

	path, err := d.Resolve(ctx, "tiny")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ggml-tiny.bin"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	// cached
	_, err = d.Resolve(ctx, "ggml-tiny.bin")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	// local files are used directly
	local := filepath.Join(dir, "custom.bin")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))
	path, err = d.Resolve(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, local, path)

	_, err = d.Resolve(ctx, dir)
	require.Error(t, err)

	_, err = d.Resolve(ctx, "large-v9")
	require.Error(t, err)
	leftovers, err := filepath.Glob(filepath.Join(dir, "ggml-large-v9.bin*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
