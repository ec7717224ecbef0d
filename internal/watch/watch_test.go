package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/pipeline"
	"github.com/sjzar/scribe/internal/transcript"
	"github.com/sjzar/scribe/internal/worker"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []worker.Request
}

func (f *fakeSubmitter) Submit(ctx context.Context, req worker.Request) (*worker.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	resp := &worker.Response{Task: req.Task}
	for _, src := range req.Sources {
		resp.Results = append(resp.Results, worker.Result{
			Source:     src,
			Transcript: transcript.New([]transcript.Entry{{Speaker: "SPEAKER_00", Start: 0, End: 2, Text: filepath.Base(src)}}),
		})
	}
	return resp, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestNewRejectsMissingDir(t *testing.T) {
	_, err := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, &fakeSubmitter{})
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))
}

func TestNewDefaults(t *testing.T) {
	in := t.TempDir()
	w, err := New(Config{Dir: in}, &fakeSubmitter{})
	require.NoError(t, err)
	assert.Equal(t, in, w.cfg.OutputDir)
	assert.Equal(t, "txt", w.cfg.Format)

	_, err = New(Config{Dir: in, Format: "pdf"}, &fakeSubmitter{})
	assert.True(t, errors.Is(err, errors.ErrUnknownFormat))
}

func TestProcessSavesOncePerVersion(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	sub := &fakeSubmitter{}
	w, err := New(Config{Dir: in, OutputDir: out, Format: ".json", Options: pipeline.AutoOptions{NumSpeakers: 2}}, sub)
	require.NoError(t, err)

	path := filepath.Join(in, "standup.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	require.NoError(t, w.process(context.Background(), path))
	require.NoError(t, w.process(context.Background(), path))
	assert.Equal(t, 1, sub.count())
	assert.Equal(t, 2, sub.requests[0].Auto.NumSpeakers)

	data, err := os.ReadFile(filepath.Join(out, "standup.json"))
	require.NoError(t, err)
	tr, err := transcript.FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "standup.wav", tr.Entries()[0].Text)

	// a rewritten file is a new recording
	require.NoError(t, os.WriteFile(path, []byte("RIFF and more"), 0o644))
	require.NoError(t, w.process(context.Background(), path))
	assert.Equal(t, 2, sub.count())

	require.NoError(t, w.process(context.Background(), filepath.Join(in, "gone.wav")))
	assert.Equal(t, 2, sub.count())
}

func TestAccepts(t *testing.T) {
	w := &Watcher{cfg: Config{Extensions: []string{".wav", ".m4a"}}}
	assert.True(t, w.accepts("/x/a.WAV"))
	assert.True(t, w.accepts("/x/b.m4a"))
	assert.False(t, w.accepts("/x/a.txt"))
	assert.False(t, w.accepts("/x/noext"))

	all := &Watcher{}
	assert.True(t, all.accepts("/x/anything"))
}

func TestRunPicksUpNewRecordings(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	sub := &fakeSubmitter{}
	w, err := New(Config{
		Dir:        in,
		OutputDir:  out,
		Extensions: []string{".wav"},
		Settle:     50 * time.Millisecond,
	}, sub)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "call.wav"), []byte("RIFF"), 0o644))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "call.txt"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, sub.count())

	cancel()
	assert.NoError(t, <-done)
}
