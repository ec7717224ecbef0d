package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/transcript"
	"github.com/sjzar/scribe/internal/worker"
)

type fakeWorker struct {
	mu       sync.Mutex
	requests []worker.Request
	seen     map[string]bool
	respond  func(req worker.Request) (*worker.Response, error)
	stopped  bool
}

func (f *fakeWorker) Submit(ctx context.Context, req worker.Request) (*worker.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	for _, src := range req.Sources {
		_, err := os.Stat(src)
		f.seen[src] = err == nil
	}
	return f.respond(req)
}

func (f *fakeWorker) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeWorker) Status() worker.Status {
	return worker.Status{Alive: true, Loaded: true, PID: 99, Spawns: 1}
}

func echoTranscripts(req worker.Request) (*worker.Response, error) {
	resp := &worker.Response{Task: req.Task}
	for _, src := range req.Sources {
		resp.Results = append(resp.Results, worker.Result{
			Source: src,
			Transcript: transcript.New([]transcript.Entry{
				{Speaker: "SPEAKER_00", Start: 0, End: 3, Text: "hi"},
				{Speaker: "SPEAKER_01", Start: 3, End: 7, Text: "hello"},
			}),
		})
	}
	return resp, nil
}

func newTestService(w Worker) *Service {
	return NewService(Config{Addr: "127.0.0.1:0"}, w)
}

func do(s *Service, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndStatus(t *testing.T) {
	w := &fakeWorker{respond: echoTranscripts}
	s := newTestService(w)

	rec := do(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = do(s, http.MethodGet, "/api/v1/worker", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["loaded"])
	assert.EqualValues(t, 99, body["pid"])

	rec = do(s, http.MethodPost, "/api/v1/worker/stop", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, w.stopped)

	rec = do(s, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskJSON(t *testing.T) {
	w := &fakeWorker{respond: echoTranscripts}
	s := newTestService(w)

	rec := do(s, http.MethodPost, "/api/v1/tasks", "application/json",
		[]byte(`{"task":"autotranscribe+translate","source":"/data/call.wav","num_speakers":2,"language":"None","format":"html"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, w.requests, 1)
	req := w.requests[0]
	assert.Equal(t, worker.TaskAutoTranscribe, req.Task)
	assert.Equal(t, []string{"/data/call.wav"}, req.Sources)
	assert.Equal(t, 2, req.Auto.NumSpeakers)
	assert.True(t, req.Auto.Translate)
	assert.Empty(t, req.Auto.Language)

	body := decode(t, rec)
	assert.Equal(t, "auto-transcribe", body["task"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "/data/call.wav", first["source"])
	assert.Contains(t, first["output"], "SPEAKER_00 (00:00:00 ; 00:00:03):&nbsp;&nbsp;&nbsp;&nbsp;hi<br>")
	assert.Contains(t, first, "transcript")
}

func TestTaskErrors(t *testing.T) {
	w := &fakeWorker{respond: func(req worker.Request) (*worker.Response, error) {
		return nil, errors.InvalidSource(req.Sources[0], "is a directory")
	}}
	s := newTestService(w)

	rec := do(s, http.MethodPost, "/api/v1/tasks", "application/json", []byte(`{"task":"summarize","source":"a.wav"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid task", decode(t, rec)["kind"])

	rec = do(s, http.MethodPost, "/api/v1/tasks", "application/json", []byte(`{"task":"transcribe","source":"/tmp"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid source", decode(t, rec)["kind"])

	rec = do(s, http.MethodPost, "/api/v1/tasks", "application/json", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, w.requests, 1)
}

func TestTaskRejectsFormatBeforeSubmit(t *testing.T) {
	w := &fakeWorker{respond: func(req worker.Request) (*worker.Response, error) {
		for _, src := range req.Sources {
			_ = os.Remove(src)
		}
		return echoTranscripts(req)
	}}
	s := newTestService(w)

	src := filepath.Join(t.TempDir(), "call.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFF"), 0o644))
	payload, err := json.Marshal(map[string]any{
		"task":            "auto-transcribe",
		"source":          src,
		"format":          "pdf",
		"remove_original": true,
	})
	require.NoError(t, err)

	rec := do(s, http.MethodPost, "/api/v1/tasks", "application/json", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown file format", decode(t, rec)["kind"])

	rec = do(s, http.MethodPost, "/api/v1/tasks", "application/json",
		[]byte(`{"task":"auto-transcribe","source":"/data/a.wav","format":7}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid argument", decode(t, rec)["kind"])

	assert.Empty(t, w.requests)
	_, err = os.Stat(src)
	assert.NoError(t, err, "source must not be touched")

	rec = do(s, http.MethodPost, "/api/v1/tasks", "application/json",
		[]byte(`{"task":"auto-transcribe","source":"/data/a.wav","format":".JSON"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode(t, rec)["results"].([]any)[0].(map[string]any)
	assert.Contains(t, first["output"], `"speakers": "SPEAKER_00"`)
}

func TestTaskPartialFailureKeepsResults(t *testing.T) {
	w := &fakeWorker{respond: func(req worker.Request) (*worker.Response, error) {
		resp, _ := echoTranscripts(req)
		resp.Error = "remove source failed"
		resp.Kind = errors.ErrRemoveSource.Error()
		return resp, resp.Err()
	}}
	s := newTestService(w)

	rec := do(s, http.MethodPost, "/api/v1/tasks", "application/json",
		[]byte(`{"task":"auto-transcribe","source":"/data/a.wav","remove_original":true}`))
	body := decode(t, rec)
	assert.Equal(t, "remove source failed", body["kind"])
	assert.Len(t, body["results"], 1)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestTaskMultipartUpload(t *testing.T) {
	w := &fakeWorker{respond: echoTranscripts}
	s := newTestService(w)
	s.conf.UploadDir = t.TempDir()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"first.wav", "second.m4a"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("RIFF"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("task", "auto-transcribe"))
	require.NoError(t, mw.WriteField("num_speakers", "3"))
	require.NoError(t, mw.WriteField("remove_original", "true"))
	require.NoError(t, mw.Close())

	rec := do(s, http.MethodPost, "/api/v1/tasks", mw.FormDataContentType(), buf.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, w.requests, 1)
	req := w.requests[0]
	require.Len(t, req.Sources, 2)
	assert.Equal(t, 3, req.Auto.NumSpeakers)
	assert.False(t, req.Auto.RemoveOriginal)
	for _, src := range req.Sources {
		assert.True(t, w.seen[src], "upload %s should exist during the task", src)
		_, err := os.Stat(filepath.Dir(src))
		assert.True(t, os.IsNotExist(err), "upload dir should be removed afterwards")
	}
	assert.Equal(t, ".m4a", filepath.Ext(req.Sources[1]))

	results := decode(t, rec)["results"].([]any)
	assert.Equal(t, "first.wav", results[0].(map[string]any)["source"])
	assert.Equal(t, "second.m4a", results[1].(map[string]any)["source"])
}

func TestAnnotate(t *testing.T) {
	s := newTestService(&fakeWorker{respond: echoTranscripts})
	tr, _ := echoTranscripts(worker.Request{Sources: []string{"x"}})
	data, err := tr.Results[0].Transcript.JSON(false)
	require.NoError(t, err)

	payload := func(names string) []byte {
		b, err := json.Marshal(map[string]any{"transcript": json.RawMessage(data), "names": names})
		require.NoError(t, err)
		return b
	}

	rec := do(s, http.MethodPost, "/api/v1/annotate", "application/json", payload("Alice, Bob"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Alice (00:00:00 ; 00:00:03):\thi\nBob (00:00:03 ; 00:00:07):\thello\n", body["output"])
	assert.Equal(t, map[string]any{"SPEAKER_00": "Alice", "SPEAKER_01": "Bob"}, body["annotation"])

	rec = do(s, http.MethodPost, "/api/v1/annotate", "application/json", payload("Alice"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "speaker count mismatch", decode(t, rec)["kind"])

	rec = do(s, http.MethodPost, "/api/v1/annotate", "application/json", []byte(`{"transcript":{"0":{"speakers":"A"},"2":{"speakers":"B"}},"names":"x,y"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMCPTranscribe(t *testing.T) {
	w := &fakeWorker{respond: func(req worker.Request) (*worker.Response, error) {
		if req.Task == worker.TaskTranscribe && req.Transcribe.Translate {
			return &worker.Response{Task: req.Task, Results: []worker.Result{{Source: req.Sources[0], Text: "good morning"}}}, nil
		}
		return nil, fmt.Errorf("unexpected request %+v", req)
	}}
	s := newTestService(w)

	call := mcp.CallToolRequest{}
	call.Params.Name = "transcribe"
	call.Params.Arguments = map[string]any{"source": "/data/a.wav", "task": "translate"}
	res, err := s.handleMCPTranscribe(context.Background(), call)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "good morning", res.Content[0].(mcp.TextContent).Text)

	call.Params.Arguments = map[string]any{"source": "/data/a.wav"}
	res, err = s.handleMCPTranscribe(context.Background(), call)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, worker.TaskAutoTranscribe, w.requests[len(w.requests)-1].Task)
}
