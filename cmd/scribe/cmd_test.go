package scribe

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/scribe/internal/diarize"
	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/transcript"
	"github.com/sjzar/scribe/internal/worker"
)

func TestBuildRequest(t *testing.T) {
	saved := transcribeFlags
	t.Cleanup(func() { transcribeFlags = saved })

	transcribeFlags.task = "autotranscribe+translate"
	transcribeFlags.numSpeakers = 3
	transcribeFlags.shred = true
	req, err := buildRequest([]string{"a.wav"})
	require.NoError(t, err)
	assert.Equal(t, worker.TaskAutoTranscribe, req.Task)
	assert.True(t, req.Auto.Translate)
	assert.True(t, req.Auto.RemoveOriginal)
	assert.Equal(t, 3, req.Auto.NumSpeakers)

	transcribeFlags.task = "diarization"
	req, err = buildRequest([]string{"a.wav"})
	require.NoError(t, err)
	assert.Equal(t, 3, req.Diarize.NumSpeakers)

	transcribeFlags.task = "translate"
	transcribeFlags.language = "fr"
	req, err = buildRequest([]string{"a.wav"})
	require.NoError(t, err)
	assert.True(t, req.Transcribe.Translate)
	assert.Equal(t, "fr", req.Transcribe.Language)

	_, err = buildRequest(nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidTask))

	transcribeFlags.task = "stop"
	_, err = buildRequest([]string{"a.wav"})
	assert.True(t, errors.Is(err, errors.ErrInvalidTask))
}

func TestSaveResult(t *testing.T) {
	dir := t.TempDir()
	tr := transcript.New([]transcript.Entry{{Speaker: "SPEAKER_00", Start: 0, End: 1, Text: "hi"}})

	require.NoError(t, saveResult(worker.Result{Source: "/in/call.m4a", Transcript: tr}, dir, "html"))
	data, err := os.ReadFile(filepath.Join(dir, "call.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<br>")

	require.NoError(t, saveResult(worker.Result{Source: "/in/memo.wav", Text: "plain"}, dir, "tex"))
	data, err = os.ReadFile(filepath.Join(dir, "memo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(data))

	d := diarize.Normalize([]diarize.Entry{{Start: 0, End: 1, Speaker: "A"}})
	require.NoError(t, saveResult(worker.Result{Source: "/in/memo.wav", Diarization: d}, dir, "txt"))
	_, err = os.Stat(filepath.Join(dir, "memo.json"))
	assert.NoError(t, err)

	err = saveResult(worker.Result{Source: "/in/x.wav", Transcript: tr}, dir, "pdf")
	assert.True(t, errors.Is(err, errors.ErrUnknownFormat))
}

func TestTranscribeRejectsFormatBeforeRunning(t *testing.T) {
	saved := transcribeFlags
	t.Cleanup(func() { transcribeFlags = saved })

	src := filepath.Join(t.TempDir(), "call.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFF"), 0o644))
	transcribeFlags.task = "autotranscribe"
	transcribeFlags.files = []string{src}
	transcribeFlags.outputDir = t.TempDir()
	transcribeFlags.outputFormat = "pdf"
	transcribeFlags.removeOriginal = true

	err := runTranscribe(transcribeCmd, nil)
	assert.True(t, errors.Is(err, errors.ErrUnknownFormat))
	_, err = os.Stat(src)
	assert.NoError(t, err, "source must survive a rejected format")

	transcribeFlags.outputFormat = ".HTML"
	format, err := resultFormat()
	require.NoError(t, err)
	assert.Equal(t, "html", format)
}

func TestSaveResultsKeepsGoing(t *testing.T) {
	dir := t.TempDir()
	tr := transcript.New([]transcript.Entry{{Speaker: "SPEAKER_00", Start: 0, End: 1, Text: "hi"}})
	// a directory in the way of the first output
	require.NoError(t, os.Mkdir(filepath.Join(dir, "first.txt"), 0o755))

	err := saveResults([]worker.Result{
		{Source: "/in/first.wav", Transcript: tr},
		{Source: "/in/second.wav", Transcript: tr},
	}, dir, "txt")
	assert.Error(t, err)

	data, rerr := os.ReadFile(filepath.Join(dir, "second.txt"))
	require.NoError(t, rerr)
	assert.Contains(t, string(data), "hi")
}

func TestAnnotateCommand(t *testing.T) {
	dir := t.TempDir()
	tr := transcript.New([]transcript.Entry{
		{Speaker: "SPEAKER_00", Start: 0, End: 2, Text: "hello"},
		{Speaker: "SPEAKER_01", Start: 2, End: 4, Text: "hi there"},
	})
	src := filepath.Join(dir, "meeting.json")
	require.NoError(t, tr.Save(src))

	saved := annotateFlags
	t.Cleanup(func() { annotateFlags = saved })
	annotateFlags.names = "Ann, Ben"

	var out bytes.Buffer
	annotateCmd.SetOut(&out)
	require.NoError(t, runAnnotate(annotateCmd, []string{src}))
	assert.Equal(t, "Ann (00:00:00 ; 00:00:02):\thello\nBen (00:00:02 ; 00:00:04):\thi there\n", out.String())

	annotateFlags.output = filepath.Join(dir, "meeting.tex")
	require.NoError(t, runAnnotate(annotateCmd, []string{src}))
	data, err := os.ReadFile(annotateFlags.output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ann")

	annotateFlags.names = "Ann"
	err = runAnnotate(annotateCmd, []string{src})
	assert.True(t, errors.Is(err, errors.ErrCountMismatch))
}
