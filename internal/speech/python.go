package speech

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sjzar/scribe/internal/audio"
	"github.com/sjzar/scribe/internal/pybridge"
)

//go:embed whisper_helper.py
var embeddedWhisperScript []byte

// PythonConfig describes how to initialise a Python based whisper backend.
type PythonConfig struct {
	ScriptDir      string
	PythonPath     string
	Model          string
	Device         string
	DownloadRoot   string
	DefaultOptions Options
	Env            map[string]string
}

// PythonTranscriber keeps an openai-whisper model loaded in a helper process.
type PythonTranscriber struct {
	cfg  PythonConfig
	proc *pybridge.Process
}

type pythonRequest struct {
	WAV           string   `json:"wav"`
	Language      string   `json:"language,omitempty"`
	Translate     bool     `json:"translate"`
	InitialPrompt string   `json:"initial_prompt,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	Threads       int      `json:"threads,omitempty"`
}

type pythonResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// NewPythonTranscriber starts the helper and blocks until the model is loaded.
func NewPythonTranscriber(ctx context.Context, cfg PythonConfig) (*PythonTranscriber, error) {
	if cfg.Model == "" {
		cfg.Model = "medium"
	}
	args := []string{"--model", cfg.Model}
	if cfg.Device != "" {
		args = append(args, "--device", cfg.Device)
	}
	if cfg.DownloadRoot != "" {
		args = append(args, "--download-root", cfg.DownloadRoot)
	}

	proc, err := pybridge.Start(ctx, pybridge.Config{
		PythonPath: cfg.PythonPath,
		Script:     embeddedWhisperScript,
		ScriptName: "whisper_helper.py",
		ScriptDir:  cfg.ScriptDir,
		Args:       args,
		Env:        cfg.Env,
	})
	if err != nil {
		return nil, err
	}
	return &PythonTranscriber{cfg: cfg, proc: proc}, nil
}

func (p *PythonTranscriber) Close() {
	if p.proc != nil {
		_ = p.proc.Close()
	}
}

// TranscribePCM writes the samples to a temporary WAV file for the helper.
func (p *PythonTranscriber) TranscribePCM(ctx context.Context, samples []float32, sampleRate int, opts Options) (*Result, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty audio data")
	}
	src, err := audio.New(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	wavPath, err := audio.WriteTempWAV(src, "scribe-whisper-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	effective := Merge(p.cfg.DefaultOptions, opts)
	req := pythonRequest{WAV: wavPath}
	if effective.LanguageSet && !strings.EqualFold(effective.Language, "auto") {
		req.Language = strings.TrimSpace(effective.Language)
	}
	req.Translate = effective.TranslateSet && effective.Translate
	if effective.InitialPromptSet {
		req.InitialPrompt = effective.InitialPrompt
	}
	if effective.TemperatureSet {
		t := effective.Temperature
		req.Temperature = &t
	}
	if effective.ThreadsSet {
		req.Threads = effective.Threads
	}

	var resp pythonResult
	if err := p.proc.Call(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("python whisper: %w", err)
	}

	result := &Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: pcmDuration(len(samples), sampleRate),
	}
	if result.Language == "" && effective.LanguageSet {
		result.Language = effective.Language
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			ID:    seg.ID,
			Start: secondsToDuration(seg.Start),
			End:   secondsToDuration(seg.End),
			Text:  seg.Text,
		})
	}
	return result, nil
}
