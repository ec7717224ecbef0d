// Package pyannote runs a pyannote.audio speaker-diarization pipeline in a
// persistent helper process.
package pyannote

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/audio"
	"github.com/sjzar/scribe/internal/diarize"
	"github.com/sjzar/scribe/internal/pybridge"
)

//go:embed pyannote_helper.py
var embeddedScript []byte

const (
	DefaultModel = "pyannote/speaker-diarization"
	tokenFile    = ".pyannotetoken"
)

type Config struct {
	Model      string
	Token      string
	CacheDir   string
	Device     string
	PythonPath string
	ScriptDir  string
}

// Engine implements diarize.Engine.
type Engine struct {
	proc *pybridge.Process
}

type request struct {
	WAV         string `json:"wav"`
	NumSpeakers int    `json:"num_speakers,omitempty"`
}

type response struct {
	Entries []diarize.Entry `json:"entries"`
}

// New loads the pipeline. A missing token or unreachable model fails here,
// before any request is accepted.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if info, err := os.Stat(model); err == nil && info.IsDir() {
		return nil, fmt.Errorf("diarization model %q is a directory, expected a pipeline config file", model)
	}

	token, err := resolveToken(cfg.CacheDir, cfg.Token, model)
	if err != nil {
		return nil, err
	}

	args := []string{"--model", model}
	if cfg.CacheDir != "" {
		args = append(args, "--cache-dir", cfg.CacheDir)
	}
	if cfg.Device != "" {
		args = append(args, "--device", cfg.Device)
	}

	proc, err := pybridge.Start(ctx, pybridge.Config{
		PythonPath: cfg.PythonPath,
		Script:     embeddedScript,
		ScriptName: "pyannote_helper.py",
		ScriptDir:  cfg.ScriptDir,
		Args:       args,
		Env:        map[string]string{"SCRIBE_HF_TOKEN": token},
	})
	if err != nil {
		return nil, err
	}
	return &Engine{proc: proc}, nil
}

func (e *Engine) Apply(ctx context.Context, samples []float32, sampleRate int, opts diarize.Options) ([]diarize.Entry, error) {
	src, err := audio.New(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	wavPath, err := audio.WriteTempWAV(src, "scribe-diarize-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	var resp response
	if err := e.proc.Call(ctx, request{WAV: wavPath, NumSpeakers: opts.NumSpeakers}, &resp); err != nil {
		return nil, fmt.Errorf("pyannote: %w", err)
	}
	return resp.Entries, nil
}

func (e *Engine) Close() {
	if e.proc != nil {
		_ = e.proc.Close()
	}
}

// resolveToken returns the Hugging Face token to use. A supplied token is
// cached for later runs; without one the cached token is read. Local
// pipeline files need no token.
func resolveToken(cacheDir, token, model string) (string, error) {
	token = strings.TrimSpace(token)
	path := ""
	if cacheDir != "" {
		path = filepath.Join(cacheDir, tokenFile)
	}

	if token != "" {
		if path != "" {
			if err := os.MkdirAll(cacheDir, 0o700); err == nil {
				if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
					log.Debug().Err(err).Msg("failed to cache hugging face token")
				}
			}
		}
		return token, nil
	}

	if _, err := os.Stat(model); err == nil {
		return "", nil
	}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil && strings.TrimSpace(string(data)) != "" {
			return strings.TrimSpace(string(data)), nil
		}
	}
	return "", errors.New("no hugging face token found: create one at https://huggingface.co/settings/tokens and set diarization.hf_token")
}
