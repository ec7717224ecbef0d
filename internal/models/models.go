// Package models builds the diarization and transcription engines named by
// the configuration.
package models

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/conf"
	"github.com/sjzar/scribe/internal/diarize"
	"github.com/sjzar/scribe/internal/diarize/pyannote"
	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/pipeline"
	"github.com/sjzar/scribe/internal/speech"
	"github.com/sjzar/scribe/internal/speech/openai"
	"github.com/sjzar/scribe/internal/speech/whispercpp"
	"github.com/sjzar/scribe/internal/worker"
)

var (
	newDiarizer    = loadDiarizer
	newTranscriber = loadTranscriber
)

// Loader returns a worker.Loader that builds a pipeline from cfg each time a
// worker starts.
func Loader(cfg *conf.Config) worker.Loader {
	return func(ctx context.Context) (worker.Models, error) {
		return Load(ctx, cfg)
	}
}

// Load starts the diarization engine and then the transcription engine.
// Any failure is a model-load error and releases what was already loaded.
func Load(ctx context.Context, cfg *conf.Config) (*pipeline.Pipeline, error) {
	d, err := newDiarizer(ctx, cfg)
	if err != nil {
		return nil, errors.ModelLoad(err)
	}
	log.Info().Str("model", cfg.Diarization.Model).Msg("diarization model loaded")

	t, err := newTranscriber(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, errors.ModelLoad(err)
	}
	log.Info().Str("provider", cfg.Speech.Provider).Str("model", cfg.Speech.Model).Msg("transcription model loaded")

	return pipeline.New(d, t, pipeline.WithSpeechDefaults(cfg.Speech.ToOptions())), nil
}

func helperDir(cfg *conf.Config) string {
	if cfg.Diarization.CacheDir == "" {
		return ""
	}
	return filepath.Join(cfg.Diarization.CacheDir, "helpers")
}

func loadDiarizer(ctx context.Context, cfg *conf.Config) (diarize.Engine, error) {
	return pyannote.New(ctx, pyannote.Config{
		Model:      cfg.Diarization.Model,
		Token:      cfg.Diarization.HFToken,
		CacheDir:   cfg.Diarization.CacheDir,
		Device:     cfg.Diarization.Device,
		PythonPath: cfg.Diarization.PythonPath,
		ScriptDir:  helperDir(cfg),
	})
}

func loadTranscriber(ctx context.Context, cfg *conf.Config) (speech.Transcriber, error) {
	sc := cfg.Speech
	switch sc.Provider {
	case conf.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:         sc.APIKey,
			BaseURL:        sc.BaseURL,
			Organization:   sc.Organization,
			Model:          sc.Model,
			RequestTimeout: sc.RequestTimeout(),
		})
	case conf.ProviderPython:
		return speech.NewPythonTranscriber(ctx, speech.PythonConfig{
			ScriptDir:    helperDir(cfg),
			PythonPath:   sc.PythonPath,
			Model:        sc.Model,
			Device:       sc.Device,
			DownloadRoot: sc.ModelDir,
		})
	case conf.ProviderWhisperCPP:
		if !whispercpp.Available {
			return nil, errors.InvalidArg("speech.provider whispercpp requires a cgo build")
		}
		path, err := speech.NewDownloader(sc.ModelDir).Resolve(ctx, sc.Model)
		if err != nil {
			return nil, err
		}
		return whispercpp.New(whispercpp.Config{ModelPath: path})
	}
	return nil, errors.InvalidArg("speech.provider " + sc.Provider)
}
