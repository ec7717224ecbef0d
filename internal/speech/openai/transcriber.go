// Package openai transcribes audio through the OpenAI audio endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sjzar/scribe/internal/audio"
	"github.com/sjzar/scribe/internal/speech"
)

const DefaultModel = "whisper-1"

type Config struct {
	APIKey         string
	BaseURL        string
	Organization   string
	Model          string
	RequestTimeout time.Duration
	DefaultOptions speech.Options
}

// Transcriber sends each slice as a WAV upload. Translation uses the
// translations endpoint, which always answers in English.
type Transcriber struct {
	client sdk.Client
	cfg    Config
}

func New(cfg Config) (*Transcriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	return &Transcriber{client: sdk.NewClient(opts...), cfg: cfg}, nil
}

func (t *Transcriber) Close() {}

func (t *Transcriber) TranscribePCM(ctx context.Context, samples []float32, sampleRate int, opts speech.Options) (*speech.Result, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty audio samples")
	}
	src, err := audio.New(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	wavPath, err := audio.WriteTempWAV(src, "scribe-openai-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	effective := speech.Merge(t.cfg.DefaultOptions, opts)
	file := sdk.File(f, "audio.wav", "audio/wav")

	result := &speech.Result{Duration: src.Duration()}
	if effective.TranslateSet && effective.Translate {
		params := sdk.AudioTranslationNewParams{
			File:  file,
			Model: sdk.AudioModel(t.cfg.Model),
		}
		if effective.InitialPromptSet {
			params.Prompt = sdk.String(effective.InitialPrompt)
		}
		if effective.TemperatureSet {
			params.Temperature = sdk.Float(float64(effective.Temperature))
		}
		resp, err := t.client.Audio.Translations.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("openai translation: %w", err)
		}
		result.Text = strings.TrimSpace(resp.Text)
		result.Language = "en"
		return result, nil
	}

	params := sdk.AudioTranscriptionNewParams{
		File:  file,
		Model: sdk.AudioModel(t.cfg.Model),
	}
	if effective.LanguageSet && !strings.EqualFold(effective.Language, "auto") {
		params.Language = sdk.String(effective.Language)
		result.Language = effective.Language
	}
	if effective.InitialPromptSet {
		params.Prompt = sdk.String(effective.InitialPrompt)
	}
	if effective.TemperatureSet {
		params.Temperature = sdk.Float(float64(effective.Temperature))
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	result.Text = strings.TrimSpace(resp.Text)
	return result, nil
}
