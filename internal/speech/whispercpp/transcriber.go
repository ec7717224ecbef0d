//go:build cgo

// Package whispercpp runs ggml whisper models in process. Building it needs
// libwhisper on the cgo include and library paths (C_INCLUDE_PATH,
// LIBRARY_PATH); without cgo the package reports itself unavailable.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/sjzar/scribe/internal/audio"
	"github.com/sjzar/scribe/internal/speech"
)

// Available reports whether this build links whisper.cpp.
const Available = true

// Config describes how to initialise the whisper.cpp backend.
type Config struct {
	ModelPath      string
	DefaultOptions speech.Options
}

// Transcriber wraps a whisper.cpp model instance.
type Transcriber struct {
	mu    sync.Mutex
	model whisper.Model
	cfg   Config
}

func New(cfg Config) (*Transcriber, error) {
	path := strings.TrimSpace(cfg.ModelPath)
	if path == "" {
		return nil, errors.New("whisper model path is required")
	}

	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}

	cfg.DefaultOptions = normalizeDefaults(cfg.DefaultOptions)

	return &Transcriber{model: model, cfg: cfg}, nil
}

// Close releases the underlying model resources.
func (t *Transcriber) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model != nil {
		_ = t.model.Close()
		t.model = nil
	}
}

// TranscribePCM transcribes mono PCM samples. whisper.cpp contexts are not
// safe for concurrent use, so calls on one Transcriber are serialized.
func (t *Transcriber) TranscribePCM(ctx context.Context, samples []float32, sampleRate int, opts speech.Options) (*speech.Result, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty audio samples")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model == nil {
		return nil, errors.New("transcriber closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	processed := audio.Resample(samples, sampleRate, int(whisper.SampleRate))
	return t.process(ctx, processed, speech.Merge(t.cfg.DefaultOptions, opts))
}

func (t *Transcriber) process(ctx context.Context, samples []float32, effective speech.Options) (*speech.Result, error) {
	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}

	threads := effective.Threads
	if !effective.ThreadsSet || threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	language := "auto"
	if effective.LanguageSet && strings.TrimSpace(effective.Language) != "" {
		language = strings.TrimSpace(effective.Language)
	}
	if err := wctx.SetLanguage(language); err != nil {
		return nil, err
	}
	wctx.SetTranslate(effective.TranslateSet && effective.Translate)

	if effective.InitialPromptSet && effective.InitialPrompt != "" {
		wctx.SetInitialPrompt(effective.InitialPrompt)
	}
	if effective.TemperatureSet {
		wctx.SetTemperature(effective.Temperature)
	}
	if effective.TemperatureFloorSet {
		wctx.SetTemperatureFallback(effective.TemperatureFloor)
	}

	encoderCb := func() bool {
		return ctx.Err() == nil
	}
	if err := wctx.Process(samples, encoderCb, nil, nil); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segments := make([]speech.Segment, 0)
	var text strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		segments = append(segments, speech.Segment{
			ID:    seg.Num,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(strings.TrimSpace(seg.Text))
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = language
	}

	return &speech.Result{
		Text:     strings.TrimSpace(text.String()),
		Language: detected,
		Duration: time.Duration(float64(len(samples)) / float64(whisper.SampleRate) * float64(time.Second)),
		Segments: segments,
	}, nil
}

func normalizeDefaults(o speech.Options) speech.Options {
	if strings.TrimSpace(o.Language) != "" {
		o.Language = strings.TrimSpace(o.Language)
		o.LanguageSet = true
	}
	if o.Translate {
		o.TranslateSet = true
	}
	if o.Threads > 0 {
		o.ThreadsSet = true
	}
	if strings.TrimSpace(o.InitialPrompt) != "" {
		o.InitialPrompt = strings.TrimSpace(o.InitialPrompt)
		o.InitialPromptSet = true
	}
	return o
}
