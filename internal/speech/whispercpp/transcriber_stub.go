//go:build !cgo

package whispercpp

import (
	"context"
	"errors"

	"github.com/sjzar/scribe/internal/speech"
)

const Available = false

type Config struct {
	ModelPath      string
	DefaultOptions speech.Options
}

type Transcriber struct{}

func New(cfg Config) (*Transcriber, error) {
	return nil, errors.New("whisper.cpp backend unavailable: built without cgo")
}

func (t *Transcriber) Close() {}

func (t *Transcriber) TranscribePCM(ctx context.Context, samples []float32, sampleRate int, opts speech.Options) (*speech.Result, error) {
	return nil, errors.New("whisper.cpp backend unavailable: built without cgo")
}
