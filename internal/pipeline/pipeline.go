// Package pipeline combines a diarization engine and a transcription engine
// into speaker-attributed transcripts.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/audio"
	"github.com/sjzar/scribe/internal/diarize"
	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/speech"
	"github.com/sjzar/scribe/internal/transcript"
)

// DefaultSpeaker labels the single entry produced when diarization finds no turns.
const DefaultSpeaker = "SPEAKER_01"

// Resolver decodes a source path into audio.
type Resolver func(ctx context.Context, path string) (*audio.Source, error)

// Pipeline runs the models it was built with. It holds no per-call state and
// may be shared between goroutines as far as the engines allow.
type Pipeline struct {
	diarizer    diarize.Engine
	transcriber speech.Transcriber
	resolve     Resolver
	defaults    speech.Options
	remover     *Remover
}

type Option func(*Pipeline)

func WithResolver(r Resolver) Option {
	return func(p *Pipeline) { p.resolve = r }
}

// WithSpeechDefaults sets options applied to every transcription call.
func WithSpeechDefaults(o speech.Options) Option {
	return func(p *Pipeline) { p.defaults = o }
}

func WithRemover(r *Remover) Option {
	return func(p *Pipeline) { p.remover = r }
}

func New(d diarize.Engine, t speech.Transcriber, opts ...Option) *Pipeline {
	p := &Pipeline{
		diarizer:    d,
		transcriber: t,
		resolve:     audio.Load,
		remover:     NewRemover(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close releases both engines.
func (p *Pipeline) Close() {
	if p.diarizer != nil {
		p.diarizer.Close()
	}
	if p.transcriber != nil {
		p.transcriber.Close()
	}
}

// AutoTranscribe diarizes src and transcribes every speaker turn in order.
// When no turns are found the whole clip is transcribed as DefaultSpeaker.
// Any failed turn fails the call.
func (p *Pipeline) AutoTranscribe(ctx context.Context, src *audio.Source, opts AutoOptions) (*transcript.Transcript, error) {
	result, err := p.Diarize(ctx, src, DiarizeOptions{NumSpeakers: opts.NumSpeakers})
	if err != nil {
		return nil, err
	}

	topts := opts.transcribe()
	if result.Len() == 0 {
		log.Info().Float64("seconds", src.Seconds()).Msg("no speaker turns found, transcribing the whole clip")
		text, err := p.Transcribe(ctx, src, topts)
		if err != nil {
			return nil, err
		}
		return transcript.New([]transcript.Entry{{
			Speaker: DefaultSpeaker,
			Start:   0,
			End:     src.Seconds(),
			Text:    text,
		}}), nil
	}

	entries := make([]transcript.Entry, 0, result.Len())
	for i, turn := range result.Turns {
		text := ""
		if slice := src.Cut(turn.Start, turn.End); slice.Len() > 0 {
			text, err = p.Transcribe(ctx, slice, topts)
			if err != nil {
				return nil, fmt.Errorf("transcribe turn %d (%.2fs-%.2fs): %w", i, turn.Start, turn.End, err)
			}
		}
		entries = append(entries, transcript.Entry{
			Speaker: turn.Speaker,
			Start:   turn.Start,
			End:     turn.End,
			Text:    text,
		})
	}
	return transcript.New(entries), nil
}

// Transcribe runs the transcription engine on the whole of src.
func (p *Pipeline) Transcribe(ctx context.Context, src *audio.Source, opts TranscribeOptions) (string, error) {
	res, err := p.transcriber.TranscribePCM(ctx, src.Samples(), src.Rate(), opts.speech(p.defaults))
	if err != nil {
		return "", err
	}
	return speech.CleanText(res), nil
}

// Diarize runs the diarization engine and normalizes its output.
func (p *Pipeline) Diarize(ctx context.Context, src *audio.Source, opts DiarizeOptions) (*diarize.Result, error) {
	entries, err := p.diarizer.Apply(ctx, src.Samples(), src.Rate(), diarize.Options{NumSpeakers: opts.NumSpeakers})
	if err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}
	return diarize.Normalize(entries), nil
}

// AutoTranscribeFile loads path and auto-transcribes it. When removal of the
// original is requested and fails, the transcript is returned together with
// the error.
func (p *Pipeline) AutoTranscribeFile(ctx context.Context, path string, opts AutoOptions) (*transcript.Transcript, error) {
	src, err := p.load(ctx, path)
	if err != nil {
		return nil, err
	}
	tr, err := p.AutoTranscribe(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	if opts.RemoveOriginal {
		if err := p.remover.Remove(ctx, path, opts.Shred); err != nil {
			return tr, err
		}
	}
	return tr, nil
}

func (p *Pipeline) TranscribeFile(ctx context.Context, path string, opts TranscribeOptions) (string, error) {
	src, err := p.load(ctx, path)
	if err != nil {
		return "", err
	}
	return p.Transcribe(ctx, src, opts)
}

func (p *Pipeline) DiarizeFile(ctx context.Context, path string, opts DiarizeOptions) (*diarize.Result, error) {
	src, err := p.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.Diarize(ctx, src, opts)
}

func (p *Pipeline) load(ctx context.Context, path string) (*audio.Source, error) {
	src, err := p.resolve(ctx, path)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidSource) || ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.InvalidSource(path, err.Error())
	}
	return src, nil
}
