package pipeline

import "github.com/sjzar/scribe/internal/speech"

// AutoOptions configure a diarize-then-transcribe run.
type AutoOptions struct {
	// NumSpeakers is a hint for the diarization engine, 0 when unknown.
	NumSpeakers    int    `json:"num_speakers,omitempty" mapstructure:"num_speakers"`
	Language       string `json:"language,omitempty" mapstructure:"language"`
	Translate      bool   `json:"translate,omitempty" mapstructure:"translate"`
	RemoveOriginal bool   `json:"remove_original,omitempty" mapstructure:"remove_original"`
	Shred          bool   `json:"shred,omitempty" mapstructure:"shred"`
}

type TranscribeOptions struct {
	Language  string `json:"language,omitempty" mapstructure:"language"`
	Translate bool   `json:"translate,omitempty" mapstructure:"translate"`
}

type DiarizeOptions struct {
	NumSpeakers int `json:"num_speakers,omitempty" mapstructure:"num_speakers"`
}

func (o AutoOptions) transcribe() TranscribeOptions {
	return TranscribeOptions{Language: o.Language, Translate: o.Translate}
}

func (o TranscribeOptions) speech(base speech.Options) speech.Options {
	opts := base.WithLanguage(o.Language)
	if o.Translate {
		opts = opts.WithTranslate(true)
	}
	return opts
}
