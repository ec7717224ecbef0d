package speech

import (
	"context"
	"strings"
	"time"
)

// Options configures a transcription request.
type Options struct {
	Language            string  // "auto" to let the model detect language
	LanguageSet         bool    // true when Language should override defaults
	Translate           bool    // translate non-English speech into English
	TranslateSet        bool    // true when Translate should override defaults
	Threads             int     // number of threads used by the backend (<=0 uses default)
	ThreadsSet          bool    // true when Threads should override defaults
	InitialPrompt       string  // optional priming prompt
	InitialPromptSet    bool    // true when InitialPrompt should override defaults
	Temperature         float32 // sampling temperature
	TemperatureSet      bool    // true when Temperature should override defaults
	TemperatureFloor    float32 // optional fallback temperature when decoding stalls
	TemperatureFloorSet bool    // true when TemperatureFloor should override defaults
}

// Segment represents a portion of transcribed text with timestamps.
type Segment struct {
	ID    int           `json:"id"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Result holds the transcription outcome returned by a backend.
type Result struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Duration time.Duration `json:"duration"`
	Segments []Segment     `json:"segments"`
}

// Transcriber describes a component capable of converting speech into text.
type Transcriber interface {
	Close()
	TranscribePCM(ctx context.Context, samples []float32, sampleRate int, opts Options) (*Result, error)
}

// WithLanguage returns o with the language overridden. Empty and "None"
// leave detection to the model.
func (o Options) WithLanguage(lang string) Options {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "none") {
		return o
	}
	o.Language = lang
	o.LanguageSet = true
	return o
}

// WithTranslate returns o with translation explicitly switched on or off.
func (o Options) WithTranslate(translate bool) Options {
	o.Translate = translate
	o.TranslateSet = true
	return o
}

// Merge overlays the fields set in override onto base.
func Merge(base, override Options) Options {
	result := base

	if override.LanguageSet {
		result.Language = override.Language
		result.LanguageSet = true
	}
	if override.TranslateSet {
		result.Translate = override.Translate
		result.TranslateSet = true
	}
	if override.ThreadsSet {
		result.Threads = override.Threads
		result.ThreadsSet = true
	}
	if override.InitialPromptSet {
		result.InitialPrompt = override.InitialPrompt
		result.InitialPromptSet = true
	}
	if override.TemperatureSet {
		result.Temperature = override.Temperature
		result.TemperatureSet = true
	}
	if override.TemperatureFloorSet {
		result.TemperatureFloor = override.TemperatureFloor
		result.TemperatureFloorSet = true
	}

	return result
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func pcmDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
