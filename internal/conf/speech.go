package conf

import (
	"strings"
	"time"

	"github.com/sjzar/scribe/internal/speech"
)

const (
	ProviderWhisperCPP = "whispercpp"
	ProviderOpenAI     = "openai"
	ProviderPython     = "python"
)

// SpeechConfig selects and configures the transcription backend.
type SpeechConfig struct {
	Provider              string   `mapstructure:"provider" json:"provider"`
	Model                 string   `mapstructure:"model" json:"model"`
	ModelDir              string   `mapstructure:"model_dir" json:"model_dir"`
	Device                string   `mapstructure:"device" json:"device"`
	PythonPath            string   `mapstructure:"python_path" json:"python_path"`
	Threads               int      `mapstructure:"threads" json:"threads"`
	Language              string   `mapstructure:"language" json:"language"`
	Translate             *bool    `mapstructure:"translate" json:"translate"`
	InitialPrompt         string   `mapstructure:"initial_prompt" json:"initial_prompt"`
	Temperature           *float64 `mapstructure:"temperature" json:"temperature"`
	TemperatureFallback   *float64 `mapstructure:"temperature_fallback" json:"temperature_fallback"`
	APIKey                string   `mapstructure:"api_key" json:"-"`
	BaseURL               string   `mapstructure:"base_url" json:"base_url"`
	Organization          string   `mapstructure:"organization" json:"organization"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// Normalize lower-cases the provider and fills the model for it.
func (c *SpeechConfig) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderWhisperCPP
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model != "" {
		return
	}
	switch c.Provider {
	case ProviderOpenAI:
		c.Model = "whisper-1"
	case ProviderPython:
		c.Model = "medium"
	default:
		c.Model = speech.DefaultModel
	}
}

func (c *SpeechConfig) RequestTimeout() time.Duration {
	if c == nil || c.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ToOptions converts the speech config into default options for a
// transcription backend. Unset fields defer to the backend's own defaults.
func (c *SpeechConfig) ToOptions() speech.Options {
	var opts speech.Options

	if c == nil {
		return opts
	}

	opts = opts.WithLanguage(c.Language)
	if c.Translate != nil {
		opts = opts.WithTranslate(*c.Translate)
	}
	if c.Threads > 0 {
		opts.Threads = c.Threads
		opts.ThreadsSet = true
	}
	if c.InitialPrompt != "" {
		opts.InitialPrompt = c.InitialPrompt
		opts.InitialPromptSet = true
	}
	if c.Temperature != nil {
		opts.Temperature = float32(*c.Temperature)
		opts.TemperatureSet = true
	}
	if c.TemperatureFallback != nil {
		opts.TemperatureFloor = float32(*c.TemperatureFallback)
		opts.TemperatureFloorSet = true
	}

	return opts
}
