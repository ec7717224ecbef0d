package conf

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/transcript"
)

// EnvPrefix prefixes every environment override, e.g. SCRIBE_SPEECH_PROVIDER.
const EnvPrefix = "SCRIBE"

type Config struct {
	Log         LogConfig         `mapstructure:"log" json:"log"`
	Speech      SpeechConfig      `mapstructure:"speech" json:"speech"`
	Diarization DiarizationConfig `mapstructure:"diarization" json:"diarization"`
	Worker      WorkerConfig      `mapstructure:"worker" json:"worker"`
	HTTP        HTTPConfig        `mapstructure:"http" json:"http"`
	Output      OutputConfig      `mapstructure:"output" json:"output"`
	Watch       WatchConfig       `mapstructure:"watch" json:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}

// DiarizationConfig configures the pyannote helper.
type DiarizationConfig struct {
	Provider   string `mapstructure:"provider" json:"provider"`
	Model      string `mapstructure:"model" json:"model"`
	HFToken    string `mapstructure:"hf_token" json:"-"`
	CacheDir   string `mapstructure:"cache_dir" json:"cache_dir"`
	Device     string `mapstructure:"device" json:"device"`
	PythonPath string `mapstructure:"python_path" json:"python_path"`
}

type WorkerConfig struct {
	// IdleTimeout is in seconds; 0 keeps the models loaded until exit.
	IdleTimeout int  `mapstructure:"idle_timeout" json:"idle_timeout"`
	Isolate     bool `mapstructure:"isolate" json:"isolate"`
}

func (c WorkerConfig) IdleDuration() time.Duration {
	if c.IdleTimeout <= 0 {
		return 0
	}
	return time.Duration(c.IdleTimeout) * time.Second
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

// OutputConfig sets where results are saved. An empty Dir means stdout for
// transcribe and the watched directory for watch.
type OutputConfig struct {
	Dir    string `mapstructure:"dir" json:"dir"`
	Format string `mapstructure:"format" json:"format"`
}

type WatchConfig struct {
	Dir        string   `mapstructure:"dir" json:"dir"`
	Extensions []string `mapstructure:"extensions" json:"extensions"`
	SettleMS   int      `mapstructure:"settle_ms" json:"settle_ms"`
}

func (c WatchConfig) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// SetDefaults registers the built-in defaults on v. The env prefix must
// already be set.
func SetDefaults(v *viper.Viper) {
	cache := defaultCacheDir()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("speech.provider", ProviderWhisperCPP)
	v.SetDefault("speech.model_dir", filepath.Join(cache, "models"))
	v.SetDefault("speech.request_timeout_seconds", 300)
	for _, key := range []string{"model", "device", "python_path", "language", "initial_prompt", "api_key", "base_url", "organization"} {
		v.SetDefault("speech."+key, "")
	}
	v.SetDefault("speech.threads", 0)
	// pointer fields stay nil unless set, so they are only bound to the environment
	for _, key := range []string{"speech.translate", "speech.temperature", "speech.temperature_fallback"} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("diarization.provider", "pyannote")
	v.SetDefault("diarization.model", "pyannote/speaker-diarization-3.1")
	v.SetDefault("diarization.cache_dir", cache)
	v.SetDefault("diarization.hf_token", "")
	v.SetDefault("diarization.device", "")
	v.SetDefault("diarization.python_path", "")

	v.SetDefault("worker.idle_timeout", 300)
	v.SetDefault("worker.isolate", false)

	v.SetDefault("http.addr", "127.0.0.1:5520")

	v.SetDefault("output.dir", "")
	v.SetDefault("output.format", "txt")

	v.SetDefault("watch.dir", "")
	v.SetDefault("watch.extensions", []string{".wav", ".mp3", ".m4a", ".mp4", ".ogg", ".flac", ".silk", ".webm"})
	v.SetDefault("watch.settle_ms", 2000)
}

// Load reads the config file at path, if any, applies SCRIBE_ environment
// overrides and returns the validated result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "load config", http.StatusBadRequest)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "load config", http.StatusBadRequest)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.Speech.Normalize()
	switch c.Speech.Provider {
	case ProviderWhisperCPP, ProviderOpenAI, ProviderPython:
	default:
		return errors.InvalidArg("speech.provider " + c.Speech.Provider)
	}
	c.Diarization.Provider = strings.ToLower(strings.TrimSpace(c.Diarization.Provider))
	if c.Diarization.Provider != "pyannote" {
		return errors.InvalidArg("diarization.provider " + c.Diarization.Provider)
	}
	format, err := transcript.CheckFormat(c.Output.Format)
	if err != nil {
		return err
	}
	c.Output.Format = format
	for i, ext := range c.Watch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Watch.Extensions[i] = ext
	}
	if c.Worker.IdleTimeout < 0 {
		return errors.InvalidArg("worker.idle_timeout must not be negative")
	}
	return nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "scribe")
	}
	return filepath.Join(os.TempDir(), "scribe")
}
