package scribe

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sjzar/scribe/internal/conf"
	"github.com/sjzar/scribe/internal/models"
	"github.com/sjzar/scribe/internal/worker"
)

var (
	Debug      bool
	configFile string

	v   = viper.New()
	cfg *conf.Config
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Speaker-attributed transcription of audio and video recordings",
	Long: `scribe diarizes recordings, transcribes every speaker turn and exports the
result as text, JSON, HTML, Markdown or LaTeX. Models are loaded on demand by a
worker and unloaded again when it has been idle for a while.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, args []string) error {
	initLog(conf.LogConfig{Level: "info", Pretty: true})
	loaded, err := conf.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded
	initLog(cfg.Log)
	log.Debug().Interface("config", cfg).Msg("config loaded")
	return nil
}

// newHandle returns the worker handle, running the models in a child
// process when isolate is set.
func newHandle(isolate bool) *worker.Handle {
	if !isolate {
		return worker.NewHandle(&worker.LocalSpawner{Load: models.Loader(cfg)})
	}
	args := []string{"worker"}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	if Debug {
		args = append(args, "--debug")
	}
	return worker.NewHandle(&worker.ProcessSpawner{Args: args})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
