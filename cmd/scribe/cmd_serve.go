package scribe

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	scribehttp "github.com/sjzar/scribe/internal/http"
	"github.com/sjzar/scribe/internal/worker"
	"github.com/sjzar/scribe/pkg/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept transcription tasks over HTTP and MCP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config http.addr)")
	serveCmd.Flags().Bool("isolate", false, "run the models in a child process")
	serveCmd.Flags().Int("idle-timeout", 0, "seconds before idle models are unloaded, 0 never (default from config)")
	_ = v.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("worker.isolate", serveCmd.Flags().Lookup("isolate"))
	_ = v.BindPFlag("worker.idle_timeout", serveCmd.Flags().Lookup("idle-timeout"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	handle := newHandle(cfg.Worker.Isolate)
	go worker.NewSupervisor(handle, cfg.Worker.IdleDuration()).Run(ctx)

	svc := scribehttp.NewService(scribehttp.Config{Addr: cfg.HTTP.Addr, UploadDir: os.TempDir()}, handle)
	if err := svc.Start(); err != nil {
		return err
	}
	log.Info().Str("url", util.ServiceURL(cfg.HTTP.Addr)).Msg("submit tasks to /api/v1/tasks or the MCP endpoint /mcp")

	<-ctx.Done()
	_ = svc.Stop()
	return handle.Stop(context.Background())
}
