package scribe

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sjzar/scribe/internal/models"
	"github.com/sjzar/scribe/internal/worker"
)

// workerCmd is the child side of an isolated model worker. stdout carries
// the control channel and must not be written to by anything else.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return worker.ServeStdio(ctx, models.Loader(cfg), os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
