package scribe

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sjzar/scribe/internal/pipeline"
	"github.com/sjzar/scribe/internal/watch"
	"github.com/sjzar/scribe/internal/worker"
	"github.com/sjzar/scribe/pkg/util"
)

var watchFlags struct {
	extensions  string
	language    string
	numSpeakers int
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Transcribe recordings as they appear in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchFlags.extensions, "ext", "", "comma separated extensions to pick up (default from config)")
	f.StringVar(&watchFlags.language, "language", "", "spoken language, empty to detect")
	f.IntVar(&watchFlags.numSpeakers, "num-speakers", 0, "expected number of speakers, 0 when unknown")
	f.StringP("output-directory", "o", "", "where transcripts are saved (default from config output.dir)")
	f.String("output-format", "", "txt, json, md, html or tex (default from config)")
	_ = v.BindPFlag("output.dir", f.Lookup("output-directory"))
	_ = v.BindPFlag("output.format", f.Lookup("output-format"))
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	exts := cfg.Watch.Extensions
	if watchFlags.extensions != "" {
		exts = nil
		for _, e := range util.SplitList(watchFlags.extensions, ",") {
			e = strings.ToLower(e)
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, e)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	handle := newHandle(cfg.Worker.Isolate)
	defer handle.Stop(context.Background())
	go worker.NewSupervisor(handle, cfg.Worker.IdleDuration()).Run(ctx)

	w, err := watch.New(watch.Config{
		Dir:        dir,
		Extensions: exts,
		Settle:     cfg.Watch.Settle(),
		OutputDir:  cfg.Output.Dir,
		Format:     cfg.Output.Format,
		Options:    pipeline.AutoOptions{NumSpeakers: watchFlags.numSpeakers, Language: watchFlags.language},
	}, handle)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
