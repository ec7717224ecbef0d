package scribe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/pipeline"
	"github.com/sjzar/scribe/internal/transcript"
	"github.com/sjzar/scribe/internal/worker"
)

var transcribeFlags struct {
	files          []string
	task           string
	language       string
	numSpeakers    int
	outputDir      string
	outputFormat   string
	removeOriginal bool
	shred          bool
	isolate        bool
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [files...]",
	Short: "Transcribe, translate or diarize recordings",
	Example: `  scribe transcribe -f meeting.m4a --num-speakers 3 -o out --output-format html
  scribe transcribe --task translate interview.wav`,
	RunE: runTranscribe,
}

func init() {
	f := transcribeCmd.Flags()
	f.StringArrayVarP(&transcribeFlags.files, "audio-files", "f", nil, "recording to process, repeatable")
	f.StringVar(&transcribeFlags.task, "task", "autotranscribe", "autotranscribe, autotranscribe+translate, transcribe, translate or diarization")
	f.StringVar(&transcribeFlags.language, "language", "", "spoken language, empty to detect")
	f.IntVar(&transcribeFlags.numSpeakers, "num-speakers", 2, "expected number of speakers, 0 when unknown")
	f.StringVarP(&transcribeFlags.outputDir, "output-directory", "o", "", "write results here instead of stdout")
	f.StringVar(&transcribeFlags.outputFormat, "output-format", "", "txt, json, md, html or tex (default from config)")
	f.BoolVar(&transcribeFlags.removeOriginal, "remove-original", false, "delete each recording after a successful transcription")
	f.BoolVar(&transcribeFlags.shred, "shred", false, "overwrite the recording before deleting it (implies --remove-original)")
	f.BoolVar(&transcribeFlags.isolate, "isolate", false, "run the models in a child process")
	rootCmd.AddCommand(transcribeCmd)
}

func buildRequest(sources []string) (worker.Request, error) {
	task, translate, err := worker.ParseTask(transcribeFlags.task)
	if err != nil {
		return worker.Request{}, err
	}
	var req worker.Request
	switch task {
	case worker.TaskAutoTranscribe:
		req = worker.NewAutoTranscribe(sources, pipeline.AutoOptions{
			NumSpeakers:    transcribeFlags.numSpeakers,
			Language:       transcribeFlags.language,
			Translate:      translate,
			RemoveOriginal: transcribeFlags.removeOriginal || transcribeFlags.shred,
			Shred:          transcribeFlags.shred,
		})
	case worker.TaskTranscribe:
		req = worker.NewTranscribe(sources, pipeline.TranscribeOptions{Language: transcribeFlags.language, Translate: translate})
	case worker.TaskDiarize:
		req = worker.NewDiarize(sources, pipeline.DiarizeOptions{NumSpeakers: transcribeFlags.numSpeakers})
	default:
		return worker.Request{}, errors.InvalidTask("task %s cannot be run from the command line", task)
	}
	return req, req.Validate()
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	sources := append(append([]string{}, transcribeFlags.files...), args...)
	req, err := buildRequest(sources)
	if err != nil {
		return err
	}

	// a bad format must fail before the models run and sources are removed
	format, err := resultFormat()
	if err != nil {
		return err
	}
	if transcribeFlags.outputDir != "" {
		if err := os.MkdirAll(transcribeFlags.outputDir, 0o755); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	handle := newHandle(transcribeFlags.isolate || cfg.Worker.Isolate)
	defer func() {
		if err := handle.Stop(ctx); err != nil {
			log.Debug().Err(err).Msg("stop model worker")
		}
	}()

	resp, err := handle.Submit(ctx, req)
	if resp == nil {
		return err
	}
	if transcribeFlags.outputDir == "" {
		fmt.Fprint(cmd.OutOrStdout(), resp.String())
		return err
	}
	return errors.Join(err, saveResults(resp.Results, transcribeFlags.outputDir, format))
}

func resultFormat() (string, error) {
	if transcribeFlags.outputFormat == "" {
		return cfg.Output.Format, nil
	}
	return transcript.CheckFormat(transcribeFlags.outputFormat)
}

// saveResults saves every result, carrying on past failed writes.
func saveResults(results []worker.Result, dir, format string) error {
	var errs []error
	for _, res := range results {
		if err := saveResult(res, dir, format); err != nil {
			log.Error().Err(err).Str("source", res.Source).Msg("save result")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// saveResult writes one result as <base>.<ext> into dir. Diarizations are
// always JSON and plain transcriptions always text.
func saveResult(res worker.Result, dir, format string) error {
	base := strings.TrimSuffix(filepath.Base(res.Source), filepath.Ext(res.Source))
	ext := strings.TrimPrefix(format, ".")
	switch {
	case res.Diarization != nil:
		ext = "json"
	case res.Transcript == nil:
		ext = "txt"
	}
	out := filepath.Join(dir, base+"."+ext)
	data, err := res.Render(ext)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("source", res.Source).Str("output", out).Msg("result saved")
	return nil
}
