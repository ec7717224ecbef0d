package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/audio"
	"github.com/sjzar/scribe/internal/diarize"
	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/pipeline"
	"github.com/sjzar/scribe/internal/transcript"
)

// Models is the loaded model pair a worker serves requests with.
// *pipeline.Pipeline implements it.
type Models interface {
	AutoTranscribeFile(ctx context.Context, path string, opts pipeline.AutoOptions) (*transcript.Transcript, error)
	TranscribeFile(ctx context.Context, path string, opts pipeline.TranscribeOptions) (string, error)
	DiarizeFile(ctx context.Context, path string, opts pipeline.DiarizeOptions) (*diarize.Result, error)
	Close()
}

// Loader constructs the models. It runs once per worker lifetime.
type Loader func(ctx context.Context) (Models, error)

// Serve loads the models and then answers requests from q one at a time
// until a stop request arrives or ctx ends. A load failure is returned as a
// model-load error and the worker never reports loaded.
func Serve(ctx context.Context, load Loader, q *Queues) error {
	id := uuid.NewString()[:8]
	logger := log.With().Str("worker", id).Logger()

	logger.Info().Msg("loading models")
	models, err := load(ctx)
	if err != nil {
		if !errors.Is(err, errors.ErrModelLoad) {
			err = errors.ModelLoad(err)
		}
		logger.Error().Err(err).Msg("model worker failed to start")
		return err
	}

	q.State.touch()
	q.State.setLoaded(true)
	logger.Info().Msg("models loaded")

	shutdown := func() {
		models.Close()
		q.drain()
		q.State.setRunning(false)
		q.State.setLoaded(false)
	}

	for {
		var req Request
		select {
		case <-ctx.Done():
			shutdown()
			return ctx.Err()
		case req = <-q.Requests:
		}

		if req.Task == TaskStop {
			logger.Info().Msg("stop requested, unloading models")
			shutdown()
			return nil
		}

		q.State.setRunning(true)
		resp := dispatch(ctx, models, req)
		q.State.touch()
		q.State.setRunning(false)

		select {
		case q.Responses <- resp:
		case <-ctx.Done():
			shutdown()
			return ctx.Err()
		}
	}
}

func dispatch(ctx context.Context, m Models, req Request) (resp Response) {
	resp = Response{Task: req.Task}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("task", req.Task.String()).Msg("task panicked")
			resp = resp.fail(fmt.Errorf("task %s panicked: %v", req.Task, r))
		}
	}()

	if err := req.Validate(); err != nil {
		return resp.fail(err)
	}
	for _, src := range req.Sources {
		if err := audio.Check(src); err != nil {
			return resp.fail(err)
		}
	}

	for _, src := range req.Sources {
		res := Result{Source: src}
		var err error
		switch req.Task {
		case TaskAutoTranscribe:
			res.Transcript, err = m.AutoTranscribeFile(ctx, src, *req.Auto)
		case TaskTranscribe:
			res.Text, err = m.TranscribeFile(ctx, src, *req.Transcribe)
		case TaskDiarize:
			res.Diarization, err = m.DiarizeFile(ctx, src, *req.Diarize)
		}
		if err != nil {
			// a failed removal still carries the transcript
			if res.Transcript != nil {
				resp.Results = append(resp.Results, res)
			}
			return resp.fail(err)
		}
		resp.Results = append(resp.Results, res)
	}
	return resp
}
