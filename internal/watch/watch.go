// Package watch transcribes recordings as they appear in a directory.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/pipeline"
	"github.com/sjzar/scribe/internal/transcript"
	"github.com/sjzar/scribe/internal/worker"
)

type Submitter interface {
	Submit(ctx context.Context, req worker.Request) (*worker.Response, error)
}

type Config struct {
	Dir        string
	Extensions []string
	// Settle is the quiet period after the last write before a file is picked up.
	Settle time.Duration
	// OutputDir defaults to Dir.
	OutputDir string
	Format    string
	Options   pipeline.AutoOptions
}

// Watcher submits an auto-transcribe request for every new recording in a
// single directory and saves the transcript next to the configured output.
// Subdirectories are not watched.
type Watcher struct {
	cfg Config
	sub Submitter

	mu     sync.Mutex
	timers map[string]*time.Timer
	done   map[string]stamp

	queue chan string
}

// stamp identifies a version of a file so rewrites are processed again.
type stamp struct {
	size int64
	mod  int64
}

func New(cfg Config, sub Submitter) (*Watcher, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, errors.InvalidArg("watch dir: " + err.Error())
	}
	if !info.IsDir() {
		return nil, errors.InvalidArg("watch dir " + cfg.Dir + " is not a directory")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.Dir
	}
	if cfg.Format == "" {
		cfg.Format = "txt"
	}
	if cfg.Format, err = transcript.CheckFormat(cfg.Format); err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:    cfg,
		sub:    sub,
		timers: make(map[string]*time.Timer),
		done:   make(map[string]stamp),
		queue:  make(chan string, 64),
	}, nil
}

// Run watches until ctx ends. Failures for individual files are logged and
// never stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.cfg.Dir); err != nil {
		return err
	}
	log.Info().Str("dir", w.cfg.Dir).Strs("extensions", w.cfg.Extensions).Msg("watching for recordings")

	go w.drain(ctx)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !w.accepts(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ctx, ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.cfg.Settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.queue <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			if err := w.process(ctx, path); err != nil {
				log.Err(err).Str("path", path).Msg("failed to transcribe recording")
			}
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.cfg.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// process transcribes path unless this version of it was already handled.
func (w *Watcher) process(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	st := stamp{size: info.Size(), mod: info.ModTime().UnixNano()}
	w.mu.Lock()
	prev, seen := w.done[path]
	w.mu.Unlock()
	if seen && prev == st {
		return nil
	}

	log.Info().Str("path", path).Msg("transcribing new recording")
	resp, err := w.sub.Submit(ctx, worker.NewAutoTranscribe([]string{path}, w.cfg.Options))
	if resp == nil {
		return err
	}
	for _, res := range resp.Results {
		if res.Transcript == nil {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(res.Source), filepath.Ext(res.Source))
		out := filepath.Join(w.cfg.OutputDir, base+"."+w.cfg.Format)
		if serr := res.Transcript.Save(out); serr != nil {
			return serr
		}
		log.Info().Str("path", path).Str("output", out).Msg("transcript saved")
	}

	w.mu.Lock()
	w.done[path] = st
	w.mu.Unlock()
	return err
}
