package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/errors"
)

// Remover deletes source recordings after they have been transcribed.
type Remover struct {
	// ShredPath is the shred binary. Shred overwrites the file ten times
	// and then zeroes it, which is slow for long recordings.
	ShredPath    string
	ShredTimeout time.Duration
}

func NewRemover() *Remover {
	return &Remover{ShredPath: "shred", ShredTimeout: 10 * time.Minute}
}

// Remove deletes path, overwriting it first when shred is set.
func (r *Remover) Remove(ctx context.Context, path string, shred bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.RemoveSource(path, err)
	}
	if info.IsDir() {
		return errors.RemoveSource(path, fmt.Errorf("is a directory, expected a file"))
	}

	if !shred {
		if err := os.Remove(path); err != nil {
			return errors.RemoveSource(path, err)
		}
		log.Info().Str("path", path).Msg("removed source file")
		return nil
	}

	log.Warn().Str("path", path).Int64("bytes", info.Size()).Msg("shredding source file, this may take a while")
	ctx, cancel := context.WithTimeout(ctx, r.ShredTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.ShredPath, "-z", "-u", "-n", "10", path)
	cmd.Stderr = &stderr
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.RemoveSource(path, fmt.Errorf("shred did not finish within %s", r.ShredTimeout))
		}
		return errors.RemoveSource(path, fmt.Errorf("shred: %w: %s", err, strings.TrimSpace(stderr.String())))
	}
	log.Info().Str("path", path).Dur("took", time.Since(start)).Msg("shredded source file")
	return nil
}
