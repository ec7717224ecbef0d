package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/pkg/util/silk"
)

// FFmpegPath is the binary used for containers the native decoders do not handle.
var FFmpegPath = "ffmpeg"

// Check reports whether path names a readable regular file.
func Check(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.InvalidSource(path, "empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.InvalidSource(path, "file does not exist")
		}
		return errors.InvalidSource(path, err.Error())
	}
	if info.IsDir() {
		return errors.InvalidSource(path, "is a directory, expected a file")
	}
	return nil
}

// Load decodes the file at path into a mono Source at SampleRate.
func Load(ctx context.Context, path string) (*Source, error) {
	if err := Check(path); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		src, err := loadWAV(path)
		if err == nil {
			return src, nil
		}
		// compressed wav payloads go through ffmpeg
		log.Debug().Err(err).Str("path", path).Msg("native wav decode failed, falling back to ffmpeg")
	case ".silk":
		return loadSilk(path)
	case ".mp4", ".m4a", ".m4v", ".mov":
		if err := probeMP4(path); err != nil {
			return nil, err
		}
	}

	return decodeFFmpeg(ctx, path)
}

func loadSilk(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InvalidSource(path, err.Error())
	}
	pcm, err := silk.Decode(data)
	if err != nil {
		return nil, errors.InvalidSource(path, err.Error())
	}
	return New(Resample(Int16ToFloat32(pcm), silk.SampleRate, SampleRate), SampleRate)
}

// probeMP4 rejects ISO-BMFF files that carry no sound track.
func probeMP4(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.InvalidSource(path, err.Error())
	}
	defer f.Close()

	parsed, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return errors.InvalidSource(path, fmt.Sprintf("parse mp4: %v", err))
	}

	moov := parsed.Moov
	if moov == nil && parsed.Init != nil {
		moov = parsed.Init.Moov
	}
	if moov == nil {
		return errors.InvalidSource(path, "mp4 has no moov box")
	}
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "soun" {
			return nil
		}
	}
	return errors.InvalidSource(path, "no audio track")
}

func decodeFFmpeg(ctx context.Context, path string) (*Source, error) {
	args := []string{
		"-nostdin",
		"-threads", "0",
		"-i", path,
		"-f", "s16le",
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-",
	}
	cmd := exec.CommandContext(ctx, FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.InvalidSource(path, fmt.Sprintf("ffmpeg: %v: %s", err, lastLine(stderr.String())))
	}

	raw := stdout.Bytes()
	pcm := make([]int16, len(raw)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return New(Int16ToFloat32(pcm), SampleRate)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
