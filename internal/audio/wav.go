package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/sjzar/scribe/internal/errors"
)

// DecodeWAV reads a PCM WAV stream, downmixes it to mono and resamples it to
// SampleRate.
func DecodeWAV(r io.ReadSeeker) (*Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav stream")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav stream has no sample rate")
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	data := buf.Data
	if depth == 8 {
		// 8-bit wav is unsigned
		centered := make([]int, len(data))
		for i, v := range data {
			centered[i] = v - 128
		}
		data = centered
	}
	scale := float64(int64(1) << (depth - 1))

	mono := downmix(data, buf.Format.NumChannels, scale)
	return New(Resample(mono, buf.Format.SampleRate, SampleRate), SampleRate)
}

// WriteWAV encodes src as 16-bit mono PCM.
func WriteWAV(w io.WriteSeeker, src *Source) error {
	pcm := Float32ToPCM16(src.Samples())
	ints := make([]int, len(pcm))
	for i, v := range pcm {
		ints[i] = int(v)
	}

	enc := wav.NewEncoder(w, src.Rate(), 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: src.Rate()},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// WriteTempWAV writes src to a temporary file and returns its path. The caller removes it.
func WriteTempWAV(src *Source, pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	path := f.Name()
	if err := WriteWAV(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func loadWAV(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.InvalidSource(path, err.Error())
	}
	defer f.Close()

	src, err := DecodeWAV(f)
	if err != nil {
		return nil, errors.InvalidSource(path, err.Error())
	}
	return src, nil
}
