// Package audio holds decoded mono audio and the loaders that produce it.
package audio

import (
	"fmt"
	"math"
	"time"
)

// SampleRate is the rate every loader resamples to.
const SampleRate = 16000

// Source is an immutable view of mono PCM samples.
type Source struct {
	samples []float32
	rate    int
}

// New wraps samples recorded at rate. The slice is not copied; callers must
// not modify it afterwards.
func New(samples []float32, rate int) (*Source, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", rate)
	}
	return &Source{samples: samples, rate: rate}, nil
}

// Samples returns the underlying samples. The returned slice must be treated as read-only.
func (s *Source) Samples() []float32 { return s.samples }

func (s *Source) Rate() int { return s.rate }

func (s *Source) Len() int { return len(s.samples) }

// Seconds returns the clip length in seconds.
func (s *Source) Seconds() float64 {
	return float64(len(s.samples)) / float64(s.rate)
}

func (s *Source) Duration() time.Duration {
	return time.Duration(s.Seconds() * float64(time.Second))
}

// Cut returns the view between start and end seconds. The start is floored
// and the end ceiled to whole samples, and both are clamped to the clip.
// The result shares memory with s.
func (s *Source) Cut(start, end float64) *Source {
	lo := clampIndex(math.Floor(start*float64(s.rate)), len(s.samples))
	hi := clampIndex(math.Ceil(end*float64(s.rate)), len(s.samples))
	if hi < lo {
		hi = lo
	}
	return &Source{samples: s.samples[lo:hi:hi], rate: s.rate}
}

func clampIndex(v float64, n int) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > float64(n):
		return n
	}
	return int(v)
}
