// Package diarize turns raw speaker annotations into ordered speaker turns.
package diarize

import (
	"context"
	"encoding/json"
	"fmt"
)

// Entry is one raw track entry reported by an Engine.
type Entry struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Turn is a maximal interval attributed to one speaker.
type Turn struct {
	Start   float64
	End     float64
	Speaker string
}

// Options are per-call hints passed to an Engine.
type Options struct {
	// NumSpeakers is the expected speaker count, 0 when unknown.
	NumSpeakers int
}

// Engine reports who spoke when.
type Engine interface {
	Apply(ctx context.Context, samples []float32, sampleRate int, opts Options) ([]Entry, error)
	Close()
}

// Result is the normalized output of one diarization run.
type Result struct {
	Turns []Turn
}

// Normalize merges consecutive entries of the same speaker into turns.
func Normalize(entries []Entry) *Result {
	res := &Result{}
	switch len(entries) {
	case 0:
		return res
	case 1:
		e := entries[0]
		res.Turns = []Turn{{Start: e.Start, End: e.End, Speaker: e.Speaker}}
		return res
	}

	first := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].Speaker != entries[first].Speaker {
			res.Turns = append(res.Turns, span(entries, first, i-1))
			first = i
		}
	}
	res.Turns = append(res.Turns, span(entries, first, len(entries)-1))
	return res
}

func span(entries []Entry, first, last int) Turn {
	return Turn{
		Start:   entries[first].Start,
		End:     entries[last].End,
		Speaker: entries[first].Speaker,
	}
}

func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Turns)
}

// Speakers returns the distinct speaker ids in order of first appearance.
func (r *Result) Speakers() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.Turns {
		if !seen[t.Speaker] {
			seen[t.Speaker] = true
			out = append(out, t.Speaker)
		}
	}
	return out
}

type wireResult struct {
	Speakers []string     `json:"speakers"`
	Segments [][2]float64 `json:"segments"`
}

// MarshalJSON encodes the result as parallel "speakers" and "segments" lists.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Speakers: make([]string, len(r.Turns)),
		Segments: make([][2]float64, len(r.Turns)),
	}
	for i, t := range r.Turns {
		w.Speakers[i] = t.Speaker
		w.Segments[i] = [2]float64{t.Start, t.End}
	}
	return json.Marshal(w)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Speakers) != len(w.Segments) {
		return fmt.Errorf("diarization has %d speakers for %d segments", len(w.Speakers), len(w.Segments))
	}
	r.Turns = make([]Turn, len(w.Segments))
	for i, seg := range w.Segments {
		r.Turns[i] = Turn{Start: seg[0], End: seg[1], Speaker: w.Speakers[i]}
	}
	return nil
}
