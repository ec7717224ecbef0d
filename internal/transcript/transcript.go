// Package transcript holds the speaker-attributed output of a pipeline run
// and its export formats.
package transcript

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sjzar/scribe/internal/errors"
)

// Entry is one transcript unit.
type Entry struct {
	Speaker string
	Start   float64
	End     float64
	Text    string
}

// Transcript is an ordered list of entries plus an optional mapping from
// speaker id to a human readable name.
type Transcript struct {
	entries    []Entry
	annotation map[string]string
}

func New(entries []Entry) *Transcript {
	return &Transcript{
		entries:    append([]Entry(nil), entries...),
		annotation: map[string]string{},
	}
}

func (t *Transcript) Len() int { return len(t.entries) }

// Entries returns a copy of the entries in conversational order.
func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Speakers returns the distinct speaker ids, sorted.
func (t *Transcript) Speakers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range t.entries {
		if _, ok := seen[e.Speaker]; ok {
			continue
		}
		seen[e.Speaker] = struct{}{}
		out = append(out, e.Speaker)
	}
	sort.Strings(out)
	return out
}

// Annotation returns a copy of the speaker name mapping.
func (t *Transcript) Annotation() map[string]string {
	out := make(map[string]string, len(t.annotation))
	for k, v := range t.annotation {
		out[k] = v
	}
	return out
}

// Annotate assigns names to speakers. Positional names are matched to the
// sorted speaker ids and must cover all of them; mapping entries then
// override by id. Nothing is changed when either check fails.
func (t *Transcript) Annotate(names []string, mapping map[string]string) error {
	speakers := t.Speakers()
	if len(names) > 0 && len(names) != len(speakers) {
		return errors.CountMismatch(len(names), len(speakers))
	}

	known := make(map[string]struct{}, len(speakers))
	for _, s := range speakers {
		known[s] = struct{}{}
	}
	unknown := make([]string, 0)
	for id := range mapping {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.UnknownSpeaker(strings.Join(unknown, ", "), speakers)
	}

	annotation := make(map[string]string, len(speakers))
	for i, name := range names {
		annotation[speakers[i]] = name
	}
	for id, name := range mapping {
		annotation[id] = name
	}
	t.annotation = annotation
	return nil
}

// ParseNames splits a comma separated list of speaker names.
func ParseNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (t *Transcript) label(speaker string) string {
	if name, ok := t.annotation[speaker]; ok {
		return name
	}
	return speaker
}

// String renders one line per entry: speaker, time range and text.
func (t *Transcript) String() string {
	var b strings.Builder
	for _, e := range t.entries {
		fmt.Fprintf(&b, "%s (%s ; %s):\t%s\n", t.label(e.Speaker), clock(e.Start), clock(e.End), e.Text)
	}
	return b.String()
}

// clock formats seconds as HH:MM:SS, truncating fractions.
func clock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int64(sec)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
