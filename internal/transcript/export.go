package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sjzar/scribe/internal/errors"
)

// Formats lists the export formats by file extension, without the dot.
var Formats = []string{"txt", "json", "md", "html", "tex"}

// CheckFormat normalizes a format name or extension (".HTML" becomes "html")
// and fails with ErrUnknownFormat when no exporter handles it.
func CheckFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.UnknownFormat(format)
}

type wireEntry struct {
	Speaker string     `json:"speakers"`
	Segment [2]float64 `json:"segments"`
	Text    string     `json:"text"`
}

// JSON encodes the transcript as an object keyed by entry index. With
// useAnnotation, annotated speakers are replaced by their names.
func (t *Transcript) JSON(useAnnotation bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range t.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		speaker := e.Speaker
		if useAnnotation {
			speaker = t.label(speaker)
		}
		data, err := json.Marshal(wireEntry{Speaker: speaker, Segment: [2]float64{e.Start, e.End}, Text: e.Text})
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%q:", strconv.Itoa(i))
		buf.Write(data)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "   "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// MarshalJSON encodes raw speaker ids so the value survives a round trip.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	return t.JSON(false)
}

func (t *Transcript) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// FromJSON parses the JSON export back into a Transcript.
func FromJSON(data []byte) (*Transcript, error) {
	var raw map[string]wireEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}

	idx := make([]int, 0, len(raw))
	for k := range raw {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("parse transcript: key %q is not an index", k)
		}
		idx = append(idx, i)
	}
	sort.Ints(idx)

	entries := make([]Entry, len(idx))
	for pos, i := range idx {
		if i != pos {
			return nil, fmt.Errorf("parse transcript: indices are not contiguous at %d", pos)
		}
		w := raw[strconv.Itoa(i)]
		entries[pos] = Entry{Speaker: w.Speaker, Start: w.Segment[0], End: w.Segment[1], Text: w.Text}
	}
	return New(entries), nil
}

// HTML wraps the plain text rendering in a minimal document.
func (t *Transcript) HTML() string {
	body := html.EscapeString(t.String())
	body = strings.ReplaceAll(body, "\n", "<br>")
	body = strings.ReplaceAll(body, "\t", "&nbsp;&nbsp;&nbsp;&nbsp;")
	return "<html><body><p>" + body + "</p></body></html>"
}

// Tex renders a LaTeX drama script. Without an annotation the speakers are
// named a, b, c and so on.
func (t *Transcript) Tex() string {
	speakers := t.Speakers()
	names := make(map[string]string, len(speakers))
	for i, s := range speakers {
		if len(t.annotation) > 0 {
			names[s] = t.label(s)
		} else {
			names[s] = letterName(i)
		}
	}

	var b strings.Builder
	b.WriteString(`\begin{drama}`)
	for _, s := range speakers {
		fmt.Fprintf(&b, "\n\t\\Character{%s}{%s}", names[s], names[s])
	}
	for _, e := range t.entries {
		fmt.Fprintf(&b, "\n\\%sspeaks:\n%s", names[e.Speaker], e.Text)
	}
	b.WriteString("\n\\end{drama}")
	return b.String()
}

func letterName(i int) string {
	name := ""
	for {
		name = string(rune('a'+i%26)) + name
		i = i/26 - 1
		if i < 0 {
			return name
		}
	}
}

// Render encodes the transcript in the named format.
func (t *Transcript) Render(format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "txt":
		return []byte(t.String()), nil
	case "json":
		return t.JSON(true)
	case "md", "html":
		return []byte(t.HTML()), nil
	case "tex":
		return []byte(t.Tex()), nil
	}
	return nil, errors.UnknownFormat(format)
}

// Save writes the transcript to path in the format given by its extension.
func (t *Transcript) Save(path string) error {
	data, err := t.Render(filepath.Ext(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
