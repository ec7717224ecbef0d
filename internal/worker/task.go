package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/sjzar/scribe/internal/diarize"
	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/pipeline"
	"github.com/sjzar/scribe/internal/transcript"
)

// Task is the kind of work a Request asks for.
type Task int

const (
	TaskStop Task = iota
	TaskAutoTranscribe
	TaskTranscribe
	TaskDiarize
)

var taskNames = map[Task]string{
	TaskStop:           "stop",
	TaskAutoTranscribe: "auto-transcribe",
	TaskTranscribe:     "transcribe",
	TaskDiarize:        "diarize",
}

func (t Task) String() string {
	if name, ok := taskNames[t]; ok {
		return name
	}
	return fmt.Sprintf("task(%d)", int(t))
}

func (t Task) MarshalText() ([]byte, error) {
	if _, ok := taskNames[t]; !ok {
		return nil, fmt.Errorf("unknown task %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Task) UnmarshalText(b []byte) error {
	parsed, translate, err := ParseTask(string(b))
	if err != nil {
		return err
	}
	if translate {
		return errors.InvalidTask("task %q implies options and cannot be used here", string(b))
	}
	*t = parsed
	return nil
}

// ParseTask accepts the canonical names and the command line aliases.
// translate is true for aliases that imply translation.
func ParseTask(s string) (task Task, translate bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto-transcribe", "autotranscribe", "auto_transcribe":
		return TaskAutoTranscribe, false, nil
	case "autotranscribe+translate", "auto-transcribe+translate":
		return TaskAutoTranscribe, true, nil
	case "transcribe":
		return TaskTranscribe, false, nil
	case "translate":
		return TaskTranscribe, true, nil
	case "diarize", "diarization":
		return TaskDiarize, false, nil
	case "stop":
		return TaskStop, false, nil
	}
	return 0, false, errors.InvalidTask("unknown task %q, expected auto-transcribe, transcribe, translate or diarize", s)
}

// Request asks the worker to run one task over one or more sources. Exactly
// the options payload matching Task is set.
type Request struct {
	Task       Task                        `json:"task"`
	Sources    []string                    `json:"sources,omitempty"`
	Auto       *pipeline.AutoOptions       `json:"auto,omitempty"`
	Transcribe *pipeline.TranscribeOptions `json:"transcribe,omitempty"`
	Diarize    *pipeline.DiarizeOptions    `json:"diarize,omitempty"`
}

func NewAutoTranscribe(sources []string, opts pipeline.AutoOptions) Request {
	return Request{Task: TaskAutoTranscribe, Sources: sources, Auto: &opts}
}

func NewTranscribe(sources []string, opts pipeline.TranscribeOptions) Request {
	return Request{Task: TaskTranscribe, Sources: sources, Transcribe: &opts}
}

func NewDiarize(sources []string, opts pipeline.DiarizeOptions) Request {
	return Request{Task: TaskDiarize, Sources: sources, Diarize: &opts}
}

// StopRequest is the sentinel that makes a worker unload and exit.
func StopRequest() Request {
	return Request{Task: TaskStop}
}

func (r Request) Validate() error {
	payloads := 0
	for _, set := range []bool{r.Auto != nil, r.Transcribe != nil, r.Diarize != nil} {
		if set {
			payloads++
		}
	}

	switch r.Task {
	case TaskStop:
		if payloads > 0 || len(r.Sources) > 0 {
			return errors.InvalidTask("stop takes no sources or options")
		}
		return nil
	case TaskAutoTranscribe:
		if r.Auto == nil {
			return errors.InvalidTask("auto-transcribe requires auto options")
		}
		if r.Auto.NumSpeakers < 0 {
			return errors.InvalidTask("num_speakers must not be negative, got %d", r.Auto.NumSpeakers)
		}
	case TaskTranscribe:
		if r.Transcribe == nil {
			return errors.InvalidTask("transcribe requires transcribe options")
		}
	case TaskDiarize:
		if r.Diarize == nil {
			return errors.InvalidTask("diarize requires diarize options")
		}
		if r.Diarize.NumSpeakers < 0 {
			return errors.InvalidTask("num_speakers must not be negative, got %d", r.Diarize.NumSpeakers)
		}
	default:
		return errors.InvalidTask("unknown task %s", r.Task)
	}
	if payloads != 1 {
		return errors.InvalidTask("%s request carries options for another task", r.Task)
	}
	if len(r.Sources) == 0 {
		return errors.InvalidTask("%s requires at least one source", r.Task)
	}
	return nil
}

// Result is the outcome for one source. Which field is set depends on the task.
type Result struct {
	Source      string                 `json:"source"`
	Transcript  *transcript.Transcript `json:"transcript,omitempty"`
	Diarization *diarize.Result        `json:"diarization,omitempty"`
	Text        string                 `json:"text,omitempty"`
}

// Response answers exactly one Request. Results may be present alongside an
// error when a later step, such as removing the source, failed.
type Response struct {
	Task    Task     `json:"task"`
	Results []Result `json:"results,omitempty"`
	Error   string   `json:"error,omitempty"`
	Kind    string   `json:"kind,omitempty"`
}

func (r *Response) fail(err error) Response {
	r.Error = err.Error()
	r.Kind = errors.KindOf(err)
	return *r
}

// Err rebuilds the error carried by the response, or nil.
func (r *Response) Err() error {
	return errors.Restore(r.Kind, r.Error)
}

// Render encodes one result. Transcripts honour format, diarizations are
// always JSON and plain transcriptions are always text.
func (r Result) Render(format string) ([]byte, error) {
	switch {
	case r.Transcript != nil:
		return r.Transcript.Render(format)
	case r.Diarization != nil:
		data, err := json.Marshal(r.Diarization)
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "   "); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}
	return []byte(r.Text), nil
}

// String renders all results as text, labelling each one when there are several.
func (r *Response) String() string {
	if len(r.Results) == 1 {
		out, _ := r.Results[0].Render("txt")
		return string(out)
	}
	var b strings.Builder
	for _, res := range r.Results {
		out, _ := res.Render("txt")
		fmt.Fprintf(&b, "TRANSCRIPT FOR %s:\n%s\n", filepath.Base(res.Source), out)
	}
	return b.String()
}

type descriptor struct {
	Task           string   `mapstructure:"task"`
	Source         []string `mapstructure:"source"`
	Sources        []string `mapstructure:"sources"`
	NumSpeakers    int      `mapstructure:"num_speakers"`
	Language       string   `mapstructure:"language"`
	Translate      bool     `mapstructure:"translate"`
	RemoveOriginal bool     `mapstructure:"remove_original"`
	Shred          bool     `mapstructure:"shred"`
}

// DecodeDescriptor builds a Request from a loosely typed task descriptor as
// sent by the HTTP and MCP front ends. source may be a path or a list of
// paths; a language of "None" and num_speakers of 0 mean unset.
func DecodeDescriptor(in map[string]any) (Request, error) {
	var d descriptor
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &d,
	})
	if err != nil {
		return Request{}, err
	}
	if err := dec.Decode(in); err != nil {
		return Request{}, errors.InvalidTask("invalid task descriptor: %v", err)
	}

	task, translate, err := ParseTask(d.Task)
	if err != nil {
		return Request{}, err
	}
	translate = translate || d.Translate

	language := strings.TrimSpace(d.Language)
	if strings.EqualFold(language, "none") {
		language = ""
	}
	sources := make([]string, 0, len(d.Source)+len(d.Sources))
	for _, s := range append(d.Source, d.Sources...) {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}

	var req Request
	switch task {
	case TaskAutoTranscribe:
		req = NewAutoTranscribe(sources, pipeline.AutoOptions{
			NumSpeakers:    d.NumSpeakers,
			Language:       language,
			Translate:      translate,
			RemoveOriginal: d.RemoveOriginal,
			Shred:          d.Shred,
		})
	case TaskTranscribe:
		req = NewTranscribe(sources, pipeline.TranscribeOptions{Language: language, Translate: translate})
	case TaskDiarize:
		req = NewDiarize(sources, pipeline.DiarizeOptions{NumSpeakers: d.NumSpeakers})
	default:
		req = StopRequest()
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}
