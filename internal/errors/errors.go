package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kinds callers can match with Is. Every *Error created by the helpers in
// this package carries exactly one of them.
var (
	ErrInvalidArg     = stderrors.New("invalid argument")
	ErrInvalidSource  = stderrors.New("invalid source")
	ErrInvalidTask    = stderrors.New("invalid task")
	ErrModelLoad      = stderrors.New("model load failed")
	ErrWorkerExited   = stderrors.New("worker exited")
	ErrCountMismatch  = stderrors.New("speaker count mismatch")
	ErrUnknownSpeaker = stderrors.New("unknown speaker")
	ErrUnknownFormat  = stderrors.New("unknown file format")
	ErrRemoveSource   = stderrors.New("remove source failed")
)

var kinds = map[string]error{}

func init() {
	for _, k := range []error{
		ErrInvalidArg, ErrInvalidSource, ErrInvalidTask, ErrModelLoad, ErrWorkerExited,
		ErrCountMismatch, ErrUnknownSpeaker, ErrUnknownFormat, ErrRemoveSource,
	} {
		kinds[k.Error()] = k
	}
}

// Error is the application error carried through the service and rendered by
// the HTTP layer.
type Error struct {
	Message string `json:"message"`
	Cause   error  `json:"-"`
	Code    int    `json:"-"`
	kind    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// Kind returns the name of the error kind, or "" for untyped errors.
func (e *Error) Kind() string {
	if e.kind == nil {
		return ""
	}
	return e.kind.Error()
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Cause = err
	return &c
}

func New(err error, code int, message string) *Error {
	return &Error{Message: message, Cause: err, Code: code}
}

func Wrap(err error, message string, code int) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Cause: err, Code: code, kind: kindOf(err)}
}

func Newf(err error, code int, format string, args ...any) *Error {
	return New(err, code, fmt.Sprintf(format, args...))
}

func InvalidArg(arg string) *Error {
	return &Error{Message: fmt.Sprintf("invalid argument: %s", arg), Code: http.StatusBadRequest, kind: ErrInvalidArg}
}

func InvalidSource(path, reason string) *Error {
	return &Error{Message: fmt.Sprintf("invalid source %q: %s", path, reason), Code: http.StatusBadRequest, kind: ErrInvalidSource}
}

func InvalidTask(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Code: http.StatusBadRequest, kind: ErrInvalidTask}
}

func ModelLoad(err error) *Error {
	return &Error{Message: "failed to load models", Cause: err, Code: http.StatusServiceUnavailable, kind: ErrModelLoad}
}

func WorkerExited(err error) *Error {
	return &Error{Message: "model worker exited", Cause: err, Code: http.StatusServiceUnavailable, kind: ErrWorkerExited}
}

func CountMismatch(got, want int) *Error {
	return &Error{
		Message: fmt.Sprintf("got %d speaker names, transcript has %d speakers", got, want),
		Code:    http.StatusBadRequest,
		kind:    ErrCountMismatch,
	}
}

func UnknownSpeaker(id string, known []string) *Error {
	return &Error{
		Message: fmt.Sprintf("unknown speaker %q, expected one of %v", id, known),
		Code:    http.StatusBadRequest,
		kind:    ErrUnknownSpeaker,
	}
}

func UnknownFormat(ext string) *Error {
	return &Error{
		Message: fmt.Sprintf("unknown file format %q, expected .txt, .json, .md, .html or .tex", ext),
		Code:    http.StatusBadRequest,
		kind:    ErrUnknownFormat,
	}
}

func RemoveSource(path string, err error) *Error {
	return &Error{Message: fmt.Sprintf("remove %q", path), Cause: err, Code: http.StatusInternalServerError, kind: ErrRemoveSource}
}

// Restore rebuilds an error that crossed a process boundary as a kind name
// and message.
func Restore(kind, message string) error {
	if message == "" {
		return nil
	}
	k, ok := kinds[kind]
	if !ok {
		return stderrors.New(message)
	}
	code := http.StatusInternalServerError
	switch k {
	case ErrInvalidArg, ErrInvalidSource, ErrInvalidTask, ErrCountMismatch, ErrUnknownSpeaker, ErrUnknownFormat:
		code = http.StatusBadRequest
	case ErrModelLoad, ErrWorkerExited:
		code = http.StatusServiceUnavailable
	}
	return &Error{Message: message, Code: code, kind: k}
}

// KindOf returns the kind name carried by err, or "".
func KindOf(err error) string {
	if k := kindOf(err); k != nil {
		return k.Error()
	}
	return ""
}

func kindOf(err error) error {
	var e *Error
	for stderrors.As(err, &e) {
		if e.kind != nil {
			return e.kind
		}
		if e.Cause == nil {
			return nil
		}
		err = e.Cause
	}
	return nil
}

// IsFatal reports whether err ends the whole worker session rather than a
// single call.
func IsFatal(err error) bool {
	return Is(err, ErrModelLoad) || Is(err, ErrWorkerExited)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
