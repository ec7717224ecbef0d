package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sjzar/scribe/internal/diarize"
	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/transcript"
	"github.com/sjzar/scribe/internal/worker"
)

func (s *Service) initRouter() {
	s.initBaseRouter()
	s.initAPIRouter()
	s.initMCPRouter()
}

func (s *Service) initBaseRouter() {
	s.router.GET("/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

func (s *Service) initAPIRouter() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/worker", s.handleWorkerStatus)
		api.POST("/worker/stop", s.handleWorkerStop)
		api.POST("/tasks", s.handleTask)
		api.POST("/annotate", s.handleAnnotate)
	}
}

func (s *Service) initMCPRouter() {
	s.router.Any("/mcp", func(c *gin.Context) { s.mcpStreamableServer.ServeHTTP(c.Writer, c.Request) })
	s.router.Any("/sse", func(c *gin.Context) { s.mcpSSEServer.ServeHTTP(c.Writer, c.Request) })
	s.router.Any("/message", func(c *gin.Context) { s.mcpSSEServer.ServeHTTP(c.Writer, c.Request) })
}

// GET /api/v1/worker
func (s *Service) handleWorkerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.worker.Status())
}

// POST /api/v1/worker/stop
func (s *Service) handleWorkerStop(c *gin.Context) {
	if err := s.worker.Stop(c.Request.Context()); err != nil {
		errors.Err(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

type taskResult struct {
	Source      string                 `json:"source"`
	Output      string                 `json:"output"`
	Transcript  *transcript.Transcript `json:"transcript,omitempty"`
	Diarization *diarize.Result        `json:"diarization,omitempty"`
}

// POST /api/v1/tasks
//
// Accepts either a JSON task descriptor or a multipart form with one or more
// "files" and the descriptor fields as form values. Uploaded files are
// removed once the task finishes.
func (s *Service) handleTask(c *gin.Context) {
	var (
		desc  map[string]any
		names map[string]string
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		var cleanup func()
		desc, names, cleanup, err = s.bindUpload(c)
		if cleanup != nil {
			defer cleanup()
		}
	} else {
		err = c.ShouldBindJSON(&desc)
		if err != nil {
			err = errors.InvalidTask("invalid request payload: %v", err)
		}
	}
	if err != nil {
		errors.Err(c, err)
		return
	}

	// checked before the task runs: a removed source cannot be rendered again
	format := "txt"
	if raw, ok := desc["format"]; ok {
		f, isString := raw.(string)
		if !isString {
			errors.Err(c, errors.InvalidArg(fmt.Sprintf("format must be a string, got %T", raw)))
			return
		}
		if f != "" {
			if format, err = transcript.CheckFormat(f); err != nil {
				errors.Err(c, err)
				return
			}
		}
		delete(desc, "format")
	}

	req, err := worker.DecodeDescriptor(desc)
	if err != nil {
		errors.Err(c, err)
		return
	}

	resp, err := s.worker.Submit(c.Request.Context(), req)
	if resp == nil {
		errors.Err(c, err)
		return
	}

	results := make([]taskResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out, rerr := r.Render(format)
		if rerr != nil {
			errors.Err(c, rerr)
			return
		}
		src := r.Source
		if name, ok := names[src]; ok {
			src = name
		}
		results = append(results, taskResult{
			Source:      src,
			Output:      string(out),
			Transcript:  r.Transcript,
			Diarization: r.Diarization,
		})
	}

	body := gin.H{"task": resp.Task, "results": results}
	code := http.StatusOK
	if err != nil {
		var e *errors.Error
		code = http.StatusInternalServerError
		if errors.As(err, &e) && e.Code != 0 {
			code = e.Code
		}
		body["error"] = err.Error()
		body["kind"] = errors.KindOf(err)
	}
	c.JSON(code, body)
}

// bindUpload stores the uploaded files and returns the descriptor built from
// the form, plus a map from stored path to original file name.
func (s *Service) bindUpload(c *gin.Context) (map[string]any, map[string]string, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, nil, errors.InvalidTask("invalid multipart form: %v", err)
	}
	files := form.File["files"]
	if len(files) == 0 {
		return nil, nil, nil, errors.InvalidTask("multipart request requires at least one file in \"files\"")
	}

	dir, err := os.MkdirTemp(s.conf.UploadDir, "scribe-upload-")
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	desc := make(map[string]any, len(form.Value))
	for k, v := range form.Value {
		if len(v) > 0 {
			desc[k] = v[0]
		}
	}
	// uploads are removed by the service, never by the worker
	delete(desc, "remove_original")
	delete(desc, "shred")

	names := make(map[string]string, len(files))
	sources := make([]string, 0, len(files))
	for i, fh := range files {
		dst := filepath.Join(dir, fmt.Sprintf("%03d%s", i, filepath.Ext(fh.Filename)))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			return nil, nil, cleanup, err
		}
		names[dst] = filepath.Base(fh.Filename)
		sources = append(sources, dst)
	}
	desc["sources"] = sources
	return desc, names, cleanup, nil
}

type annotateRequest struct {
	Transcript json.RawMessage   `json:"transcript" binding:"required"`
	Names      string            `json:"names"`
	Mapping    map[string]string `json:"mapping"`
	Format     string            `json:"format"`
}

// POST /api/v1/annotate
func (s *Service) handleAnnotate(c *gin.Context) {
	var req annotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.Err(c, errors.InvalidArg(err.Error()))
		return
	}

	t, err := transcript.FromJSON(req.Transcript)
	if err != nil {
		errors.Err(c, errors.InvalidArg(err.Error()))
		return
	}
	if err := t.Annotate(transcript.ParseNames(req.Names), req.Mapping); err != nil {
		errors.Err(c, err)
		return
	}

	if req.Format == "" {
		req.Format = "txt"
	}
	out, err := t.Render(req.Format)
	if err != nil {
		errors.Err(c, err)
		return
	}
	data, err := t.JSON(true)
	if err != nil {
		errors.Err(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"output":     string(out),
		"annotation": t.Annotation(),
		"json":       json.RawMessage(data),
	})
}
