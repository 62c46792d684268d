// Package api provides the HTTP API: synchronous analysis, asynchronous jobs,
// report history and exports.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"rapport-agent/src/contracts"
	"rapport-agent/src/export"
	"rapport-agent/src/extract"
	"rapport-agent/src/history"
	"rapport-agent/src/logger"
	"rapport-agent/src/store"
)

// Analyzer runs one analysis synchronously. *pipeline.Orchestrator satisfies it.
type Analyzer interface {
	Run(ctx context.Context, in contracts.AnalysisInput) (*contracts.Report, error)
}

// JobService is the asynchronous side. *jobs.Manager satisfies it.
type JobService interface {
	Submit(ctx context.Context, in contracts.AnalysisInput) (string, error)
	Status(ctx context.Context, jobID string) (*contracts.AnalysisJob, error)
	Acknowledge(ctx context.Context, jobID string) error
}

// Handler handles HTTP requests.
type Handler struct {
	analyzer Analyzer
	jobs     JobService
	history  history.Store
	logger   logger.Logger
	// maxBytes caps conversation uploads; 0 means no cap.
	maxBytes int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxBytes caps request bodies to what an input of n bytes can need.
// Larger bodies are rejected before they are read.
func WithMaxBytes(n int64) HandlerOption {
	return func(h *Handler) { h.maxBytes = n }
}

// NewHandler creates a new handler.
func NewHandler(analyzer Analyzer, jobs JobService, hist history.Store, log logger.Logger, opts ...HandlerOption) *Handler {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	h := &Handler{
		analyzer: analyzer,
		jobs:     jobs,
		history:  hist,
		logger:   log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// bodyEnvelope is room for JSON or multipart framing and the other fields.
const bodyEnvelope = 64 << 10

// bodyLimit is the largest request body accepted for an input cap of n
// bytes. Raw uploads travel base64-encoded in JSON, so the cap is doubled.
func bodyLimit(n int64) int64 {
	return 2*n + bodyEnvelope
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/analyze", h.Analyze)

	e.POST("/v1/jobs", h.SubmitJob)
	e.GET("/v1/jobs/:job_id", h.GetJob)
	e.DELETE("/v1/jobs/:job_id", h.AcknowledgeJob)

	e.GET("/v1/history", h.ListHistory)
	e.GET("/v1/history/:report_id", h.GetReport)
	e.GET("/v1/history/:report_id/export", h.ExportReport)

	e.GET("/health", h.Health)
}

// AnalyzeRequest is the JSON body of /v1/analyze and /v1/jobs.
type AnalyzeRequest struct {
	Content string `json:"content"`
	// Raw is base64 in JSON: a screenshot or PDF for the extraction service.
	Raw          []byte           `json:"raw,omitempty"`
	SourceName   string           `json:"source_name,omitempty"`
	Format       contracts.Format `json:"format"`
	PartyAName   string           `json:"party_a_name,omitempty"`
	PartyBName   string           `json:"party_b_name,omitempty"`
	AnalysisGoal string           `json:"analysis_goal,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (r AnalyzeRequest) input() contracts.AnalysisInput {
	return contracts.AnalysisInput{
		Content:    r.Content,
		Raw:        r.Raw,
		SourceName: r.SourceName,
		Format:     r.Format,
		Personalization: contracts.Personalization{
			PartyAName:   strings.TrimSpace(r.PartyAName),
			PartyBName:   strings.TrimSpace(r.PartyBName),
			AnalysisGoal: strings.TrimSpace(r.AnalysisGoal),
		},
	}
}

// bindInput reads either a JSON body or a multipart upload with a "file" part.
// Uploads are read up to one byte past the cap so the size check still fires.
func (h *Handler) bindInput(c echo.Context) (contracts.AnalysisInput, error) {
	var req AnalyzeRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return contracts.AnalysisInput{}, errors.New("multipart upload needs a \"file\" part")
		}
		f, err := fh.Open()
		if err != nil {
			return contracts.AnalysisInput{}, fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		var r io.Reader = f
		if h.maxBytes > 0 {
			r = io.LimitReader(f, h.maxBytes+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return contracts.AnalysisInput{}, fmt.Errorf("failed to read upload: %w", err)
		}
		req = AnalyzeRequest{
			Raw:          data,
			SourceName:   fh.Filename,
			Format:       contracts.Format(c.FormValue("format")),
			PartyAName:   c.FormValue("party_a_name"),
			PartyBName:   c.FormValue("party_b_name"),
			AnalysisGoal: c.FormValue("analysis_goal"),
		}
		if req.Format == "" {
			req.Format = contracts.FormatFile
		}
	} else if err := c.Bind(&req); err != nil {
		return contracts.AnalysisInput{}, errors.New("invalid request body")
	}

	if req.Format == "" {
		req.Format = contracts.FormatPaste
	}
	if !req.Format.Valid() {
		return contracts.AnalysisInput{}, fmt.Errorf("unknown format %q (expected paste, file or screenshot)", req.Format)
	}
	return req.input(), nil
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// Analyze runs an analysis and returns the report.
// POST /v1/analyze
func (h *Handler) Analyze(c echo.Context) error {
	in, err := h.bindInput(c)
	if err != nil {
		return badRequest(c, err)
	}

	report, err := h.analyzer.Run(c.Request().Context(), in)
	if err != nil {
		var userErr *extract.UserError
		if errors.As(extract.WrapError(err), &userErr) {
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: userErr.Message, Hint: userErr.Hint})
		}
		if errors.Is(err, context.Canceled) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Analysis cancelled"})
		}
		h.logger.Error("[API] Analysis failed: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Analysis failed"})
	}
	return c.JSON(http.StatusOK, report)
}

// SubmitJob queues an analysis.
// POST /v1/jobs
func (h *Handler) SubmitJob(c echo.Context) error {
	in, err := h.bindInput(c)
	if err != nil {
		return badRequest(c, err)
	}
	jobID, err := h.jobs.Submit(c.Request().Context(), in)
	if err != nil {
		h.logger.Error("[API] Submit failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "failed to queue analysis"})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"job_id": jobID})
}

// GetJob returns a job snapshot.
// GET /v1/jobs/:job_id
func (h *Handler) GetJob(c echo.Context) error {
	job, err := h.jobs.Status(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// AcknowledgeJob deletes a finished job.
// DELETE /v1/jobs/:job_id
func (h *Handler) AcknowledgeJob(c echo.Context) error {
	if err := h.jobs.Acknowledge(c.Request().Context(), c.Param("job_id")); err != nil {
		return h.storeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, store.ErrJobActive):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "job has not finished"})
	}
	h.logger.Error("[API] Store error: %v", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// ListHistory lists recent reports, newest first.
// GET /v1/history
func (h *Handler) ListHistory(c echo.Context) error {
	list, err := h.history.List(c.Request().Context())
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reports": list})
}

// GetReport returns one stored report.
// GET /v1/history/:report_id
func (h *Handler) GetReport(c echo.Context) error {
	report, err := h.history.Get(c.Request().Context(), c.Param("report_id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ExportReport renders a stored report.
// GET /v1/history/:report_id/export?format=json|csv|text
func (h *Handler) ExportReport(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return badRequest(c, err)
	}
	report, err := h.history.Get(c.Request().Context(), c.Param("report_id"))
	if err != nil {
		return h.storeError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, format.ContentType())
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "rapport-"+report.ID+"."+format.Extension()))
	res.WriteHeader(http.StatusOK)
	return export.Write(res, report, format)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
