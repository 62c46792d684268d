package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"rapport-agent/src/contracts"
	"rapport-agent/src/extract"
	"rapport-agent/src/history"
	"rapport-agent/src/logger"
	"rapport-agent/src/store"
)

// Analyzer runs one analysis synchronously.
type Analyzer interface {
	Run(ctx context.Context, in contracts.AnalysisInput) (*contracts.Report, error)
}

// JobService queues analyses and reports their status.
type JobService interface {
	Submit(ctx context.Context, in contracts.AnalysisInput) (string, error)
	Status(ctx context.Context, jobID string) (*contracts.AnalysisJob, error)
}

// Server is the MCP server for rapport.
type Server struct {
	mcpServer *server.MCPServer
	analyzer  Analyzer
	jobs      JobService
	history   history.Store
	logger    logger.Logger
}

// NewServer creates a new MCP server.
func NewServer(analyzer Analyzer, jobs JobService, hist history.Store, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	s := server.NewMCPServer(
		"rapport",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	srv := &Server{
		mcpServer: s,
		analyzer:  analyzer,
		jobs:      jobs,
		history:   hist,
		logger:    log,
	}
	srv.registerTools()

	return srv
}

func inputOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("content",
			mcp.Description("Conversation text, one message per line (\"Name: text\", optionally prefixed with a date or time)"),
		),
		mcp.WithString("raw_base64",
			mcp.Description("Base64 screenshot or PDF, used instead of content when text must be extracted"),
		),
		mcp.WithString("source_name",
			mcp.Description("File name of the upload, used to detect its type"),
		),
		mcp.WithString("format",
			mcp.Description("paste, file or screenshot (default: paste)"),
			mcp.Enum(string(contracts.FormatPaste), string(contracts.FormatFile), string(contracts.FormatScreenshot)),
		),
		mcp.WithString("party_a_name",
			mcp.Description("Display name for the first speaker"),
		),
		mcp.WithString("party_b_name",
			mcp.Description("Display name for the second speaker"),
		),
		mcp.WithString("analysis_goal",
			mcp.Description("What the user hopes to learn, echoed into the report"),
		),
	}
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	analyzeOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Analyze a two-person conversation and return a health manifest: overall score, level and trend, a one-line summary per metric, ranked insights and recommendations. Use get_metric_details to see every value of a metric."),
		mcp.WithNumber("insight_limit",
			mcp.Description("Max high-importance insights (default: 10); lower importances scale down"),
		),
	}, inputOptions()...)
	analyzeTool := mcp.NewTool("analyze_conversation", analyzeOpts...)

	submitOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Queue a conversation for background analysis and return its job_id. Poll get_analysis_status for progress and the result."),
	}, inputOptions()...)
	submitTool := mcp.NewTool("submit_analysis", submitOpts...)

	statusTool := mcp.NewTool("get_analysis_status",
		mcp.WithDescription("Get the status and progress of a queued analysis. Completed jobs include the report manifest."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID from submit_analysis"),
		),
	)

	detailsTool := mcp.NewTool("get_metric_details",
		mcp.WithDescription("Get every field of one metric from a stored report. Use after analyze_conversation or get_analysis_status."),
		mcp.WithString("report_id",
			mcp.Required(),
			mcp.Description("Report ID from the manifest"),
		),
		mcp.WithString("metric",
			mcp.Required(),
			mcp.Description("Metric ID from the manifest, e.g. sentiment"),
		),
	)

	s.mcpServer.AddTool(analyzeTool, s.handleAnalyze)
	s.mcpServer.AddTool(submitTool, s.handleSubmit)
	s.mcpServer.AddTool(statusTool, s.handleStatus)
	s.mcpServer.AddTool(detailsTool, s.handleMetricDetails)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// readInput builds an analysis input from tool arguments.
func readInput(request mcp.CallToolRequest) (contracts.AnalysisInput, error) {
	in := contracts.AnalysisInput{
		Content:    request.GetString("content", ""),
		SourceName: request.GetString("source_name", ""),
		Format:     contracts.Format(request.GetString("format", string(contracts.FormatPaste))),
		Personalization: contracts.Personalization{
			PartyAName:   request.GetString("party_a_name", ""),
			PartyBName:   request.GetString("party_b_name", ""),
			AnalysisGoal: request.GetString("analysis_goal", ""),
		},
	}
	if !in.Format.Valid() {
		return in, fmt.Errorf("unknown format %q (expected paste, file or screenshot)", in.Format)
	}
	if raw := request.GetString("raw_base64", ""); raw != "" {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return in, fmt.Errorf("raw_base64 is not valid base64: %w", err)
		}
		in.Raw = data
	}
	return in, nil
}

// userFacing renders err for the caller. Input and extraction errors keep
// their message and hint; anything else is reported generically.
func (s *Server) userFacing(action string, err error) *mcp.CallToolResult {
	var userErr *extract.UserError
	if errors.As(extract.WrapError(err), &userErr) {
		msg := userErr.Message
		if userErr.Hint != "" {
			msg += "\n\nHint: " + userErr.Hint
		}
		return mcp.NewToolResultError(msg)
	}
	if errors.Is(err, context.Canceled) {
		return mcp.NewToolResultError("Analysis cancelled")
	}
	s.logger.Error("[MCP] %s failed: %v", action, err)
	return mcp.NewToolResultError(action + " failed")
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// handleAnalyze runs the analysis synchronously and returns a manifest.
func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := readInput(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := s.analyzer.Run(ctx, in)
	if err != nil {
		return s.userFacing("Analysis", err), nil
	}
	return jsonResult(ToManifest(report, request.GetInt("insight_limit", DefaultHighLimit))), nil
}

// handleSubmit queues the analysis and returns the job ID.
func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := readInput(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	jobID, err := s.jobs.Submit(ctx, in)
	if err != nil {
		return s.userFacing("Submit", err), nil
	}
	return jsonResult(map[string]string{"job_id": jobID}), nil
}

// handleStatus reports job progress, with the manifest once completed.
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, err := s.jobs.Status(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("job not found: %s", jobID)), nil
	}
	if err != nil {
		return s.userFacing("Status", err), nil
	}

	state := JobState{
		JobID:           job.JobID,
		Status:          job.Status,
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		Error:           job.ErrorMessage,
	}
	if job.Result != nil {
		m := ToManifest(job.Result, DefaultHighLimit)
		state.Report = &m
	}
	return jsonResult(state), nil
}

// handleMetricDetails returns the full fields of one metric.
func (s *Server) handleMetricDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reportID := request.GetString("report_id", "")
	if reportID == "" {
		return mcp.NewToolResultError("report_id parameter is required"), nil
	}
	metric := contracts.ClassifierID(request.GetString("metric", ""))
	if metric == "" {
		return mcp.NewToolResultError("metric parameter is required"), nil
	}

	report, err := s.history.Get(ctx, reportID)
	if errors.Is(err, history.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("report not found: %s", reportID)), nil
	}
	if err != nil {
		return s.userFacing("Lookup", err), nil
	}

	if reason, ok := report.Absent[metric]; ok {
		return mcp.NewToolResultError(fmt.Sprintf("metric %s was not computed: %s", metric, reason)), nil
	}
	details, ok := Details(report, metric)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("metric not found: report_id=%s, metric=%s", reportID, metric)), nil
	}
	return jsonResult(details), nil
}
