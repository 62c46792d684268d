package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapport-agent/src/analyze"
	"rapport-agent/src/broker"
	"rapport-agent/src/contracts"
	"rapport-agent/src/history"
	"rapport-agent/src/jobs"
	"rapport-agent/src/pipeline"
	"rapport-agent/src/store"
)

const conversation = `10:00 Alice: hey! how was your day?
10:01 Bob: pretty good, thanks! yours?
10:02 Alice: great, I loved the movie
10:30 Bob: sure
11:06 Alice: dinner tonight?
11:20 Bob: yes please`

type fixture struct {
	srv     *Server
	history *history.Memory
	manager *jobs.Manager
}

func newFixture(t *testing.T) *fixture {
	hist := history.NewMemory(10)
	orch := pipeline.New(pipeline.WithHistory(hist))
	b := broker.NewInMemoryBroker()
	t.Cleanup(func() { b.Close() })
	m := jobs.NewManager(store.NewMemoryStore(), b, orch)
	return &fixture{
		srv:     NewServer(orch, m, hist, nil),
		history: hist,
		manager: m,
	}
}

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// call invokes h and returns the result text.
func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)

	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text, res.IsError
	case *mcp.TextContent:
		return c.Text, res.IsError
	}
	t.Fatalf("unexpected content type %T", res.Content[0])
	return "", false
}

func TestAnalyzeConversation(t *testing.T) {
	f := newFixture(t)
	text, isErr := call(t, f.srv.handleAnalyze, map[string]any{
		"content":      conversation,
		"party_a_name": "Alice",
		"party_b_name": "Bob",
	})
	require.False(t, isErr, text)

	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(text), &m))
	assert.NotEmpty(t, m.ReportID)
	assert.Equal(t, 6, m.Messages)
	assert.Equal(t, "Alice", m.PartyA)
	assert.Equal(t, "Bob", m.PartyB)
	require.Len(t, m.Metrics, len(analyze.Default()))
	for i, c := range analyze.Default() {
		assert.Equal(t, c.ID(), m.Metrics[i].ID)
	}

	text, isErr = call(t, f.srv.handleMetricDetails, map[string]any{
		"report_id": m.ReportID,
		"metric":    string(contracts.ClassifierSentiment),
	})
	require.False(t, isErr, text)
	var d MetricDetails
	require.NoError(t, json.Unmarshal([]byte(text), &d))
	assert.Equal(t, contracts.ClassifierSentiment, d.ID)
	assert.NotEmpty(t, d.Fields)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		args     map[string]any
		expected string
	}{
		{"empty", map[string]any{"content": "  "}, "No messages found"},
		{"format", map[string]any{"content": conversation, "format": "fax"}, "unknown format"},
		{"base64", map[string]any{"raw_base64": "%%%"}, "not valid base64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, f.srv.handleAnalyze, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.expected)
		})
	}
}

func TestAnalyzeScreenshotWithoutExtractor(t *testing.T) {
	f := newFixture(t)
	text, isErr := call(t, f.srv.handleAnalyze, map[string]any{
		"raw_base64":  base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n fake image")),
		"source_name": "chat.png",
		"format":      string(contracts.FormatScreenshot),
	})
	assert.True(t, isErr)
	assert.NotContains(t, text, "Analysis failed")
}

func TestSubmitAndPollStatus(t *testing.T) {
	f := newFixture(t)
	text, isErr := call(t, f.srv.handleSubmit, map[string]any{"content": conversation})
	require.False(t, isErr, text)
	var submitted map[string]string
	require.NoError(t, json.Unmarshal([]byte(text), &submitted))
	id := submitted["job_id"]
	require.NotEmpty(t, id)

	text, _ = call(t, f.srv.handleStatus, map[string]any{"job_id": id})
	var state JobState
	require.NoError(t, json.Unmarshal([]byte(text), &state))
	assert.Equal(t, contracts.JobPending, state.Status)
	assert.Nil(t, state.Report)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.manager.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		text, _ := call(t, f.srv.handleStatus, map[string]any{"job_id": id})
		var state JobState
		_ = json.Unmarshal([]byte(text), &state)
		return state.Status == contracts.JobCompleted && state.Report != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStatusErrors(t *testing.T) {
	f := newFixture(t)

	text, isErr := call(t, f.srv.handleStatus, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, text, "job_id parameter is required")

	text, isErr = call(t, f.srv.handleStatus, map[string]any{"job_id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "job not found")
}

func TestMetricDetailsErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.history.Append(context.Background(), &contracts.Report{
		ID:     "rep-1",
		Absent: map[contracts.ClassifierID]string{contracts.ClassifierToxicity: "panic: boom"},
	}))

	tests := []struct {
		name     string
		args     map[string]any
		expected string
	}{
		{"missing report id", map[string]any{"metric": "sentiment"}, "report_id parameter is required"},
		{"missing metric", map[string]any{"report_id": "rep-1"}, "metric parameter is required"},
		{"unknown report", map[string]any{"report_id": "rep-2", "metric": "sentiment"}, "report not found"},
		{"absent metric", map[string]any{"report_id": "rep-1", "metric": "toxicity"}, "panic: boom"},
		{"unknown metric", map[string]any{"report_id": "rep-1", "metric": "sentiment"}, "metric not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, f.srv.handleMetricDetails, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.expected)
		})
	}
}
