package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapport-agent/src/broker"
	"rapport-agent/src/contracts"
	"rapport-agent/src/extract"
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
	server  http.Handler
	history *history.Memory
	store   *store.MemoryStore
	manager *jobs.Manager
}

func newFixture(t *testing.T, opts ...pipeline.Option) *fixture {
	hist := history.NewMemory(10)
	orch := pipeline.New(append([]pipeline.Option{pipeline.WithHistory(hist)}, opts...)...)
	s := store.NewMemoryStore()
	b := broker.NewInMemoryBroker()
	t.Cleanup(func() { b.Close() })
	m := jobs.NewManager(s, b, orch)

	return &fixture{
		server:  NewServer(NewHandler(orch, m, hist, nil)),
		history: hist,
		store:   s,
		manager: m,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeReturnsReport(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/analyze", AnalyzeRequest{
		Content:    conversation,
		PartyAName: "Alice",
		PartyBName: "Bob",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report contracts.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 6, report.SourceStats.Messages)
	assert.GreaterOrEqual(t, report.HealthScore, 0.0)
	assert.LessOrEqual(t, report.HealthScore, 100.0)
	assert.Len(t, report.Metrics, 12)

	list, _ := f.history.List(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, report.ID, list[0].ID)
}

func TestAnalyzeInputErrors(t *testing.T) {
	f := newFixture(t, pipeline.WithMaxBytes(64))
	tests := []struct {
		name     string
		body     AnalyzeRequest
		code     int
		contains string
	}{
		{"empty", AnalyzeRequest{Content: "   "}, http.StatusUnprocessableEntity, "No messages found"},
		{"too large", AnalyzeRequest{Content: strings.Repeat("x", 65)}, http.StatusUnprocessableEntity, ""},
		{"bad format", AnalyzeRequest{Content: conversation, Format: "fax"}, http.StatusBadRequest, "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/analyze", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Contains(t, resp.Error, tt.contains)
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	const maxBytes = 64
	orch := pipeline.New(pipeline.WithMaxBytes(maxBytes))
	b := broker.NewInMemoryBroker()
	t.Cleanup(func() { b.Close() })
	m := jobs.NewManager(store.NewMemoryStore(), b, orch)
	f := &fixture{server: NewServer(NewHandler(orch, m, history.NewMemory(10), nil, WithMaxBytes(maxBytes)))}

	// Over the input cap but within the body limit: the size check answers.
	rec := f.do(t, http.MethodPost, "/v1/analyze", AnalyzeRequest{Content: strings.Repeat("x", maxBytes+1)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	// Far past the body limit: rejected before the body is read.
	huge := AnalyzeRequest{Content: strings.Repeat("x", int(bodyLimit(maxBytes))+1)}
	for _, path := range []string{"/v1/analyze", "/v1/jobs"} {
		rec = f.do(t, http.MethodPost, path, huge)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)
	}
}

func TestAnalyzeUploadNeedsExtraction(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "chat.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n fake image"))
	require.NoError(t, mw.WriteField("format", "screenshot"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, extract.UserMessage(extract.ErrNotAvailable), resp.Error)
}

func TestJobLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/jobs", AnalyzeRequest{Content: conversation})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var submitted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	id := submitted["job_id"]
	require.NotEmpty(t, id)

	rec = f.do(t, http.MethodGet, "/v1/jobs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job contracts.AnalysisJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, contracts.JobPending, job.Status)

	rec = f.do(t, http.MethodDelete, "/v1/jobs/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.manager.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/v1/jobs/"+id, nil)
		var job contracts.AnalysisJob
		_ = json.Unmarshal(rec.Body.Bytes(), &job)
		return job.Status == contracts.JobCompleted && job.Result != nil
	}, 5*time.Second, 10*time.Millisecond)

	rec = f.do(t, http.MethodDelete, "/v1/jobs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/v1/jobs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportFormats(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/analyze", AnalyzeRequest{Content: conversation})
	require.Equal(t, http.StatusOK, rec.Code)
	var report contracts.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))

	rec = f.do(t, http.MethodGet, "/v1/history/"+report.ID+"/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "field", "value"}, rows[0])

	rec = f.do(t, http.MethodGet, "/v1/history/"+report.ID+"/export?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Recommendations\n")

	rec = f.do(t, http.MethodGet, "/v1/history/"+report.ID+"/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/history/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/history/"+report.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListHistoryAndHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reports":[]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
