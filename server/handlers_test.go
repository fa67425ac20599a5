package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nonsonwune/sqlagent/jira"
	"github.com/nonsonwune/sqlagent/nlagent"
)

type fakeAgent struct {
	queryResp   *nlagent.Response
	queryErr    error
	explainResp *nlagent.Explanation
	lastReq     nlagent.Request
}

func (f *fakeAgent) Query(ctx context.Context, req nlagent.Request) (*nlagent.Response, error) {
	f.lastReq = req
	return f.queryResp, f.queryErr
}

func (f *fakeAgent) Explain(ctx context.Context, req nlagent.Request) (*nlagent.Explanation, error) {
	f.lastReq = req
	return f.explainResp, f.queryErr
}

type fakeIssues struct {
	issues []jira.Issue
	issue  *jira.Issue
	err    error
}

func (f *fakeIssues) SearchIssues(ctx context.Context, project, status string, limit int) ([]jira.Issue, error) {
	return f.issues, f.err
}

func (f *fakeIssues) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	return f.issue, f.err
}

type fakeContexts struct {
	out string
	err error
}

func (f *fakeContexts) ExtractContext(ctx context.Context, issueKey string) (string, error) {
	return f.out, f.err
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestMux(h *Handler) *http.ServeMux {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}
	mux := http.NewServeMux()
	h.Routes(mux)
	return mux
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var env response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestHealthReportsServices(t *testing.T) {
	mux := newTestMux(&Handler{
		DB:           &fakePinger{},
		Issues:       &fakeIssues{},
		ProviderName: "gemini",
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "connected", services["database"])
	assert.Equal(t, "configured", services["jira"])
	assert.Equal(t, "gemini", services["provider"])
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	mux := newTestMux(&Handler{DB: &fakePinger{err: errors.New("refused")}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	data := decodeEnvelope(t, rec).Data.(map[string]any)
	assert.Equal(t, "degraded", data["status"])
}

func TestSQLQuerySuccess(t *testing.T) {
	agent := &fakeAgent{queryResp: &nlagent.Response{
		SQL:      "SELECT name FROM customers",
		Results:  []map[string]any{{"name": "John Doe"}},
		RowCount: 1,
	}}
	mux := newTestMux(&Handler{Agent: agent})

	body := strings.NewReader(`{"query":"who are our customers","jira_issue_key":"SALES-1"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sql/query", body))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Query executed successfully", env.Message)
	assert.Equal(t, "who are our customers", agent.lastReq.Question)
	assert.Equal(t, "SALES-1", agent.lastReq.IssueKey)
}

func TestSQLQueryRejectsMissingQuestion(t *testing.T) {
	mux := newTestMux(&Handler{Agent: &fakeAgent{}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sql/query",
		strings.NewReader(`{"query":"  "}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestSQLQueryRejectsBadJSON(t *testing.T) {
	mux := newTestMux(&Handler{Agent: &fakeAgent{}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sql/query",
		strings.NewReader(`{`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSQLQueryMethodNotAllowed(t *testing.T) {
	mux := newTestMux(&Handler{Agent: &fakeAgent{}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sql/query", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSQLQueryPipelineError(t *testing.T) {
	mux := newTestMux(&Handler{Agent: &fakeAgent{queryErr: errors.New("generate SQL: quota exceeded")}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sql/query",
		strings.NewReader(`{"query":"anything"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "quota exceeded")
}

func TestSQLExplain(t *testing.T) {
	agent := &fakeAgent{explainResp: &nlagent.Explanation{
		SQL:         "SELECT 1",
		Explanation: "Selects the constant one.",
	}}
	mux := newTestMux(&Handler{Agent: agent})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sql/explain",
		strings.NewReader(`{"query":"a constant"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	assert.Equal(t, "SELECT 1", data["sql"])
	assert.Equal(t, "Selects the constant one.", data["explanation"])
}

func TestJiraIssuesList(t *testing.T) {
	mux := newTestMux(&Handler{Issues: &fakeIssues{issues: []jira.Issue{
		{Key: "SALES-1", Summary: "Revenue report"},
		{Key: "SALES-2", Summary: "Churn report"},
	}}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jira/issues?project=SALES&limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Retrieved 2 issues", env.Message)
}

func TestJiraIssuesUnconfigured(t *testing.T) {
	mux := newTestMux(&Handler{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jira/issues", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJiraIssueByKey(t *testing.T) {
	mux := newTestMux(&Handler{Issues: &fakeIssues{issue: &jira.Issue{
		Key:     "SALES-7",
		Summary: "Slow dashboard",
		Status:  "In Progress",
	}}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jira/issues/SALES-7", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec).Data.(map[string]any)
	assert.Equal(t, "SALES-7", data["key"])
}

func TestJiraIssueUpstreamError(t *testing.T) {
	mux := newTestMux(&Handler{Issues: &fakeIssues{err: errors.New("jira status 500")}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jira/issues/SALES-7", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestJiraContext(t *testing.T) {
	mux := newTestMux(&Handler{Contexts: &fakeContexts{out: "focus on Q3 revenue"}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jira/context",
		strings.NewReader(`{"issue_key":"SALES-3"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "focus on Q3 revenue", env.Data)
	assert.Equal(t, "Context extracted from issue SALES-3", env.Message)
}

func TestJiraContextRequiresKey(t *testing.T) {
	mux := newTestMux(&Handler{Contexts: &fakeContexts{}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jira/context",
		strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
