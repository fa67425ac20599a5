package jira

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonsonwune/sqlagent/llm"
)

const issueJSON = `{
	"key": "SALES-123",
	"fields": {
		"summary": "Analyze high-value customers",
		"description": "Report of customers with purchases over $1000 in the last 3 months.",
		"created": "2023-04-01T10:00:00.000Z",
		"updated": "2023-04-02T14:30:00.000Z",
		"status": {"name": "Open"},
		"issuetype": {"name": "Task"},
		"priority": {"name": "High"}
	}
}`

func TestGetIssue(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/rest/api/3/issue/SALES-123", r.URL.Path)
		w.Write([]byte(issueJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "token")
	issue, err := c.GetIssue(context.Background(), "SALES-123")
	require.NoError(t, err)

	assert.Equal(t, "SALES-123", issue.Key)
	assert.Equal(t, "Analyze high-value customers", issue.Summary)
	assert.Equal(t, "Open", issue.Status)
	assert.Equal(t, "Task", issue.IssueType)
	assert.Equal(t, "High", issue.Priority)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("user@example.com:token"))
	assert.Equal(t, wantAuth, gotAuth)
}

func TestSearchIssuesBuildsJQL(t *testing.T) {
	var gotJQL, gotMax string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotJQL = r.URL.Query().Get("jql")
		gotMax = r.URL.Query().Get("maxResults")
		w.Write([]byte(`{"issues":[` + issueJSON + `]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "token")
	issues, err := c.SearchIssues(context.Background(), "SALES", "Open", 5)
	require.NoError(t, err)

	require.Len(t, issues, 1)
	assert.Equal(t, "SALES-123", issues[0].Key)
	assert.Equal(t, "project = SALES AND status = 'Open'", gotJQL)
	assert.Equal(t, "5", gotMax)
}

func TestGetIssueNotFound(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "token")
	_, err := c.GetIssue(context.Background(), "NOPE-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	// Client errors are not retried.
	assert.Equal(t, 1, calls)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"issues":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "token")
	issues, err := c.SearchIssues(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 2, calls)
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", "", "")
	_, err := c.GetIssue(context.Background(), "X-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtractContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issueJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user@example.com", "token")
	e := NewContextExtractor(c, llm.NewMock())

	out, err := e.ExtractContext(context.Background(), "SALES-123")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
