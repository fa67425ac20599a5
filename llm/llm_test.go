package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyManagerRotation(t *testing.T) {
	t.Setenv("GEMINI_API_KEY_1", "k1")
	t.Setenv("GEMINI_API_KEY_2", "k2")

	km := NewKeyManager("primary")
	assert.False(t, km.Empty())
	assert.Equal(t, "primary", km.Current())
	assert.Equal(t, "k1", km.Next())
	assert.Equal(t, "k2", km.Next())
	assert.Equal(t, "primary", km.Next())
}

func TestKeyManagerEmpty(t *testing.T) {
	km := NewKeyManager("")
	assert.True(t, km.Empty())
	assert.Equal(t, "", km.Current())
	assert.Equal(t, "", km.Next())
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, isRateLimitError(errors.New("429: Rate Limit exceeded")))
	assert.True(t, isRateLimitError(errors.New("quota exceeded for project")))
	assert.False(t, isRateLimitError(errors.New("connection refused")))
}

func TestExtractText(t *testing.T) {
	out, err := extractText(genai.Text("  SELECT 1  "))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)

	_, err = extractText(genai.Text("   "))
	assert.Error(t, err)

	_, err = extractText(genai.Blob{})
	assert.Error(t, err)
}

func TestRemoteGenerateSQL(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate-sql", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generateResponse{SQLQuery: "SELECT 1", Explanation: "trivial"})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL + "/")
	sql, err := r.GenerateSQL(context.Background(), SQLRequest{
		Question:     "anything",
		SchemaJSON:   `{"tables":[]}`,
		IssueContext: "from SALES-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Equal(t, "anything", got.Query)
	assert.Equal(t, "from SALES-1", got.JiraContext)
	assert.JSONEq(t, `{"tables":[]}`, string(got.SchemaInfo))
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(explainResponse{Explanation: "all good"})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL)
	out, err := r.ExplainResults(context.Background(), ResultsRequest{Question: "q", SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, "all good", out)
	assert.Equal(t, 2, calls)
}

func TestRemoteDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad payload"))
	}))
	defer srv.Close()

	r := NewRemote(srv.URL)
	_, err := r.GenerateSQL(context.Background(), SQLRequest{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 1, calls)
}

func TestRemoteCompleteUnavailable(t *testing.T) {
	r := NewRemote("http://localhost:1")
	_, err := r.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMockGenerateSQL(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	sql, err := m.GenerateSQL(ctx, SQLRequest{Question: "show me the top customers by spend"})
	require.NoError(t, err)
	assert.Contains(t, sql, "SUM(o.amount)")

	sql, err = m.GenerateSQL(ctx, SQLRequest{Question: "recent orders please"})
	require.NoError(t, err)
	assert.Contains(t, sql, "INTERVAL '30 days'")

	_, err = m.GenerateSQL(ctx, SQLRequest{Question: "weather in Lagos"})
	assert.Error(t, err)
}

func TestMockCompleteProtocols(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	out, err := m.Complete(ctx, "You are a SQL query validator. ...")
	require.NoError(t, err)
	assert.Equal(t, "VALID", out)

	out, err = m.Complete(ctx, "Extract relevant context for a database query from this issue: ...")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

type stubProvider struct {
	name string
	sql  string
	err  error
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	return s.sql, s.err
}
func (s *stubProvider) ExplainResults(ctx context.Context, req ResultsRequest) (string, error) {
	return s.sql, s.err
}
func (s *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return s.sql, s.err
}

func TestChainFallsBack(t *testing.T) {
	broken := &stubProvider{name: "broken", err: errors.New("boom")}
	working := &stubProvider{name: "working", sql: "SELECT 1"}
	chain := NewChain(nil, broken, working)

	out, err := chain.GenerateSQL(context.Background(), SQLRequest{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, "chain(broken,working)", chain.Name())
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(nil,
		&stubProvider{name: "a", err: errors.New("first")},
		&stubProvider{name: "b", err: errors.New("second")})

	_, err := chain.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
}

func TestChainEmpty(t *testing.T) {
	chain := NewChain(nil)
	_, err := chain.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)
}
