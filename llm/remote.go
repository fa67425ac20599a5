package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	remoteTimeout    = 30 * time.Second
	remoteMaxRetries = 2
)

// Remote is the remote-agent mode: SQL generation and explanation are
// delegated to an external agent service over HTTP.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote builds the remote provider for the given agent base URL.
func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: remoteTimeout},
	}
}

// Name implements Provider.
func (r *Remote) Name() string {
	return "remote-agent"
}

type generateRequest struct {
	Query             string          `json:"query"`
	SchemaInfo        json.RawMessage `json:"schema_info"`
	JiraContext       string          `json:"jira_context,omitempty"`
	AdditionalContext string          `json:"additional_context,omitempty"`
}

type generateResponse struct {
	SQLQuery    string `json:"sql_query"`
	Explanation string `json:"explanation"`
}

type explainRequest struct {
	Query       string          `json:"query"`
	SQL         string          `json:"sql"`
	Results     json.RawMessage `json:"results"`
	JiraContext string          `json:"jira_context,omitempty"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

// GenerateSQL implements Provider.
func (r *Remote) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	schema := json.RawMessage(req.SchemaJSON)
	if len(schema) == 0 {
		schema = json.RawMessage("{}")
	}
	payload := generateRequest{
		Query:             req.Question,
		SchemaInfo:        schema,
		JiraContext:       req.IssueContext,
		AdditionalContext: req.ExtraContext,
	}

	var out generateResponse
	if err := r.post(ctx, "/generate-sql", payload, &out); err != nil {
		return "", err
	}
	if out.SQLQuery == "" {
		return "", fmt.Errorf("agent returned no SQL")
	}
	return out.SQLQuery, nil
}

// ExplainResults implements Provider.
func (r *Remote) ExplainResults(ctx context.Context, req ResultsRequest) (string, error) {
	results := json.RawMessage(req.ResultsJSON)
	if len(results) == 0 {
		results = json.RawMessage("[]")
	}
	payload := explainRequest{
		Query:       req.Question,
		SQL:         req.SQL,
		Results:     results,
		JiraContext: req.IssueContext,
	}

	var out explainResponse
	if err := r.post(ctx, "/explain-results", payload, &out); err != nil {
		return "", err
	}
	if out.Explanation == "" {
		return "", fmt.Errorf("agent returned no explanation")
	}
	return out.Explanation, nil
}

// Complete implements Provider. The agent service exposes no free-form
// completion endpoint, so callers fall through to the next provider.
func (r *Remote) Complete(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%w: remote agent has no completion endpoint", ErrUnavailable)
}

func (r *Remote) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode agent request: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("agent returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("agent returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), remoteMaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("agent call %s failed: %w", path, err)
	}
	return nil
}
