// Package llm provides the language-model backends for the SQL agent: a
// direct Gemini client, a remote agent-service client, a deterministic mock,
// and a fallback chain that degrades across them.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable marks a provider that cannot serve the request at all, as
// opposed to a transient failure.
var ErrUnavailable = errors.New("provider unavailable")

// SQLRequest carries everything needed to turn a question into SQL.
type SQLRequest struct {
	Question     string
	SchemaText   string // prompt-ready schema description (direct mode)
	SchemaJSON   string // structured schema (remote mode payload)
	IssueContext string
	ExtraContext string
}

// ResultsRequest carries an executed query and a sample of its results.
type ResultsRequest struct {
	Question     string
	SQL          string
	ResultsJSON  string
	RowCount     int
	IssueContext string
}

// Provider is a language-model backend.
type Provider interface {
	Name() string
	// GenerateSQL returns the model's raw SQL response; callers sanitize it.
	GenerateSQL(ctx context.Context, req SQLRequest) (string, error)
	// ExplainResults narrates executed query results in plain language.
	ExplainResults(ctx context.Context, req ResultsRequest) (string, error)
	// Complete answers a free-form prompt (validation, context extraction,
	// error messages).
	Complete(ctx context.Context, prompt string) (string, error)
}
