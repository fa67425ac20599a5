// Package nlagent orchestrates the natural-language-to-SQL pipeline: schema
// introspection, optional issue context, SQL generation, guarding, execution,
// and result explanation.
package nlagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nonsonwune/sqlagent/llm"
	"github.com/nonsonwune/sqlagent/nlagent/prompts"
	"github.com/nonsonwune/sqlagent/sqlguard"
	"github.com/nonsonwune/sqlagent/store"
)

const (
	pipelineTimeout = 45 * time.Second
	// Rows passed to the model when explaining results.
	explainSampleSize = 5
)

// Querier is the database surface the engine needs.
type Querier interface {
	Schema(ctx context.Context) (*store.Schema, error)
	Execute(ctx context.Context, sql string) ([]map[string]any, error)
}

// ContextSource resolves an issue key into query context.
type ContextSource interface {
	ExtractContext(ctx context.Context, issueKey string) (string, error)
}

// Request is a natural language question with optional enrichment.
type Request struct {
	Question     string `json:"query"`
	IssueKey     string `json:"jira_issue_key,omitempty"`
	ExtraContext string `json:"additional_context,omitempty"`
}

// Response is the full outcome of an executed question.
type Response struct {
	SQL             string           `json:"sql"`
	Results         []map[string]any `json:"results"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
	Explanation     string           `json:"explanation"`
	IssueContext    string           `json:"issue_context,omitempty"`
}

// Explanation is the outcome of an explain-only request.
type Explanation struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// Engine runs the pipeline.
type Engine struct {
	db       Querier
	provider llm.Provider
	issues   ContextSource
	prompts  *prompts.Builder
	log      *zap.Logger
}

// New builds an Engine. issues may be nil when no tracker is configured.
func New(db Querier, provider llm.Provider, issues ContextSource, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:       db,
		provider: provider,
		issues:   issues,
		prompts:  prompts.NewBuilder(),
		log:      log,
	}
}

// Query converts the question to SQL, validates it, executes it, and explains
// the results.
func (e *Engine) Query(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, pipelineTimeout)
	defer cancel()

	sqlText, issueContext, err := e.prepare(ctx, req)
	if err != nil {
		return nil, e.friendlyError(ctx, req.Question, err)
	}

	start := time.Now()
	results, err := e.db.Execute(ctx, sqlText)
	if err != nil {
		return nil, e.friendlyError(ctx, req.Question, fmt.Errorf("execute query: %w", err))
	}
	elapsed := time.Since(start)

	explanation := e.explainResults(ctx, req.Question, sqlText, results, issueContext)

	e.log.Info("query executed",
		zap.String("question", req.Question),
		zap.Int("rows", len(results)),
		zap.Duration("elapsed", elapsed))

	return &Response{
		SQL:             sqlText,
		Results:         results,
		RowCount:        len(results),
		ExecutionTimeMS: float64(elapsed.Microseconds()) / 1000.0,
		Explanation:     explanation,
		IssueContext:    issueContext,
	}, nil
}

// Explain generates and validates SQL for the question without executing it.
func (e *Engine) Explain(ctx context.Context, req Request) (*Explanation, error) {
	ctx, cancel := context.WithTimeout(ctx, pipelineTimeout)
	defer cancel()

	sqlText, issueContext, err := e.prepare(ctx, req)
	if err != nil {
		return nil, e.friendlyError(ctx, req.Question, err)
	}

	prompt := e.prompts.ExplainSQL(req.Question, sqlText, issueContext)
	explanation, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		e.log.Warn("sql explanation failed", zap.Error(err))
		explanation = "Could not generate explanation."
	}

	return &Explanation{SQL: sqlText, Explanation: explanation}, nil
}

// prepare runs the shared front half of both pipelines: schema, issue
// context, generation, guard, and the LLM cross-check.
func (e *Engine) prepare(ctx context.Context, req Request) (sqlText, issueContext string, err error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", "", fmt.Errorf("empty question")
	}

	schema, err := e.db.Schema(ctx)
	if err != nil {
		return "", "", fmt.Errorf("introspect schema: %w", err)
	}

	issueContext = e.issueContext(ctx, req.IssueKey)

	raw, err := e.provider.GenerateSQL(ctx, llm.SQLRequest{
		Question:     req.Question,
		SchemaText:   schema.Describe(),
		SchemaJSON:   schema.JSON(),
		IssueContext: issueContext,
		ExtraContext: req.ExtraContext,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate SQL: %w", err)
	}

	sqlText, err = sqlguard.Check(raw)
	if err != nil {
		return "", "", fmt.Errorf("rejected generated SQL: %w", err)
	}

	if valid, reason := e.validate(ctx, req.Question, sqlText); !valid {
		return "", "", fmt.Errorf("invalid query: %s", reason)
	}
	return sqlText, issueContext, nil
}

// issueContext is best effort: tracker failures never fail the pipeline.
func (e *Engine) issueContext(ctx context.Context, issueKey string) string {
	if issueKey == "" || e.issues == nil {
		return ""
	}
	out, err := e.issues.ExtractContext(ctx, issueKey)
	if err != nil {
		e.log.Warn("issue context unavailable",
			zap.String("issue", issueKey),
			zap.Error(err))
		return ""
	}
	return out
}

// validate cross-checks the generated SQL against the question through the
// model. An unreachable validator passes the query through rather than
// blocking it.
func (e *Engine) validate(ctx context.Context, question, sqlText string) (bool, string) {
	out, err := e.provider.Complete(ctx, e.prompts.Validation(question, sqlText))
	if err != nil {
		e.log.Warn("validation unavailable, accepting query", zap.Error(err))
		return true, ""
	}

	result := strings.TrimSpace(out)
	if strings.HasPrefix(result, "VALID") {
		return true, ""
	}
	if strings.HasPrefix(result, "INVALID: ") {
		return false, strings.TrimPrefix(result, "INVALID: ")
	}
	return false, result
}

func (e *Engine) explainResults(ctx context.Context, question, sqlText string, results []map[string]any, issueContext string) string {
	sample := results
	if len(sample) > explainSampleSize {
		sample = sample[:explainSampleSize]
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		sampleJSON = []byte("[]")
	}

	explanation, err := e.provider.ExplainResults(ctx, llm.ResultsRequest{
		Question:     question,
		SQL:          sqlText,
		ResultsJSON:  string(sampleJSON),
		RowCount:     len(results),
		IssueContext: issueContext,
	})
	if err != nil {
		e.log.Warn("result explanation failed", zap.Error(err))
		return fmt.Sprintf("The query returned %d rows.", len(results))
	}
	return explanation
}

// friendlyError asks the model for a user-facing message; when that also
// fails, the original error is returned.
func (e *Engine) friendlyError(ctx context.Context, question string, cause error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("the query timed out, try a more specific question: %w", cause)
	}
	msg, err := e.provider.Complete(ctx, e.prompts.Error(question, cause))
	if err != nil || strings.TrimSpace(msg) == "" {
		return cause
	}
	return fmt.Errorf("%s: %w", strings.TrimSpace(msg), cause)
}
