package jira

import (
	"context"
	"fmt"

	"github.com/nonsonwune/sqlagent/llm"
	"github.com/nonsonwune/sqlagent/nlagent/prompts"
)

// ContextExtractor pulls an issue and distills it into query context through
// the LLM provider chain.
type ContextExtractor struct {
	client   *Client
	provider llm.Provider
	prompts  *prompts.Builder
}

// NewContextExtractor wires the client and provider together.
func NewContextExtractor(client *Client, provider llm.Provider) *ContextExtractor {
	return &ContextExtractor{
		client:   client,
		provider: provider,
		prompts:  prompts.NewBuilder(),
	}
}

// ExtractContext fetches the issue and asks the model for the parts relevant
// to a database query.
func (e *ContextExtractor) ExtractContext(ctx context.Context, issueKey string) (string, error) {
	issue, err := e.client.GetIssue(ctx, issueKey)
	if err != nil {
		return "", fmt.Errorf("fetch issue %s: %w", issueKey, err)
	}

	prompt := e.prompts.IssueContext(issue.Key, issue.Summary, issue.Description,
		issue.IssueType, issue.Status, issue.Priority)
	out, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("extract context from %s: %w", issueKey, err)
	}
	return out, nil
}
