package llm

import (
	"context"
	"fmt"
	"strings"
)

// Mock is the offline mode: deterministic keyword-driven SQL and canned
// explanations so the pipeline works without any API key or agent service.
type Mock struct{}

// NewMock returns the mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// Name implements Provider.
func (m *Mock) Name() string {
	return "mock"
}

// GenerateSQL implements Provider with keyword heuristics over the sample
// commerce schema.
func (m *Mock) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	q := strings.ToLower(req.Question)
	switch {
	case strings.Contains(q, "customer") && (strings.Contains(q, "top") || strings.Contains(q, "high value")):
		return `SELECT c.id, c.name, SUM(o.amount) AS total_spent
FROM customers c
JOIN orders o ON o.customer_id = c.id
GROUP BY c.id, c.name
ORDER BY total_spent DESC
LIMIT 10`, nil
	case strings.Contains(q, "customer"):
		return "SELECT * FROM customers LIMIT 50", nil
	case strings.Contains(q, "order") || strings.Contains(q, "purchase"):
		if strings.Contains(q, "recent") || strings.Contains(q, "last month") {
			return `SELECT * FROM orders
WHERE order_date >= CURRENT_DATE - INTERVAL '30 days'`, nil
		}
		return "SELECT * FROM orders LIMIT 50", nil
	case strings.Contains(q, "product") || strings.Contains(q, "inventory"):
		return "SELECT * FROM products ORDER BY price DESC LIMIT 50", nil
	default:
		return "", fmt.Errorf("mock provider cannot answer %q", req.Question)
	}
}

// ExplainResults implements Provider.
func (m *Mock) ExplainResults(ctx context.Context, req ResultsRequest) (string, error) {
	return fmt.Sprintf("The query returned %d rows based on your request about %q.",
		req.RowCount, req.Question), nil
}

// Complete implements Provider. Validation prompts are approved so the mock
// never blocks the pipeline; everything else gets a generic acknowledgement.
func (m *Mock) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "SQL query validator") {
		return "VALID", nil
	}
	if strings.Contains(prompt, "Extract relevant context") {
		return "No additional context available.", nil
	}
	if strings.Contains(prompt, "user-friendly error message") {
		return "The query could not be completed. Try asking a more specific question.", nil
	}
	return "OK", nil
}
