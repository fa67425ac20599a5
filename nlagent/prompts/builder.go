// Package prompts constructs the LLM prompts used by the SQL agent.
package prompts

import (
	"fmt"
	"strings"
)

// Builder handles the construction of prompts for the LLM.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Query builds the SQL-generation prompt. Issue and extra context blocks are
// included only when present.
func (b *Builder) Query(question, schema, issueContext, extraContext string) string {
	var sb strings.Builder
	sb.WriteString(`You are a SQL query generator for a PostgreSQL database. Follow these rules strictly:

1. Use only the tables and columns listed in the schema below.
2. Always use table aliases and explicit JOIN conditions.
3. Use LOWER() for case-insensitive string matching.
4. Prefer COUNT(DISTINCT ...) when counting entities reachable through joins.
5. Return only the SQL query, with no explanations or comments.

DATABASE SCHEMA:
`)
	sb.WriteString(schema)

	if issueContext != "" {
		sb.WriteString("\nISSUE CONTEXT:\n")
		sb.WriteString(issueContext)
		sb.WriteString("\n")
	}
	if extraContext != "" {
		sb.WriteString("\nADDITIONAL CONTEXT:\n")
		sb.WriteString(extraContext)
		sb.WriteString("\n")
	}

	sb.WriteString("\nNow generate a SQL query for this question: ")
	sb.WriteString(question)
	return sb.String()
}

// Validation builds the cross-check prompt. The model answers with "VALID" or
// "INVALID: <reason>".
func (b *Builder) Validation(question, sqlText string) string {
	return fmt.Sprintf(`You are a SQL query validator. Your task is to validate if the generated SQL query correctly answers the user's question.
Rules:
1. Check table relationships and joins against the question.
2. For counting queries, verify proper use of COUNT and GROUP BY.
3. Verify WHERE clause conditions match the question.
4. The query must only read data, never modify it.

User Question: %s
Generated SQL: %s

Respond with:
- "VALID" if the query is correct
- "INVALID: <reason>" if the query is incorrect, explaining why
`, question, sqlText)
}

// Results builds the prompt that narrates query results. Only a sample of rows
// is passed; rowCount is the full count.
func (b *Builder) Results(question, sqlText, resultsJSON string, rowCount int, issueContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `The user asked: %q

The following SQL query was executed:
%s

It returned %d rows. A sample of the results:
%s
`, question, sqlText, rowCount, resultsJSON)

	if issueContext != "" {
		sb.WriteString("\nISSUE CONTEXT:\n")
		sb.WriteString(issueContext)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Explain what these results mean in plain language, in at most three sentences.
Mention notable values or patterns. Do not repeat the SQL.`)
	return sb.String()
}

// ExplainSQL builds the prompt for explaining a query without executing it.
func (b *Builder) ExplainSQL(question, sqlText, issueContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `The user asked: %q

The following SQL query was generated:
%s
`, question, sqlText)

	if issueContext != "" {
		sb.WriteString("\nISSUE CONTEXT:\n")
		sb.WriteString(issueContext)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Explain step by step what this query does and how it answers the question.
Keep the explanation accessible to someone who does not write SQL.`)
	return sb.String()
}

// IssueContext builds the prompt that distills a tracker issue into query
// context.
func (b *Builder) IssueContext(key, summary, description, issueType, status, priority string) string {
	return fmt.Sprintf(`Extract relevant context for a database query from this issue:

Issue Key: %s
Summary: %s
Description: %s
Type: %s
Status: %s
Priority: %s

Focus on extracting:
1. Key requirements or data needs mentioned in the issue
2. Any specific filters, conditions, or constraints for the query
3. Time periods or date ranges mentioned
4. Specific metrics or calculations needed
5. Any mentioned tables, fields, or data entities

Return only the extracted context in a concise format, focusing on information
that would be useful for constructing a SQL query.`, key, summary, description, issueType, status, priority)
}

// Error builds the prompt for a user-friendly error message.
func (b *Builder) Error(question string, err error) string {
	return fmt.Sprintf(`Generate a user-friendly error message for this failed query:

Question: %q

Error: %v

Requirements:
1. Explain the issue in simple terms
2. Suggest how to rephrase the question
3. Keep the message concise and helpful

Error Message:`, question, err)
}
