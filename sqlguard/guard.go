// Package sqlguard cleans LLM-generated SQL and blocks anything that is not
// a plain read before it reaches the database.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmpty is returned when nothing usable remains after sanitization.
var ErrEmpty = errors.New("empty SQL after sanitization")

// ErrNotReadOnly is returned for statements that could modify data or schema.
var ErrNotReadOnly = errors.New("statement is not read-only")

var (
	lineComment  = regexp.MustCompile(`(?m)--.*$`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// Code fence variants models emit around SQL.
var fences = []string{"```sql", "```SQL", "```postgresql", "```"}

// Sanitize strips markdown fences, SQL comments, and repeated semicolons from
// a model response, returning bare SQL.
func Sanitize(raw string) (string, error) {
	sqlText := strings.TrimSpace(raw)

	for _, fence := range fences {
		if strings.HasPrefix(sqlText, fence) {
			sqlText = strings.TrimPrefix(sqlText, fence)
			if idx := strings.LastIndex(sqlText, "```"); idx != -1 {
				sqlText = sqlText[:idx]
			}
			break
		}
	}

	sqlText = lineComment.ReplaceAllString(sqlText, "")
	sqlText = blockComment.ReplaceAllString(sqlText, "")

	for strings.Contains(sqlText, ";;") {
		sqlText = strings.ReplaceAll(sqlText, ";;", ";")
	}

	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return "", ErrEmpty
	}
	return sqlText, nil
}

// Phrases that mark a statement as mutating. Matched on a normalized
// lower-cased, whitespace-collapsed copy of the statement.
var deniedPhrases = []string{
	"drop table", "drop database", "drop schema", "truncate",
	"delete from", "update ", "insert into", "alter table",
	"create table", "create index", "grant ", "revoke ",
	"execute ", "copy ",
}

// EnsureReadOnly rejects statements that are not a single read. The statement
// must start with SELECT or WITH and contain none of the denied phrases.
func EnsureReadOnly(sqlText string) error {
	normalized := strings.ToLower(strings.Join(strings.Fields(sqlText), " "))
	normalized = strings.TrimSuffix(normalized, ";")

	if strings.Contains(normalized, ";") {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if !strings.HasPrefix(normalized, "select") && !strings.HasPrefix(normalized, "with") {
		return fmt.Errorf("%w: must start with SELECT or WITH", ErrNotReadOnly)
	}
	for _, phrase := range deniedPhrases {
		if strings.Contains(normalized+" ", phrase) {
			return fmt.Errorf("%w: contains %q", ErrNotReadOnly, strings.TrimSpace(phrase))
		}
	}
	return nil
}

// Check runs Sanitize then EnsureReadOnly and returns the cleaned statement.
func Check(raw string) (string, error) {
	sqlText, err := Sanitize(raw)
	if err != nil {
		return "", err
	}
	if err := EnsureReadOnly(sqlText); err != nil {
		return "", err
	}
	return sqlText, nil
}
