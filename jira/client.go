// Package jira is a small REST client for the issue tracker, plus the LLM
// step that distills an issue into query context.
package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	requestTimeout = 15 * time.Second
	maxRetries     = 2
)

// ErrNotConfigured is returned when the client has no credentials.
var ErrNotConfigured = errors.New("jira: not configured")

// Issue is the subset of issue fields the agent cares about.
type Issue struct {
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	IssueType   string `json:"issue_type"`
	Priority    string `json:"priority,omitempty"`
	Created     string `json:"created"`
	Updated     string `json:"updated"`
}

// Client talks to the Jira REST API v3 with basic auth.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

// NewClient builds a client from base URL and email/token credentials.
func NewClient(baseURL, email, apiToken string) *Client {
	credentials := base64.StdEncoding.EncodeToString([]byte(email + ":" + apiToken))
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + credentials,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Configured reports whether the client can make requests.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// SearchIssues lists issues filtered by optional project and status.
func (c *Client) SearchIssues(ctx context.Context, project, status string, limit int) ([]Issue, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = 10
	}

	var jqlParts []string
	if project != "" {
		jqlParts = append(jqlParts, "project = "+project)
	}
	if status != "" {
		jqlParts = append(jqlParts, fmt.Sprintf("status = '%s'", status))
	}

	params := url.Values{}
	params.Set("jql", strings.Join(jqlParts, " AND "))
	params.Set("maxResults", strconv.Itoa(limit))

	var payload struct {
		Issues []issuePayload `json:"issues"`
	}
	if err := c.get(ctx, "/rest/api/3/search?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	issues := make([]Issue, 0, len(payload.Issues))
	for _, ip := range payload.Issues {
		issues = append(issues, ip.toIssue())
	}
	return issues, nil
}

// GetIssue fetches a single issue by key (e.g. SALES-123).
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var payload issuePayload
	if err := c.get(ctx, "/rest/api/3/issue/"+url.PathEscape(key), &payload); err != nil {
		return nil, err
	}
	issue := payload.toIssue()
	return &issue, nil
}

type issuePayload struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Created     string `json:"created"`
		Updated     string `json:"updated"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
	} `json:"fields"`
}

func (p issuePayload) toIssue() Issue {
	return Issue{
		Key:         p.Key,
		Summary:     p.Fields.Summary,
		Description: p.Fields.Description,
		Status:      p.Fields.Status.Name,
		IssueType:   p.Fields.IssueType.Name,
		Priority:    p.Fields.Priority.Name,
		Created:     p.Fields.Created,
		Updated:     p.Fields.Updated,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("jira returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("jira returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(op, policy)
}
