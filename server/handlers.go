package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nonsonwune/sqlagent/jira"
	"github.com/nonsonwune/sqlagent/nlagent"
)

// Agent is the query pipeline surface the handlers need.
type Agent interface {
	Query(ctx context.Context, req nlagent.Request) (*nlagent.Response, error)
	Explain(ctx context.Context, req nlagent.Request) (*nlagent.Explanation, error)
}

// IssueDirectory lists and fetches tracker issues.
type IssueDirectory interface {
	SearchIssues(ctx context.Context, project, status string, limit int) ([]jira.Issue, error)
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
}

// Pinger reports database connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler wires HTTP routes to the agent, tracker, and database.
type Handler struct {
	Agent        Agent
	Issues       IssueDirectory
	Contexts     nlagent.ContextSource
	DB           Pinger
	ProviderName string
	Log          *zap.Logger
}

// response is the JSON envelope every endpoint uses.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

// Routes registers all endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/api/sql/query", h.sqlQuery)
	mux.HandleFunc("/api/sql/explain", h.sqlExplain)
	mux.HandleFunc("/api/jira/issues", h.jiraIssues)
	mux.HandleFunc("/api/jira/issues/", h.jiraIssueByKey)
	mux.HandleFunc("/api/jira/context", h.jiraContext)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{
		"provider": h.ProviderName,
		"jira":     "not configured",
		"database": "not configured",
	}
	healthy := true

	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			services["database"] = "error: " + err.Error()
			healthy = false
		} else {
			services["database"] = "connected"
		}
	}
	if h.Issues != nil {
		services["jira"] = "configured"
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]any{"status": status, "services": services},
		Message: "Health check completed",
	})
}

func (h *Handler) sqlQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAgentRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Agent.Query(r.Context(), req)
	if err != nil {
		h.Log.Error("query failed", zap.String("question", req.Question), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    result,
		Message: "Query executed successfully",
	})
}

func (h *Handler) sqlExplain(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAgentRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Agent.Explain(r.Context(), req)
	if err != nil {
		h.Log.Error("explain failed", zap.String("question", req.Question), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    result,
		Message: "Query explanation generated successfully",
	})
}

func (h *Handler) decodeAgentRequest(w http.ResponseWriter, r *http.Request) (nlagent.Request, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nlagent.Request{}, false
	}
	var req nlagent.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return nlagent.Request{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return nlagent.Request{}, false
	}
	return req, true
}

func (h *Handler) jiraIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Issues == nil {
		writeError(w, http.StatusServiceUnavailable, "jira is not configured")
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	issues, err := h.Issues.SearchIssues(r.Context(),
		r.URL.Query().Get("project"), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.Log.Error("issue search failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    issues,
		Message: "Retrieved " + strconv.Itoa(len(issues)) + " issues",
	})
}

func (h *Handler) jiraIssueByKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Issues == nil {
		writeError(w, http.StatusServiceUnavailable, "jira is not configured")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/jira/issues/")
	if key == "" || strings.Contains(key, "/") {
		writeError(w, http.StatusBadRequest, "issue key required")
		return
	}

	issue, err := h.Issues.GetIssue(r.Context(), key)
	if err != nil {
		h.Log.Error("issue fetch failed", zap.String("issue", key), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    issue,
		Message: "Retrieved issue " + key,
	})
}

func (h *Handler) jiraContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Contexts == nil {
		writeError(w, http.StatusServiceUnavailable, "jira is not configured")
		return
	}

	var req struct {
		IssueKey string `json:"issue_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IssueKey == "" {
		writeError(w, http.StatusBadRequest, "issue_key is required")
		return
	}

	out, err := h.Contexts.ExtractContext(r.Context(), req.IssueKey)
	if err != nil {
		h.Log.Error("context extraction failed", zap.String("issue", req.IssueKey), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    out,
		Message: "Context extracted from issue " + req.IssueKey,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Success: false, Message: msg})
}
