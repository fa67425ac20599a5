package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nonsonwune/sqlagent/config"
	"github.com/nonsonwune/sqlagent/nlagent/prompts"
)

const (
	geminiMaxRetries     = 3
	geminiInitialBackoff = 1 * time.Second
)

// Gemini is the direct-LLM mode backed by the Generative AI API.
type Gemini struct {
	mu        sync.Mutex
	client    *genai.Client
	model     *genai.GenerativeModel
	keys      *KeyManager
	modelName string
	prompts   *prompts.Builder
}

// NewGemini builds the Gemini provider, or ErrUnavailable when no API key is
// configured.
func NewGemini(ctx context.Context, cfg config.Gemini) (*Gemini, error) {
	keys := NewKeyManager(cfg.APIKey)
	if keys.Empty() {
		return nil, fmt.Errorf("%w: no Gemini API key configured", ErrUnavailable)
	}

	g := &Gemini{
		keys:      keys,
		modelName: cfg.Model,
		prompts:   prompts.NewBuilder(),
	}
	if err := g.connect(ctx, keys.Current()); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gemini) connect(ctx context.Context, key string) error {
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return fmt.Errorf("initialize Gemini client: %w", err)
	}

	model := client.GenerativeModel(g.modelName)

	// Lower temperature for more precise SQL.
	temp := float32(0.2)
	model.Temperature = &temp

	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
	}

	g.mu.Lock()
	if g.client != nil {
		g.client.Close()
	}
	g.client = client
	g.model = model
	g.mu.Unlock()
	return nil
}

// rotate swaps to the next API key after a rate limit hit.
func (g *Gemini) rotate(ctx context.Context) {
	prev := g.keys.Current()
	if next := g.keys.Next(); next != "" && next != prev {
		_ = g.connect(ctx, next)
	}
}

// Name implements Provider.
func (g *Gemini) Name() string {
	return "gemini"
}

// GenerateSQL implements Provider.
func (g *Gemini) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	prompt := g.prompts.Query(req.Question, req.SchemaText, req.IssueContext, req.ExtraContext)
	return g.send(ctx, prompt)
}

// ExplainResults implements Provider.
func (g *Gemini) ExplainResults(ctx context.Context, req ResultsRequest) (string, error) {
	prompt := g.prompts.Results(req.Question, req.SQL, req.ResultsJSON, req.RowCount, req.IssueContext)
	return g.send(ctx, prompt)
}

// Complete implements Provider.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.send(ctx, prompt)
}

func (g *Gemini) send(ctx context.Context, prompt string) (string, error) {
	var out string

	op := func() error {
		g.mu.Lock()
		model := g.model
		g.mu.Unlock()

		chat := model.StartChat()
		resp, err := chat.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			if isRateLimitError(err) {
				g.rotate(ctx)
			}
			return err
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return errors.New("no response candidates")
		}
		out, err = extractText(resp.Candidates[0].Content.Parts[0])
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(geminiInitialBackoff)), geminiMaxRetries),
		ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return out, nil
}

// Close releases the API client.
func (g *Gemini) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.Close()
	}
}

func isRateLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota exceeded")
}

func extractText(part genai.Part) (string, error) {
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response type: %T", part)
	}
	out := strings.TrimSpace(string(text))
	if out == "" {
		return "", errors.New("empty response text")
	}
	return out, nil
}
