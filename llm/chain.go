package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nonsonwune/sqlagent/config"
)

// Chain tries providers in order, degrading to the next one when a call
// fails. The last provider in a well-formed chain is the mock, so the
// pipeline always produces something.
type Chain struct {
	providers []Provider
	log       *zap.Logger
}

// NewChain wraps providers in fallback order.
func NewChain(log *zap.Logger, providers ...Provider) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{providers: providers, log: log}
}

// Select assembles the standard chain from configuration: Gemini when a key
// is present, the remote agent when a URL is set, and the mock always.
func Select(ctx context.Context, cfg config.Config, log *zap.Logger) *Chain {
	if log == nil {
		log = zap.NewNop()
	}

	var providers []Provider
	if cfg.Gemini.Configured() {
		gemini, err := NewGemini(ctx, cfg.Gemini)
		if err != nil {
			log.Warn("gemini provider unavailable", zap.Error(err))
		} else {
			providers = append(providers, gemini)
		}
	}
	if cfg.AgentURL != "" {
		providers = append(providers, NewRemote(cfg.AgentURL))
	}
	providers = append(providers, NewMock())

	return NewChain(log, providers...)
}

// Name implements Provider.
func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// GenerateSQL implements Provider.
func (c *Chain) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	return tryEach(ctx, c, "generate sql", func(p Provider) (string, error) {
		return p.GenerateSQL(ctx, req)
	})
}

// ExplainResults implements Provider.
func (c *Chain) ExplainResults(ctx context.Context, req ResultsRequest) (string, error) {
	return tryEach(ctx, c, "explain results", func(p Provider) (string, error) {
		return p.ExplainResults(ctx, req)
	})
}

// Complete implements Provider.
func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	return tryEach(ctx, c, "complete", func(p Provider) (string, error) {
		return p.Complete(ctx, prompt)
	})
}

func tryEach(ctx context.Context, c *Chain, op string, call func(Provider) (string, error)) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("%w: empty provider chain", ErrUnavailable)
	}

	var lastErr error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		out, err := call(p)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, ErrUnavailable) {
			c.log.Warn("provider failed, falling back",
				zap.String("provider", p.Name()),
				zap.String("operation", op),
				zap.Error(err))
		}
	}
	return "", fmt.Errorf("all providers failed: %w", lastErr)
}
