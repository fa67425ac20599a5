// Command server runs the HTTP API for the natural language SQL assistant.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nonsonwune/sqlagent/config"
	"github.com/nonsonwune/sqlagent/jira"
	"github.com/nonsonwune/sqlagent/llm"
	"github.com/nonsonwune/sqlagent/nlagent"
	"github.com/nonsonwune/sqlagent/server"
	"github.com/nonsonwune/sqlagent/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db nlagent.Querier
	var pinger server.Pinger
	if cfg.Database.Configured() {
		st, err := store.Open(cfg.Database)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer st.Close()
		db, pinger = st, st
		log.Info("database connected", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))
	} else {
		mock := store.NewMock()
		db, pinger = mock, mock
		log.Warn("database not configured, serving the demo dataset")
	}

	provider := llm.Select(ctx, cfg, log)
	log.Info("provider chain ready", zap.String("chain", provider.Name()))

	var issues server.IssueDirectory
	var contexts nlagent.ContextSource
	if cfg.Jira.Configured() {
		client := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken)
		issues = client
		contexts = jira.NewContextExtractor(client, provider)
		log.Info("jira configured", zap.String("url", cfg.Jira.BaseURL))
	}

	engine := nlagent.New(db, provider, contexts, log)

	svc := server.New(cfg, &server.Handler{
		Agent:        engine,
		Issues:       issues,
		Contexts:     contexts,
		DB:           pinger,
		ProviderName: provider.Name(),
		Log:          log,
	}, log)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return log
}
