package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bybot/pagare-worker/internal/callback"
	"github.com/bybot/pagare-worker/internal/config"
	"github.com/bybot/pagare-worker/internal/db"
	"github.com/bybot/pagare-worker/internal/events"
	"github.com/bybot/pagare-worker/internal/extraction"
	"github.com/bybot/pagare-worker/internal/fileserver"
	"github.com/bybot/pagare-worker/internal/llm"
	"github.com/bybot/pagare-worker/internal/logging"
	"github.com/bybot/pagare-worker/internal/overlay"
)

// app holds the loaded configuration and builds collaborators on demand
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// loadApp reads settings and the environment. Logs go to stderr; stdout carries command results.
func loadApp() (*app, error) {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	store, err := db.Connect(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store, nil
}

func (a *app) fileServer() *fileserver.Client {
	return fileserver.New(fileserver.Options{
		BaseURL: a.cfg.FileServer.BaseURL,
		Token:   a.cfg.FileServer.Token,
		Timeout: a.cfg.FileServer.Timeout,
		TempDir: a.cfg.FileServer.TempDir,
	}, a.logger)
}

// callbacks returns the webhook client, or a no-op sender when disabled or unconfigured
func (a *app) callbacks(disabled bool) callback.Sender {
	if disabled {
		return callback.Nop{}
	}
	if a.cfg.Callback.URL == "" {
		a.logger.Warn("BYBOT_API_URL is not set; callbacks are disabled")
		return callback.Nop{}
	}
	return callback.New(a.cfg.Callback.URL, a.cfg.Callback.Token, a.cfg.Callback.Timeout, a.logger)
}

// oracle connects to Gemini. The returned close func releases the client.
func (a *app) oracle(ctx context.Context) (*extraction.Oracle, func(), error) {
	llmCfg := llm.NewConfig(a.cfg.Gemini.Model, a.cfg.Gemini.Temperature, a.cfg.Gemini.MaxTokens)
	client, err := llm.NewClient(ctx, llmCfg, a.cfg.Gemini.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("failed to close Gemini client", "error", err)
		}
	}
	return extraction.New(client, a.logger), closeFn, nil
}

// engine builds the overlay engine; a non-empty templatePath selects the template driver
func (a *app) engine(templatePath string) (*overlay.Engine, error) {
	opts := overlay.Options{
		Endorsement: a.cfg.Processing.Endorsement,
		TempDir:     a.cfg.FileServer.TempDir,
	}
	if templatePath != "" {
		tmpl, err := overlay.LoadTemplate(templatePath)
		if err != nil {
			return nil, err
		}
		opts.Template = tmpl
		a.logger.Info("template loaded", "path", templatePath)
	}
	return overlay.NewEngine(overlay.NewPDFCPUWriter(), opts, a.logger), nil
}

// publisher dials RabbitMQ when AMQP_URL is set
func (a *app) publisher() (events.Publisher, error) {
	if a.cfg.Events.AMQPURL == "" {
		return events.Nop{}, nil
	}
	return events.Dial(a.cfg.Events.AMQPURL, a.cfg.Events.Exchange, a.logger)
}
