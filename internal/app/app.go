package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/document"
	"github.com/vk/notegrid/internal/kernel"
	"github.com/vk/notegrid/internal/telemetry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	doc      *document.Document
	pool     *kernel.Pool
	metrics  *telemetry.Metrics
	registry *prometheus.Registry
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and kernel
// pool. A nil factory defaults to local in-process instances.
func NewApp(outW io.Writer, cfg *Config, factory kernel.Factory) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	doc, err := document.Load(ctx, cfg.DocumentPath)
	if err != nil {
		// A failure to load the document is a fatal startup error.
		panic(fmt.Errorf("failed to load document: %w", err))
	}
	logger.Debug("Document loaded.", "nodes", doc.Len())

	promReg := prometheus.NewRegistry()

	return &App{
		outW:     outW,
		logger:   logger,
		doc:      doc,
		pool:     kernel.NewPool(factory),
		metrics:  telemetry.New(promReg),
		registry: promReg,
	}
}

// Document returns the loaded document. This is primarily for testing.
func (a *App) Document() *document.Document {
	return a.doc
}

// Pool returns the application's kernel pool. This is primarily for testing.
func (a *App) Pool() *kernel.Pool {
	return a.pool
}
