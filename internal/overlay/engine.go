package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bybot/pagare-worker/internal/types"
)

// Options configures an Engine
type Options struct {
	// Endorsement lines; nil uses DefaultEndorsement
	Endorsement []string
	// Template switches the engine to the declarative driver when set
	Template *Template
	// TempDir receives generated outputs when no destination is given
	TempDir string
}

// Engine fills promissory notes
type Engine struct {
	writer      Writer
	endorsement []string
	template    *Template
	tempDir     string
	logger      *slog.Logger
}

// NewEngine creates an engine writing through w
func NewEngine(w Writer, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	endorsement := opts.Endorsement
	if endorsement == nil {
		endorsement = DefaultEndorsement
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Engine{
		writer:      w,
		endorsement: endorsement,
		template:    opts.Template,
		tempDir:     tempDir,
		logger:      logger,
	}
}

// Overlay writes datos onto a copy of src and returns the output path. An
// empty dst generates one in the temp directory. src is never modified.
func (e *Engine) Overlay(ctx context.Context, src, dst string, datos types.Datos) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("source document not found: %w", err)
	}
	if dst == "" {
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		dst = filepath.Join(e.tempDir, fmt.Sprintf("bybot_pagare_llenado_%s_%s.pdf", base, uuid.NewString()[:8]))
	}
	if same, err := samePath(src, dst); err != nil {
		return "", err
	} else if same {
		return "", fmt.Errorf("refusing to overwrite source document %s", src)
	}

	dims, err := e.writer.PageDims(src)
	if err != nil {
		return "", err
	}

	placements, err := e.plan(dims, datos)
	if err != nil {
		return "", err
	}

	if err := e.writer.Write(src, dst, dims, placements); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	e.logger.Info("promissory note filled",
		"pages", len(dims),
		"fields", len(placements),
		"template", e.template != nil,
		"output", dst,
	)
	return dst, nil
}

func (e *Engine) plan(dims []Dim, datos types.Datos) ([]Placement, error) {
	if e.template == nil {
		return Plan(dims, datos, e.endorsement)
	}

	data, err := TemplateData(datos, e.endorsement)
	if err != nil {
		return nil, err
	}
	placements, issues := e.template.Plan(dims, data)
	for _, issue := range issues {
		e.logger.Warn("template field skipped", "field", issue.Field, "error", issue.Err)
	}
	return placements, nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", b, err)
	}
	return absA == absB, nil
}
