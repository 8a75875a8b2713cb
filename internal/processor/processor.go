// Package processor runs the two automatic phases of a proceso: analysis of its
// documents by the extraction oracle, and filling of its promissory note once a
// reviewer has validated the extracted data.
//
// Each phase claims the proceso with a conditional state transition, so two
// workers polling the same table never process the same proceso twice. Every
// failure is converted into a state transition here; nothing is returned to the
// polling loop except whether the phase succeeded.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/bybot/pagare-worker/internal/events"
	"github.com/bybot/pagare-worker/internal/fileserver"
	"github.com/bybot/pagare-worker/internal/types"
)

// DefaultMaxAttempts is the number of failed analyses after which a proceso
// moves to error_analisis
const DefaultMaxAttempts = 3

// Store is the persistence used by both phases
type Store interface {
	FetchNextPending(ctx context.Context, state types.State) (*types.Proceso, error)
	ListAnexos(ctx context.Context, procesoID int64) ([]types.Anexo, error)
	Claim(ctx context.Context, id int64, from, to types.State) error
	RecordAnalysisFailure(ctx context.Context, id int64, maxAttempts int) (types.State, int, error)
	SaveAnalysis(ctx context.Context, procesoID int64, datos types.Datos, usage types.TokenUsage) error
	GetExtraction(ctx context.Context, procesoID int64) (*types.ExtractionRecord, error)
	CompleteFill(ctx context.Context, id int64, rutaArchivo string) error
}

// Files moves documents to and from the file server
type Files interface {
	Download(ctx context.Context, procesoID int64, tipo string, anexoID int64) (*fileserver.Download, error)
	Upload(ctx context.Context, procesoID int64, tipo, path string) (*fileserver.UploadResult, error)
}

// Oracle extracts structured data from the statement and annex documents
type Oracle interface {
	Analyze(ctx context.Context, statement string, anexos []string) (types.Datos, types.TokenUsage, error)
}

// Overlayer writes extracted data onto a promissory note
type Overlayer interface {
	Overlay(ctx context.Context, src, dst string, datos types.Datos) (string, error)
}

// Deps are the collaborators of a Processor. Events may be nil.
type Deps struct {
	Store   Store
	Files   Files
	Oracle  Oracle
	Overlay Overlayer
	Events  events.Publisher
}

// Options tunes the retry policy and scratch space
type Options struct {
	MaxAttempts int
	TempDir     string
}

// Processor runs analysis and fill phases
type Processor struct {
	store       Store
	files       Files
	oracle      Oracle
	overlay     Overlayer
	events      events.Publisher
	maxAttempts int
	tempDir     string
	logger      *slog.Logger
}

// New creates a processor
func New(deps Deps, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Processor{
		store:       deps.Store,
		files:       deps.Files,
		oracle:      deps.Oracle,
		overlay:     deps.Overlay,
		events:      deps.Events,
		maxAttempts: opts.MaxAttempts,
		tempDir:     opts.TempDir,
		logger:      logger,
	}
}

// AnalyzeNext analyzes the oldest proceso in creado. It reports whether a
// proceso was analyzed successfully; the error is only set when the store
// could not be queried.
func (p *Processor) AnalyzeNext(ctx context.Context) (bool, error) {
	job, err := p.store.FetchNextPending(ctx, types.StateCreated)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	return p.RunAnalysis(ctx, job), nil
}

// FillNext fills the promissory note of the validated proceso that has waited longest
func (p *Processor) FillNext(ctx context.Context) (bool, error) {
	job, err := p.store.FetchNextPending(ctx, types.StateValidated)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	return p.RunFill(ctx, job), nil
}

func (p *Processor) publish(ctx context.Context, e events.Event) {
	if err := p.events.Publish(context.WithoutCancel(ctx), e); err != nil {
		p.logger.Warn("failed to publish event", "event", e.Name, "proceso_id", e.ProcesoID, "error", err)
	}
}

// guard runs fn and turns a panic into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// tempFiles collects local files to remove when a phase ends
type tempFiles struct {
	mu    sync.Mutex
	paths []string
}

func (t *tempFiles) add(path string) {
	if path == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

func (t *tempFiles) cleanup(logger *slog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, path := range t.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}
	t.paths = nil
}
