package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bybot/pagare-worker/internal/db"
	"github.com/bybot/pagare-worker/internal/events"
	"github.com/bybot/pagare-worker/internal/types"
)

const maxConcurrentDownloads = 4

type analysisDocs struct {
	statement string
	anexos    []string
}

// RunAnalysis analyzes one proceso in creado and reports whether it reached
// analizado_con_ia. A failure sends it back to creado, or to error_analisis
// once the attempt limit is reached. Losing the claim to another worker is not
// a failure and leaves the attempt counter alone.
func (p *Processor) RunAnalysis(ctx context.Context, job *types.Proceso) bool {
	if job == nil || job.Estado != types.StateCreated {
		return false
	}
	log := p.logger.With("proceso_id", job.ID, "codigo", job.Codigo)

	if err := p.store.Claim(ctx, job.ID, types.StateCreated, types.StateAnalyzing); err != nil {
		if errors.Is(err, db.ErrAlreadyClaimed) {
			log.Info("proceso already claimed by another worker")
		} else {
			log.Error("failed to claim proceso for analysis", "error", err)
		}
		return false
	}
	log.Info("analysis started", "intentos_analisis", job.IntentosAnalisis)

	temp := &tempFiles{}
	defer temp.cleanup(log)

	var usage types.TokenUsage
	err := guard(func() error {
		var err error
		usage, err = p.analyze(ctx, job, temp, log)
		return err
	})
	if err != nil {
		p.recordAnalysisFailure(ctx, job, err, log)
		return false
	}

	log.Info("analysis complete", "tokens_total", usage.Total, "modelo", usage.Model)
	p.publish(ctx, events.Event{
		Name:      events.Analyzed,
		ProcesoID: job.ID,
		Codigo:    job.Codigo,
		Estado:    types.StateAnalyzed,
	})
	return true
}

func (p *Processor) analyze(ctx context.Context, job *types.Proceso, temp *tempFiles, log *slog.Logger) (types.TokenUsage, error) {
	anexos, err := p.store.ListAnexos(ctx, job.ID)
	if err != nil {
		return types.TokenUsage{}, err
	}
	if len(anexos) == 0 {
		return types.TokenUsage{}, &types.DataError{Field: "anexos", Message: "proceso has no annexes"}
	}

	docs, err := p.downloadAnalysisDocs(ctx, job.ID, anexos, temp, log)
	if err != nil {
		return types.TokenUsage{}, err
	}

	datos, usage, err := p.oracle.Analyze(ctx, docs.statement, docs.anexos)
	if err != nil {
		return usage, err
	}
	if datos.EstadoCuenta.TasaInteresEfectivaAnual == nil {
		log.Warn("effective annual rate found in neither the statement nor the annexes")
	}

	if err := p.store.SaveAnalysis(ctx, job.ID, datos, usage); err != nil {
		return usage, err
	}
	return usage, nil
}

// downloadAnalysisDocs fetches the promissory note (best effort), the account
// statement (required) and every annex (each optional, at least one required)
// concurrently, each into its own temp file
func (p *Processor) downloadAnalysisDocs(ctx context.Context, procesoID int64, anexos []types.Anexo, temp *tempFiles, log *slog.Logger) (*analysisDocs, error) {
	docs := &analysisDocs{}
	anexoPaths := make([]string, len(anexos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)

	g.Go(func() error {
		dl, err := p.files.Download(gctx, procesoID, types.FilePagare, 0)
		if err != nil {
			log.Warn("promissory note not downloaded; continuing without it", "error", err)
			return nil
		}
		temp.add(dl.Path)
		return nil
	})

	g.Go(func() error {
		dl, err := p.files.Download(gctx, procesoID, types.FileEstadoCuenta, 0)
		if err != nil {
			return fmt.Errorf("failed to download account statement: %w", err)
		}
		temp.add(dl.Path)
		docs.statement = dl.Path
		return nil
	})

	for i, anexo := range anexos {
		g.Go(func() error {
			dl, err := p.files.Download(gctx, procesoID, types.FileAnexo, anexo.ID)
			if err != nil {
				log.Warn("annex not downloaded; skipping", "anexo_id", anexo.ID, "error", err)
				return nil
			}
			temp.add(dl.Path)
			anexoPaths[i] = dl.Path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, path := range anexoPaths {
		if path != "" {
			docs.anexos = append(docs.anexos, path)
		}
	}
	if len(docs.anexos) == 0 {
		return nil, &types.DataError{Field: "anexos", Message: fmt.Sprintf("none of %d annexes could be downloaded", len(anexos))}
	}
	log.Info("documents downloaded", "anexos", len(docs.anexos), "anexos_skipped", len(anexos)-len(docs.anexos))
	return docs, nil
}

func (p *Processor) recordAnalysisFailure(ctx context.Context, job *types.Proceso, cause error, log *slog.Logger) {
	// the proceso must not stay in analizando_con_ia because the caller gave up
	ctx = context.WithoutCancel(ctx)

	state, attempts, err := p.store.RecordAnalysisFailure(ctx, job.ID, p.maxAttempts)
	if errors.Is(err, db.ErrAlreadyClaimed) {
		log.Warn("proceso left analizando_con_ia while being analyzed; result discarded", "cause", cause)
		return
	}
	if err != nil {
		log.Error("failed to record analysis failure", "error", err, "cause", cause)
		return
	}

	name := events.AnalysisRetry
	if state == types.StateAnalysisError {
		name = events.AnalysisError
		log.Error("analysis failed; no attempts left",
			"intentos_analisis", attempts,
			"estado", state,
			"error", cause,
		)
	} else {
		log.Warn("analysis failed; will retry",
			"intento", attempts,
			"max_intentos", p.maxAttempts,
			"estado", state,
			"error", cause,
		)
	}

	p.publish(ctx, events.Event{
		Name:      name,
		ProcesoID: job.ID,
		Codigo:    job.Codigo,
		Estado:    state,
		Intentos:  attempts,
		Error:     cause.Error(),
	})
}
