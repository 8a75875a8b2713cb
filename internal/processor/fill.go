package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bybot/pagare-worker/internal/db"
	"github.com/bybot/pagare-worker/internal/events"
	"github.com/bybot/pagare-worker/internal/fileserver"
	"github.com/bybot/pagare-worker/internal/types"
)

// RunFill fills and uploads the promissory note of one proceso in
// informacion_ia_validada and reports whether it reached con_pagare. Failures
// send it back to informacion_ia_validada to be retried on a later poll.
func (p *Processor) RunFill(ctx context.Context, job *types.Proceso) bool {
	if job == nil || job.Estado != types.StateValidated {
		return false
	}
	log := p.logger.With("proceso_id", job.ID, "codigo", job.Codigo)

	if err := p.store.Claim(ctx, job.ID, types.StateValidated, types.StateFilling); err != nil {
		if errors.Is(err, db.ErrAlreadyClaimed) {
			log.Info("proceso already claimed by another worker")
		} else {
			log.Error("failed to claim proceso for filling", "error", err)
		}
		return false
	}
	log.Info("fill started")

	temp := &tempFiles{}
	defer temp.cleanup(log)

	var ruta string
	err := guard(func() error {
		var err error
		ruta, err = p.fill(ctx, job, temp, log)
		return err
	})
	if err != nil {
		log.Error("fill failed; returning proceso to validated", "error", err)
		terr := p.store.Claim(context.WithoutCancel(ctx), job.ID, types.StateFilling, types.StateValidated)
		switch {
		case errors.Is(terr, db.ErrAlreadyClaimed):
			log.Warn("proceso left llenar_pagare while being filled; state not reverted")
			return false
		case terr != nil:
			log.Error("failed to revert proceso state", "error", terr)
		}
		p.publish(ctx, events.Event{
			Name:      events.FillRetry,
			ProcesoID: job.ID,
			Codigo:    job.Codigo,
			Estado:    types.StateValidated,
			Error:     err.Error(),
		})
		return false
	}

	log.Info("fill complete", "ruta_archivo", ruta)
	p.publish(ctx, events.Event{
		Name:      events.Filled,
		ProcesoID: job.ID,
		Codigo:    job.Codigo,
		Estado:    types.StateFilled,
	})
	return true
}

func (p *Processor) fill(ctx context.Context, job *types.Proceso, temp *tempFiles, log *slog.Logger) (string, error) {
	rec, err := p.store.GetExtraction(ctx, job.ID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", &types.DataError{Field: "datos_ia", Message: "proceso has no extracted data"}
	}
	datos := rec.Preferred()
	log.Debug("fill data loaded", "validados", rec.Validados != nil)

	dl, err := p.files.Download(ctx, job.ID, types.FilePagare, 0)
	if err != nil {
		return "", fmt.Errorf("failed to download promissory note: %w", err)
	}
	temp.add(dl.Path)

	dst := filepath.Join(p.tempDir, OutputName(job.Codigo))
	temp.add(dst)
	out, err := p.overlay.Overlay(ctx, dl.Path, dst, datos)
	if err != nil {
		return "", fmt.Errorf("failed to fill promissory note: %w", err)
	}
	if out != dst {
		temp.add(out)
	}

	info, err := os.Stat(out)
	if err != nil {
		return "", fmt.Errorf("filled promissory note missing: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("filled promissory note %s is empty", out)
	}

	up, err := p.files.Upload(ctx, job.ID, types.FilePagareLlenado, out)
	if err != nil {
		return "", err
	}
	if err := p.store.CompleteFill(ctx, job.ID, up.RutaArchivo); err != nil {
		return "", err
	}
	return up.RutaArchivo, nil
}

// OutputName returns the temp file name of a filled promissory note
func OutputName(codigo string) string {
	safe := fileserver.SanitizeFileName(codigo)
	if safe == "" {
		safe = "proceso"
	}
	return fmt.Sprintf("bybot_pagare_llenado_%s_%s.pdf", safe, uuid.NewString())
}
