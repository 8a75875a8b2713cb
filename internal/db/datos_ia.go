package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bybot/pagare-worker/internal/types"
)

// -----------------------------------------------------------------------------
// Extraction Methods
// -----------------------------------------------------------------------------

type datosIARow struct {
	ProcesoID       int64          `db:"proceso_id"`
	DatosOriginales string         `db:"datos_originales"`
	DatosValidados  sql.NullString `db:"datos_validados"`
	Metadata        sql.NullString `db:"metadata"`
	FechaAnalisis   time.Time      `db:"fecha_analisis"`
}

// SaveAnalysis marks a proceso in analizando_con_ia analyzed with a fresh
// attempt counter and stores the merged extraction, replacing any earlier one,
// in one transaction. A proceso no longer in analizando_con_ia is left as is
// and ErrAlreadyClaimed is returned.
func (db *DB) SaveAnalysis(ctx context.Context, procesoID int64, datos types.Datos, usage types.TokenUsage) error {
	datosJSON, err := json.Marshal(datos)
	if err != nil {
		return fmt.Errorf("failed to marshal datos: %w", err)
	}
	metadataJSON, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := db.now()
	res, err := tx.ExecContext(ctx, db.rebind(
		`UPDATE crear_coop_procesos
		 SET estado = ?, intentos_analisis = 0, fecha_actualizacion = ?
		 WHERE id = ? AND estado = ?`),
		types.StateAnalyzed, now, procesoID, types.StateAnalyzing)
	if err != nil {
		return fmt.Errorf("failed to mark proceso analyzed: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		_ = tx.Rollback()
		if _, gerr := db.GetProceso(ctx, procesoID); gerr != nil {
			return gerr
		}
		return err
	}

	exists, err := hasExtraction(ctx, tx, db.rebind, procesoID)
	if err != nil {
		return err
	}
	if exists {
		_, err = tx.ExecContext(ctx, db.rebind(
			`UPDATE crear_coop_datos_ia
			 SET datos_originales = ?, metadata = ?, fecha_analisis = ?
			 WHERE proceso_id = ?`),
			string(datosJSON), string(metadataJSON), now, procesoID)
	} else {
		_, err = tx.ExecContext(ctx, db.rebind(
			`INSERT INTO crear_coop_datos_ia (proceso_id, datos_originales, metadata, fecha_analisis)
			 VALUES (?, ?, ?, ?)`),
			procesoID, string(datosJSON), string(metadataJSON), now)
	}
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

// GetExtraction returns the stored extraction for a proceso, or nil if none exists
func (db *DB) GetExtraction(ctx context.Context, procesoID int64) (*types.ExtractionRecord, error) {
	var row datosIARow
	err := db.conn.GetContext(ctx, &row, db.rebind(
		`SELECT proceso_id, datos_originales, datos_validados, metadata, fecha_analisis
		 FROM crear_coop_datos_ia WHERE proceso_id = ?`), procesoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	rec := &types.ExtractionRecord{
		ProcesoID:     row.ProcesoID,
		FechaAnalisis: row.FechaAnalisis,
	}
	if err := json.Unmarshal([]byte(row.DatosOriginales), &rec.Originales); err != nil {
		return nil, &types.DataError{Field: "datos_originales", Message: "stored JSON is invalid", Cause: err}
	}
	if row.DatosValidados.Valid && row.DatosValidados.String != "" {
		var validados types.Datos
		if err := json.Unmarshal([]byte(row.DatosValidados.String), &validados); err != nil {
			return nil, &types.DataError{Field: "datos_validados", Message: "stored JSON is invalid", Cause: err}
		}
		rec.Validados = &validados
	}
	if row.Metadata.Valid && row.Metadata.String != "" {
		if err := json.Unmarshal([]byte(row.Metadata.String), &rec.Metadata); err != nil {
			return nil, &types.DataError{Field: "metadata", Message: "stored JSON is invalid", Cause: err}
		}
	}
	return rec, nil
}

// SaveValidated stores the reviewer's corrected data for a proceso that has an extraction
func (db *DB) SaveValidated(ctx context.Context, procesoID int64, datos types.Datos) error {
	b, err := json.Marshal(datos)
	if err != nil {
		return fmt.Errorf("failed to marshal datos: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE crear_coop_datos_ia SET datos_validados = ? WHERE proceso_id = ?`),
		string(b), procesoID)
	if err != nil {
		return fmt.Errorf("failed to save validated data: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return ErrNotFound
	}
	return nil
}

func hasExtraction(ctx context.Context, q sqlx.QueryerContext, rebind func(string) string, procesoID int64) (bool, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, rebind(
		`SELECT id FROM crear_coop_datos_ia WHERE proceso_id = ?`), procesoID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check extraction: %w", err)
	}
	return true, nil
}
