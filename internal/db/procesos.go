package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bybot/pagare-worker/internal/types"
)

// -----------------------------------------------------------------------------
// Proceso Methods
// -----------------------------------------------------------------------------

const procesoColumns = `id, codigo, estado, intentos_analisis, archivo_pagare_original,
	archivo_estado_cuenta, archivo_anexos_original, archivo_pagare_llenado,
	fecha_creacion, fecha_actualizacion`

// NewProceso describes a proceso inserted by CreateProceso
type NewProceso struct {
	Codigo                string
	ArchivoPagareOriginal *string
	ArchivoEstadoCuenta   *string
	ArchivoAnexosOriginal *string
}

// CreateProceso inserts a proceso in state creado. The admin panel owns this in
// production; the worker uses it for fixtures and local runs.
func (db *DB) CreateProceso(ctx context.Context, p NewProceso) (int64, error) {
	now := db.now()
	query := `INSERT INTO crear_coop_procesos
		(codigo, estado, intentos_analisis, archivo_pagare_original, archivo_estado_cuenta,
		 archivo_anexos_original, fecha_creacion, fecha_actualizacion)
		VALUES (?, ?, 0, ?, ?, ?, ?, ?)`
	args := []any{p.Codigo, types.StateCreated, p.ArchivoPagareOriginal, p.ArchivoEstadoCuenta,
		p.ArchivoAnexosOriginal, now, now}

	id, err := db.insert(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create proceso: %w", err)
	}
	return id, nil
}

// AddAnexo attaches an annex to a proceso
func (db *DB) AddAnexo(ctx context.Context, procesoID int64, ruta, nombre string) (int64, error) {
	id, err := db.insert(ctx,
		`INSERT INTO crear_coop_anexos (proceso_id, tipo, ruta_archivo, nombre_archivo, fecha_subida)
		 VALUES (?, ?, ?, ?, ?)`,
		procesoID, types.AnexoOriginal, ruta, nombre, db.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add anexo: %w", err)
	}
	return id, nil
}

// GetProceso returns a proceso by ID, or ErrNotFound
func (db *DB) GetProceso(ctx context.Context, id int64) (*types.Proceso, error) {
	var p types.Proceso
	err := db.conn.GetContext(ctx, &p,
		db.rebind(`SELECT `+procesoColumns+` FROM crear_coop_procesos WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proceso: %w", err)
	}
	return &p, nil
}

// FetchNextPending returns the oldest proceso in the given state, or nil when
// there is none. New procesos are taken in creation order; validated ones in
// the order they were last touched. Fill candidates must have a promissory note.
func (db *DB) FetchNextPending(ctx context.Context, state types.State) (*types.Proceso, error) {
	query := `SELECT ` + procesoColumns + ` FROM crear_coop_procesos WHERE estado = ?`
	switch state {
	case types.StateValidated:
		query += ` AND archivo_pagare_original IS NOT NULL ORDER BY fecha_actualizacion ASC, id ASC`
	default:
		query += ` ORDER BY fecha_creacion ASC, id ASC`
	}
	query += ` LIMIT 1`

	var p types.Proceso
	err := db.conn.GetContext(ctx, &p, db.rebind(query), state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending proceso: %w", err)
	}
	return &p, nil
}

// ListProcesos returns procesos ordered by ID, optionally filtered by state
func (db *DB) ListProcesos(ctx context.Context, state types.State) ([]types.Proceso, error) {
	query := `SELECT ` + procesoColumns + ` FROM crear_coop_procesos`
	var args []any
	if state != "" {
		query += ` WHERE estado = ?`
		args = append(args, state)
	}
	query += ` ORDER BY id ASC`

	procesos := []types.Proceso{}
	if err := db.conn.SelectContext(ctx, &procesos, db.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list procesos: %w", err)
	}
	return procesos, nil
}

// ListAnexos returns the original annexes of a proceso in upload order
func (db *DB) ListAnexos(ctx context.Context, procesoID int64) ([]types.Anexo, error) {
	anexos := []types.Anexo{}
	err := db.conn.SelectContext(ctx, &anexos, db.rebind(
		`SELECT id, proceso_id, tipo, ruta_archivo, nombre_archivo, fecha_subida
		 FROM crear_coop_anexos
		 WHERE proceso_id = ? AND tipo = ?
		 ORDER BY fecha_subida ASC, id ASC`), procesoID, types.AnexoOriginal)
	if err != nil {
		return nil, fmt.Errorf("failed to list anexos: %w", err)
	}
	return anexos, nil
}

// -----------------------------------------------------------------------------
// State transitions
// -----------------------------------------------------------------------------

// Claim moves a proceso from one state to another only if it is still in from.
// A lost race returns ErrAlreadyClaimed.
func (db *DB) Claim(ctx context.Context, id int64, from, to types.State) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE crear_coop_procesos SET estado = ?, fecha_actualizacion = ?
		 WHERE id = ? AND estado = ?`), to, db.now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to claim proceso: %w", err)
	}
	return expectOneRow(res)
}

// Transition sets the state unconditionally
func (db *DB) Transition(ctx context.Context, id int64, to types.State) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE crear_coop_procesos SET estado = ?, fecha_actualizacion = ? WHERE id = ?`),
		to, db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update proceso state: %w", err)
	}
	err = expectOneRow(res)
	if errors.Is(err, ErrAlreadyClaimed) {
		return ErrNotFound
	}
	return err
}

// RecordAnalysisFailure increments the attempt counter and sends the proceso
// back to creado, or to error_analisis once the counter reaches maxAttempts.
// It returns the resulting state and counter. Only a proceso still in
// analizando_con_ia is updated; otherwise ErrAlreadyClaimed is returned.
func (db *DB) RecordAnalysisFailure(ctx context.Context, id int64, maxAttempts int) (types.State, int, error) {
	// estado is assigned first: MySQL evaluates SET left to right with updated values
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE crear_coop_procesos
		 SET estado = CASE WHEN intentos_analisis + 1 >= ? THEN ? ELSE ? END,
		     intentos_analisis = intentos_analisis + 1,
		     fecha_actualizacion = ?
		 WHERE id = ? AND estado = ?`),
		maxAttempts, types.StateAnalysisError, types.StateCreated, db.now(), id, types.StateAnalyzing)
	if err != nil {
		return "", 0, fmt.Errorf("failed to record analysis failure: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return "", 0, err
	}

	p, err := db.GetProceso(ctx, id)
	if err != nil {
		return "", 0, err
	}
	return p.Estado, p.IntentosAnalisis, nil
}

// CompleteFill stores the uploaded document path and marks the proceso filled
func (db *DB) CompleteFill(ctx context.Context, id int64, rutaArchivo string) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE crear_coop_procesos
		 SET archivo_pagare_llenado = ?, estado = ?, fecha_actualizacion = ?
		 WHERE id = ? AND estado = ?`),
		rutaArchivo, types.StateFilled, db.now(), id, types.StateFilling)
	if err != nil {
		return fmt.Errorf("failed to complete fill: %w", err)
	}
	return expectOneRow(res)
}

// ResetAnalysisError puts a proceso in error_analisis back to creado with a fresh counter
func (db *DB) ResetAnalysisError(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE crear_coop_procesos
		 SET estado = ?, intentos_analisis = 0, fecha_actualizacion = ?
		 WHERE id = ? AND estado = ?`),
		types.StateCreated, db.now(), id, types.StateAnalysisError)
	if err != nil {
		return fmt.Errorf("failed to reset proceso: %w", err)
	}
	return expectOneRow(res)
}

// RecoverStale returns procesos that have sat in a working state for longer
// than olderThan to the state they were claimed from. Younger claims may belong
// to a live worker and are left alone.
func (db *DB) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := db.now()
	cutoff := now.Add(-olderThan)

	var total int64
	for _, r := range []struct{ from, to types.State }{
		{types.StateAnalyzing, types.StateCreated},
		{types.StateFilling, types.StateValidated},
	} {
		res, err := db.conn.ExecContext(ctx, db.rebind(
			`UPDATE crear_coop_procesos SET estado = ?, fecha_actualizacion = ?
			 WHERE estado = ? AND fecha_actualizacion < ?`),
			r.to, now, r.from, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to recover stale procesos: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to read affected rows: %w", err)
		}
		total += n
	}
	return total, nil
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// insert runs an INSERT and returns the new row ID on every supported driver
func (db *DB) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if db.driver == "pgx" {
		var id int64
		if err := db.conn.QueryRowxContext(ctx, db.rebind(query+` RETURNING id`), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := db.conn.ExecContext(ctx, db.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
