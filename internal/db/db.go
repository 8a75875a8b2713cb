// Package db provides SQL access to procesos, their annexes and extracted data.
//
// The same queries run on MySQL (production), PostgreSQL via pgx and SQLite;
// placeholders are written as '?' and rebound per driver.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers "sqlite"
)

// ErrNotFound is returned when a proceso does not exist
var ErrNotFound = errors.New("proceso not found")

// ErrAlreadyClaimed is returned by conditional transitions when the proceso is
// no longer in the expected state, typically because another worker moved it
var ErrAlreadyClaimed = errors.New("proceso is no longer in the expected state")

// DB wraps a sqlx handle bound to one driver
type DB struct {
	conn   *sqlx.DB
	driver string
	now    func() time.Time
}

// Connect opens and pings a database. driver is one of mysql, pgx or sqlite.
func Connect(ctx context.Context, driver, dsn string) (*DB, error) {
	conn, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch driver {
	case "sqlite":
		// one writer at a time; avoids SQLITE_BUSY between pooled connections
		conn.SetMaxOpenConns(1)
	default:
		conn.SetMaxOpenConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	return &DB{conn: conn, driver: driver, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping verifies the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate creates the tables used by the worker if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	stmts, ok := schemas[db.driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.driver)
	}
	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (db *DB) rebind(query string) string {
	return db.conn.Rebind(query)
}

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

var schemas = map[string][]string{
	"mysql": {
		`CREATE TABLE IF NOT EXISTS crear_coop_procesos (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			codigo VARCHAR(64) NOT NULL,
			estado VARCHAR(40) NOT NULL DEFAULT 'creado',
			intentos_analisis INT NOT NULL DEFAULT 0,
			archivo_pagare_original VARCHAR(500) NULL,
			archivo_estado_cuenta VARCHAR(500) NULL,
			archivo_anexos_original VARCHAR(500) NULL,
			archivo_pagare_llenado VARCHAR(500) NULL,
			fecha_creacion DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			fecha_actualizacion DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_crear_coop_procesos_estado (estado)
		) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS crear_coop_anexos (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			proceso_id BIGINT NOT NULL,
			tipo VARCHAR(50) NOT NULL DEFAULT 'anexo_original',
			ruta_archivo VARCHAR(500) NOT NULL,
			nombre_archivo VARCHAR(255) NOT NULL,
			fecha_subida DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_crear_coop_anexos_proceso (proceso_id)
		) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS crear_coop_datos_ia (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			proceso_id BIGINT NOT NULL UNIQUE,
			datos_originales LONGTEXT NOT NULL,
			datos_validados LONGTEXT NULL,
			metadata TEXT NULL,
			fecha_analisis DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		) DEFAULT CHARSET=utf8mb4`,
	},
	"pgx": {
		`CREATE TABLE IF NOT EXISTS crear_coop_procesos (
			id BIGSERIAL PRIMARY KEY,
			codigo VARCHAR(64) NOT NULL,
			estado VARCHAR(40) NOT NULL DEFAULT 'creado',
			intentos_analisis INT NOT NULL DEFAULT 0,
			archivo_pagare_original VARCHAR(500),
			archivo_estado_cuenta VARCHAR(500),
			archivo_anexos_original VARCHAR(500),
			archivo_pagare_llenado VARCHAR(500),
			fecha_creacion TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			fecha_actualizacion TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crear_coop_procesos_estado ON crear_coop_procesos (estado)`,
		`CREATE TABLE IF NOT EXISTS crear_coop_anexos (
			id BIGSERIAL PRIMARY KEY,
			proceso_id BIGINT NOT NULL,
			tipo VARCHAR(50) NOT NULL DEFAULT 'anexo_original',
			ruta_archivo VARCHAR(500) NOT NULL,
			nombre_archivo VARCHAR(255) NOT NULL,
			fecha_subida TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS crear_coop_datos_ia (
			id BIGSERIAL PRIMARY KEY,
			proceso_id BIGINT NOT NULL UNIQUE,
			datos_originales TEXT NOT NULL,
			datos_validados TEXT,
			metadata TEXT,
			fecha_analisis TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS crear_coop_procesos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			codigo TEXT NOT NULL,
			estado TEXT NOT NULL DEFAULT 'creado',
			intentos_analisis INTEGER NOT NULL DEFAULT 0,
			archivo_pagare_original TEXT,
			archivo_estado_cuenta TEXT,
			archivo_anexos_original TEXT,
			archivo_pagare_llenado TEXT,
			fecha_creacion DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			fecha_actualizacion DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crear_coop_procesos_estado ON crear_coop_procesos (estado)`,
		`CREATE TABLE IF NOT EXISTS crear_coop_anexos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			proceso_id INTEGER NOT NULL,
			tipo TEXT NOT NULL DEFAULT 'anexo_original',
			ruta_archivo TEXT NOT NULL,
			nombre_archivo TEXT NOT NULL,
			fecha_subida DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS crear_coop_datos_ia (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			proceso_id INTEGER NOT NULL UNIQUE,
			datos_originales TEXT NOT NULL,
			datos_validados TEXT,
			metadata TEXT,
			fecha_analisis DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}
