// Package types provides type definitions for the procesos handled by the pagaré worker.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a proceso, stored verbatim in crear_coop_procesos.estado
type State string

const (
	StateCreated       State = "creado"
	StateAnalyzing     State = "analizando_con_ia"
	StateAnalyzed      State = "analizado_con_ia"
	StateValidated     State = "informacion_ia_validada"
	StateFilling       State = "llenar_pagare"
	StateFilled        State = "con_pagare"
	StateAnalysisError State = "error_analisis"
)

// AllStates lists every state in lifecycle order, error state last
var AllStates = []State{
	StateCreated,
	StateAnalyzing,
	StateAnalyzed,
	StateValidated,
	StateFilling,
	StateFilled,
	StateAnalysisError,
}

// Valid reports whether s is a known state
func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automatic transition leaves s
func (s State) IsTerminal() bool {
	return s == StateFilled || s == StateAnalysisError
}

// ParseState converts a stored value into a State
func ParseState(v string) (State, error) {
	s := State(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown proceso state %q", v)
	}
	return s, nil
}

// Proceso is one loan-document package moving through extraction and filling
type Proceso struct {
	ID                    int64     `db:"id" json:"id"`
	Codigo                string    `db:"codigo" json:"codigo"`
	Estado                State     `db:"estado" json:"estado"`
	IntentosAnalisis      int       `db:"intentos_analisis" json:"intentos_analisis"`
	ArchivoPagareOriginal *string   `db:"archivo_pagare_original" json:"archivo_pagare_original,omitempty"`
	ArchivoEstadoCuenta   *string   `db:"archivo_estado_cuenta" json:"archivo_estado_cuenta,omitempty"`
	ArchivoAnexosOriginal *string   `db:"archivo_anexos_original" json:"archivo_anexos_original,omitempty"`
	ArchivoPagareLlenado  *string   `db:"archivo_pagare_llenado" json:"archivo_pagare_llenado,omitempty"`
	FechaCreacion         time.Time `db:"fecha_creacion" json:"fecha_creacion"`
	FechaActualizacion    time.Time `db:"fecha_actualizacion" json:"fecha_actualizacion"`
}

// Anexo is a supporting document attached to a proceso
type Anexo struct {
	ID            int64     `db:"id" json:"id"`
	ProcesoID     int64     `db:"proceso_id" json:"proceso_id"`
	Tipo          string    `db:"tipo" json:"tipo"`
	RutaArchivo   string    `db:"ruta_archivo" json:"ruta_archivo"`
	NombreArchivo string    `db:"nombre_archivo" json:"nombre_archivo"`
	FechaSubida   time.Time `db:"fecha_subida" json:"fecha_subida"`
}

// AnexoOriginal is the tipo of annexes uploaded with the proceso
const AnexoOriginal = "anexo_original"

// File kinds understood by the file server
const (
	FilePagare        = "pagare"
	FileEstadoCuenta  = "estado_cuenta"
	FileAnexo         = "anexo"
	FilePagareLlenado = "pagare_llenado"
)
