// Package server provides the review REST API used to inspect procesos, correct
// and validate extracted data, and reset procesos stuck in error_analisis.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bybot/pagare-worker/internal/db"
	"github.com/bybot/pagare-worker/internal/schemas"
	"github.com/bybot/pagare-worker/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrInvalidState indicates the proceso is not in a state that allows the action
type ErrInvalidState struct {
	ProcesoID int64
	Estado    types.State
	Action    string
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("cannot %s proceso %d in state %s", e.Action, e.ProcesoID, e.Estado)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		state      *ErrInvalidState
		schemaErr  *schemas.ValidationError
		dataErr    *types.DataError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &schemaErr), errors.As(err, &dataErr):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &state), errors.Is(err, db.ErrAlreadyClaimed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
