package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/bybot/pagare-worker/internal/schemas"
	"github.com/bybot/pagare-worker/internal/server/middleware"
	"github.com/bybot/pagare-worker/internal/types"
)

var validate = validator.New()

// ProcesoResponse is a proceso together with its latest extraction
type ProcesoResponse struct {
	Proceso types.Proceso           `json:"proceso"`
	DatosIA *types.ExtractionRecord `json:"datos_ia"`
}

// SaveDatosRequest carries the reviewer's corrected extraction
type SaveDatosRequest struct {
	Datos   json.RawMessage `json:"datos" validate:"required"`
	Validar bool            `json:"validar"`
}

// ListResponse wraps a list of procesos
type ListResponse struct {
	Procesos []types.Proceso `json:"procesos"`
	Total    int             `json:"total"`
}

func (s *Server) handleListProcesos(w http.ResponseWriter, r *http.Request) {
	var state types.State
	if v := r.URL.Query().Get("estado"); v != "" {
		parsed, err := types.ParseState(v)
		if err != nil {
			s.fail(w, &ErrValidation{Field: "estado", Message: err.Error()})
			return
		}
		state = parsed
	}

	procesos, err := s.store.ListProcesos(r.Context(), state)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ListResponse{Procesos: procesos, Total: len(procesos)})
}

func (s *Server) handleGetProceso(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	p, err := s.store.GetProceso(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	rec, err := s.store.GetExtraction(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ProcesoResponse{Proceso: *p, DatosIA: rec})
}

func (s *Server) handleSaveDatos(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	var req SaveDatosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		s.fail(w, structError(err))
		return
	}
	if err := schemas.Validate(schemas.Datos, req.Datos); err != nil {
		s.fail(w, err)
		return
	}
	var datos types.Datos
	if err := json.Unmarshal(req.Datos, &datos); err != nil {
		s.fail(w, &ErrValidation{Field: "datos", Message: err.Error()})
		return
	}

	p, err := s.store.GetProceso(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if p.Estado != types.StateAnalyzed && p.Estado != types.StateValidated {
		s.fail(w, &ErrInvalidState{ProcesoID: id, Estado: p.Estado, Action: "edit data of"})
		return
	}

	if err := s.store.SaveValidated(r.Context(), id, datos); err != nil {
		s.fail(w, err)
		return
	}
	if req.Validar && p.Estado == types.StateAnalyzed {
		if err := s.store.Claim(r.Context(), id, types.StateAnalyzed, types.StateValidated); err != nil {
			s.fail(w, err)
			return
		}
	}

	s.logger.Info("validated data saved",
		slog.Int64("proceso_id", id),
		slog.String("reviewer", reviewer(r)),
		slog.Bool("validar", req.Validar),
	)
	s.respondProceso(w, r, id)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	p, err := s.store.GetProceso(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if p.Estado != types.StateAnalyzed {
		s.fail(w, &ErrInvalidState{ProcesoID: id, Estado: p.Estado, Action: "validate"})
		return
	}
	if err := s.store.Claim(r.Context(), id, types.StateAnalyzed, types.StateValidated); err != nil {
		s.fail(w, err)
		return
	}

	s.logger.Info("proceso validated", slog.Int64("proceso_id", id), slog.String("reviewer", reviewer(r)))
	s.respondProceso(w, r, id)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	p, err := s.store.GetProceso(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if p.Estado != types.StateAnalysisError {
		s.fail(w, &ErrInvalidState{ProcesoID: id, Estado: p.Estado, Action: "reset"})
		return
	}
	if err := s.store.ResetAnalysisError(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}

	s.logger.Info("proceso reset", slog.Int64("proceso_id", id), slog.String("reviewer", reviewer(r)))
	s.respondProceso(w, r, id)
}

func (s *Server) respondProceso(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := s.store.GetProceso(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	rec, err := s.store.GetExtraction(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ProcesoResponse{Proceso: *p, DatosIA: rec})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &ErrValidation{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

func structError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ErrValidation{Field: verrs[0].Field(), Message: "failed on " + verrs[0].Tag()}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}

func reviewer(r *http.Request) string {
	subject, err := middleware.GetSubject(r)
	if err != nil {
		return "unknown"
	}
	return subject
}
