// Package server exposes the engine over a small JSON HTTP API. The
// caller identity arrives in headers; authentication itself happens
// upstream at the gateway.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "application-engine/internal/common/errors"
	"application-engine/internal/common/logger"
	"application-engine/internal/engine"
	"application-engine/internal/models"
	"application-engine/internal/template"
)

const (
	headerSubject    = "X-Subject-Id"
	headerOnBehalfOf = "X-On-Behalf-Of"
)

type Server struct {
	engine *engine.Engine
	logger logger.Logger
}

func New(eng *engine.Engine, log logger.Logger) *Server {
	return &Server{engine: eng, logger: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/applications", s.handleStart)
	mux.HandleFunc("POST /v1/applications/{id}/events", s.handleApplyEvent)
	mux.HandleFunc("GET /v1/applications/{id}/permissions", s.handlePermissions)
	mux.HandleFunc("DELETE /v1/applications/{id}", s.handleDelete)
	return mux
}

type startRequest struct {
	TypeID string `json:"typeId"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TypeID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "typeId is required")
		return
	}
	app, err := s.engine.Start(r.Context(), req.TypeID, id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

type applyEventRequest struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (s *Server) handleApplyEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req applyEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "event is required")
		return
	}
	app, err := s.engine.ApplyEvent(r.Context(), r.PathValue("id"), template.Event(req.Event), id, req.Payload)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	decision, err := s.engine.ResolvePermissions(r.Context(), r.PathValue("id"), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roles":           decision.Roles,
		"readable":        decision.Readable,
		"writable":        decision.Writable,
		"permittedEvents": decision.PermittedEvents,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.engine.Delete(r.Context(), r.PathValue("id"), id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	subject := r.Header.Get(headerSubject)
	if subject == "" {
		writeError(w, http.StatusUnauthorized, "MISSING_SUBJECT", headerSubject+" header is required")
		return models.Identity{}, false
	}
	return models.Identity{
		SubjectID:        subject,
		ActingOnBehalfOf: r.Header.Get(headerOnBehalfOf),
	}, true
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var te *apperrors.TransitionError
	if !errors.As(err, &te) {
		s.logger.Error("request failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	status := statusFor(te.Code)
	body := map[string]interface{}{
		"code":    te.Code,
		"message": te.Message,
	}
	if len(te.Fields) > 0 {
		body["fields"] = te.Fields
	}
	writeJSON(w, status, body)
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeApplicationNotFound, apperrors.ErrCodeTemplateNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidEvent, apperrors.ErrCodeGuardRejected, apperrors.ErrCodeVersionConflict:
		return http.StatusConflict
	case apperrors.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodePrerequisiteFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
