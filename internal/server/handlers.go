package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Xaisr/redactor"
	"github.com/Xaisr/redactor/internal/otel"
	"github.com/Xaisr/redactor/store"
)

// errorBody is the JSON error envelope for all endpoints.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: message, Type: errType}})
}

// writeEngineError maps engine error kinds to HTTP statuses: configuration
// problems are the client's to fix (400), detector outages are upstream
// failures (502), and restore lookup misses are data-integrity conflicts (422).
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case redactor.IsConfigError(err):
		writeError(w, http.StatusBadRequest, "config_error", err.Error())
	case redactor.IsDetectionError(err):
		writeError(w, http.StatusBadGateway, "detection_error", err.Error())
	case redactor.IsRestoreLookupError(err):
		writeError(w, http.StatusUnprocessableEntity, "restore_lookup_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type redactRequest struct {
	Text    string `json:"text"`
	Persist bool   `json:"persist,omitempty"`
}

type redactResponse struct {
	RedactedText string            `json:"redacted_text"`
	Mapping      *redactor.Mapping `json:"mapping"`
	Entities     int               `json:"entities"`
	SessionID    string            `json:"session_id,omitempty"`
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text must not be empty")
		return
	}

	ctx := r.Context()
	redacted, mapping, err := s.redactor.Redact(ctx, req.Text)
	if err != nil {
		log.Error().Err(err).Func(otel.LogTraceFields(ctx)).Msg("redact failed")
		writeEngineError(w, err)
		return
	}

	resp := redactResponse{
		RedactedText: redacted,
		Mapping:      mapping,
		Entities:     mapping.Len(),
	}

	if req.Persist {
		if s.sessions == nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "session persistence is not enabled")
			return
		}
		id, err := s.sessions.Save(ctx, mapping)
		if err != nil {
			log.Error().Err(err).Func(otel.LogTraceFields(ctx)).Msg("session save failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "saving session: "+err.Error())
			return
		}
		resp.SessionID = id
	}

	log.Info().
		Int("entities", mapping.Len()).
		Str("session_id", resp.SessionID).
		Func(otel.LogTraceFields(ctx)).
		Msg("text redacted")

	writeJSON(w, http.StatusOK, resp)
}

type restoreRequest struct {
	RedactedText string            `json:"redacted_text"`
	Mapping      *redactor.Mapping `json:"mapping,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
}

type restoreResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}

	ctx := r.Context()
	mapping := req.Mapping
	if req.SessionID != "" {
		if s.sessions == nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "session persistence is not enabled")
			return
		}
		session, err := s.sessions.Load(ctx, req.SessionID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown session "+req.SessionID)
			return
		}
		if err != nil {
			log.Error().Err(err).Func(otel.LogTraceFields(ctx)).Msg("session load failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "loading session: "+err.Error())
			return
		}
		mapping = session.Mapping
	}
	if mapping == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "either mapping or session_id is required")
		return
	}

	text, err := s.redactor.Restore(ctx, req.RedactedText, mapping)
	if err != nil {
		log.Warn().Err(err).Func(otel.LogTraceFields(ctx)).Msg("restore failed")
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, restoreResponse{Text: text})
}

type recognizerInfo struct {
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	Patterns   int    `json:"patterns"`
	DenyList   int    `json:"deny_list"`
}

func (s *Server) handleRecognizers(w http.ResponseWriter, r *http.Request) {
	recs := s.redactor.Recognizers()
	infos := make([]recognizerInfo, 0, len(recs))
	for _, rec := range recs {
		infos = append(infos, recognizerInfo{
			Name:       rec.Name(),
			EntityType: rec.EntityType(),
			Patterns:   len(rec.Patterns()),
			DenyList:   len(rec.DenyList()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"recognizers": infos})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}
