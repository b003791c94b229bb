package server

import (
	"encoding/json"
	"io"
	"net/http"

	"notify-dispatch/internal/common/validation"
	"notify-dispatch/internal/dispatch"
)

const maxBodyBytes = 1 << 20

// readPayload reads and shape-checks a request body against a schema. A nil
// return means the error response has already been written.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request, schema string) []byte {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: "failed to read request body"})
		return nil
	}

	result, err := validation.ValidateJSON(schema, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: "request body is not valid JSON"})
		return nil
	}
	if !result.Valid {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: result.ErrorMessage()})
		return nil
	}

	return body
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "dispatch.Send")
	defer span.End()

	body := s.readPayload(w, r, sendSchema)
	if body == nil {
		return
	}

	var req dispatch.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: "malformed request"})
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Send(ctx, &req, s.callerFrom(r)))
}

func (s *Server) handleDigestQueue(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "dispatch.QueueForDigest")
	defer span.End()

	body := s.readPayload(w, r, sendSchema)
	if body == nil {
		return
	}

	var req dispatch.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: "malformed request"})
		return
	}

	writeJSON(w, http.StatusOK, s.engine.QueueForDigest(ctx, &req, s.callerFrom(r)))
}

func (s *Server) handleDigestSend(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "dispatch.FlushDigests")
	defer span.End()

	writeJSON(w, http.StatusOK, s.engine.FlushDigests(ctx, s.callerFrom(r)))
}

func (s *Server) handlePreferenceUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "dispatch.UpdatePreference")
	defer span.End()

	body := s.readPayload(w, r, preferenceUpdateSchema)
	if body == nil {
		return
	}

	var req dispatch.PreferenceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: "malformed request"})
		return
	}

	writeJSON(w, http.StatusOK, s.engine.UpdatePreference(ctx, &req, s.callerFrom(r)))
}

func (s *Server) handlePreferenceCheck(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "dispatch.CheckPreference")
	defer span.End()

	body := s.readPayload(w, r, preferenceCheckSchema)
	if body == nil {
		return
	}

	var req dispatch.PreferenceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: "malformed request"})
		return
	}

	writeJSON(w, http.StatusOK, s.engine.CheckPreference(ctx, &req, s.callerFrom(r)))
}

func (s *Server) handleTemplateValidate(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "dispatch.ValidateTemplate")
	defer span.End()

	body := s.readPayload(w, r, templateValidateSchema)
	if body == nil {
		return
	}

	var req struct {
		Template string `json:"template"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Success: false, Error: "malformed request"})
		return
	}

	writeJSON(w, http.StatusOK, s.engine.ValidateTemplate(ctx, req.Template, s.callerFrom(r)))
}
