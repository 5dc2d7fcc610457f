// ABOUTME: HTTP handlers for the agent endpoints
// ABOUTME: Decode the chat envelope, run a turn and choose the status code from the result

package server

import (
	"encoding/json"
	"net/http"

	"github.com/2389/agent-server/internal/api"
	"github.com/2389/agent-server/internal/config"
	"github.com/2389/agent-server/internal/runner"
)

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleHelp serves the rendered usage page.
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.helpHTML)
}

// handleRoot handles GET / in runner and direct modes.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.NewHealthResponse(s.rt.Spec, s.mode != config.ModeDirect))
}

// handleComparisonInfo handles GET / in comparison mode.
func (s *Server) handleComparisonInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.NewComparisonInfo())
}

// handleListApps handles GET /list-apps.
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.NewAppsResponse(s.rt.Spec))
}

// handleConfig handles GET /config.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.NewConfigResponse(s.rt.Spec, s.rt.ConfigPath, s.mode))
}

// handleRun handles POST /run and POST /chat in runner mode.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseChat(w, r)
	if !ok {
		return
	}

	res := s.rt.Runner.Run(r.Context(), req.SessionID, req.Text())
	s.logTurn(r, req.SessionID, res)
	s.writeResult(w, res, api.NewChatResponse(res, req.SessionID))
}

// handleDirectChat handles POST /chat in direct mode. Nothing is remembered.
func (s *Server) handleDirectChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseChat(w, r)
	if !ok {
		return
	}

	res := s.rt.Runner.RunDirect(r.Context(), req.Text())
	s.logTurn(r, "", res)
	s.writeResult(w, res, api.NewDirectResponse(res))
}

// handleCompareDirect handles POST /direct in comparison mode.
func (s *Server) handleCompareDirect(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseChat(w, r)
	if !ok {
		return
	}

	res := s.rt.Runner.RunDirect(r.Context(), req.Text())
	s.logTurn(r, "", res)
	s.writeResult(w, res, api.NewComparisonResponse(res, false, api.ApproachDirect))
}

// handleCompareRunner handles POST /runner in comparison mode.
func (s *Server) handleCompareRunner(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseChat(w, r)
	if !ok {
		return
	}

	res := s.rt.Runner.Run(r.Context(), req.SessionID, req.Text())
	s.logTurn(r, req.SessionID, res)
	s.writeResult(w, res, api.NewComparisonResponse(res, true, api.ApproachRunner))
}

// handleSession handles GET /sessions/{id}.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.rt.Runner.Session(id)
	if !ok {
		s.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewSessionResponse(sess))
}

// handleListSessions handles GET /sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	rn := s.rt.Runner
	s.writeJSON(w, http.StatusOK, api.NewSessionListResponse(rn.AppName(), rn.UserID(), rn.Sessions()))
}

// handleDeleteSession handles DELETE /sessions/{id}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.rt.Runner.DeleteSession(id) {
		s.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Info("session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) parseChat(w http.ResponseWriter, r *http.Request) (*api.ChatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := api.ParseChatRequest(r.Body)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return req, true
}

// writeResult sends the envelope. In legacy mode every turn is a 200 and
// failures live in the response text. In strict mode failures get an error
// status and the structured error in the body.
func (s *Server) writeResult(w http.ResponseWriter, res runner.Result, resp api.ChatResponse) {
	if !s.strict || res.Err == nil {
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Error = res.Err
	s.writeJSON(w, statusForError(res.Err), resp)
}

// statusForError maps a failed turn to an HTTP status.
func statusForError(err *runner.Error) int {
	switch err.Kind {
	case runner.KindCancelled:
		return http.StatusGatewayTimeout
	case runner.KindPanic:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) logTurn(r *http.Request, sessionID string, res runner.Result) {
	attrs := []any{"path", r.URL.Path, "outcome", res.Outcome}
	if sessionID != "" {
		attrs = append(attrs, "session_id", sessionID)
	}
	if res.Err != nil {
		attrs = append(attrs, "error_kind", res.Err.Kind, "error", res.Err.Message)
		s.logger.Warn("turn failed", attrs...)
		return
	}
	s.logger.Info("turn completed", attrs...)
}

// writeJSON writes v as the JSON body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
