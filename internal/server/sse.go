// ABOUTME: Server-sent events rendition of a runner turn
// ABOUTME: Streams each consumed model event, then the response envelope as the done event

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2389/agent-server/internal/agent"
	"github.com/2389/agent-server/internal/api"
)

// sseEvent is one event on the /run_sse stream.
type sseEvent struct {
	Event string
	Data  any
}

// eventData is the payload of a streamed model event.
type eventData struct {
	Text    string `json:"text"`
	Author  string `json:"author,omitempty"`
	Partial bool   `json:"partial,omitempty"`
	Final   bool   `json:"final,omitempty"`
}

// handleRunSSE handles POST /run_sse in runner mode. The turn runs exactly as
// it does for /run; the stream ends with a done event carrying the envelope.
func (s *Server) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	req, ok := s.parseChat(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.writeSSEEvent(w, "started", map[string]string{"session_id": req.SessionID})
	flusher.Flush()

	res := s.rt.Runner.RunStream(r.Context(), req.SessionID, req.Text(), func(ev *agent.Event) {
		event, ok := eventToSSE(ev)
		if !ok {
			return
		}
		s.writeSSEEvent(w, event.Event, event.Data)
		flusher.Flush()
	})
	s.logTurn(r, req.SessionID, res)

	resp := api.NewChatResponse(res, req.SessionID)
	if res.Err != nil {
		resp.Error = res.Err
		s.writeSSEEvent(w, "error", res.Err)
	}
	s.writeSSEEvent(w, "done", resp)
	flusher.Flush()
}

// eventToSSE converts a model event for the stream. Error events are not
// forwarded; the turn's structured error is sent once it resolves.
func eventToSSE(ev *agent.Event) (sseEvent, bool) {
	if ev.Err != nil || ev.Kind == agent.EventError {
		return sseEvent{}, false
	}
	name := ev.Kind.String()
	if ev.IsFinal() {
		name = "final"
	}
	return sseEvent{
		Event: name,
		Data: eventData{
			Text:    ev.FirstText(),
			Author:  ev.Author,
			Partial: ev.Partial,
			Final:   ev.Final,
		},
	}, true
}

// formatSSEEvent renders one event in the text/event-stream wire format.
func formatSSEEvent(eventType, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	if _, err := fmt.Fprint(w, formatSSEEvent(event, string(dataJSON))); err != nil {
		s.logger.Debug("client went away during stream", "error", err)
	}
}
