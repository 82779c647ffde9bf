package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentflow/onboarding/pkg/eventbus"
	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
	"github.com/agentflow/onboarding/pkg/types"
)

// handleAgentEvents streams one agent's pipeline events.
func (s *Server) handleAgentEvents(w http.ResponseWriter, r *http.Request) {
	agent, err := s.svc.GetAgent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.stream(w, r, eventbus.AgentTopic(agent.ID))
}

// handleManagerEvents streams events for every agent of a manager. Managers
// get their own feed; admins name the manager.
func (s *Server) handleManagerEvents(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	managerID := r.URL.Query().Get("managerId")
	switch actor.Role {
	case types.RoleManager:
		if managerID != "" && managerID != actor.ID {
			httputil.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		managerID = actor.ID
	case types.RoleAdmin:
		if managerID == "" {
			httputil.WriteFieldError(w, http.StatusBadRequest, "managerId", "required")
			return
		}
	default:
		httputil.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}
	s.stream(w, r, eventbus.ManagerTopic(managerID))
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cancel := s.svc.Hub().Subscribe(topic)
	defer cancel()

	_, _ = fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected"}`)
	flusher.Flush()

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("Dropping unencodable event", "type", ev.Type, "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b)
			flusher.Flush()
		}
	}
}
