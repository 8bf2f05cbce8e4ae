package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	m, err := s.svc.SendMessage(r.Context(), actor, req.Recipient, req.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	if err := s.svc.MarkMessageRead(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// handleMarkAllRead marks everything unread in the caller's inbox as of this
// request. Messages arriving while the batch commits stay unread.
func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	inbox, err := s.st.ListMessagesByRecipient(r.Context(), actor.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	n, err := s.svc.MarkAllRead(r.Context(), actor, inbox)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	if err := s.svc.DeleteMessage(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
