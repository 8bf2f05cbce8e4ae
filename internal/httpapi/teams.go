package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type teamRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req teamRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	t, err := s.svc.CreateTeam(r.Context(), actor, req.Name, req.Members)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req teamRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.svc.UpdateTeam(r.Context(), actor, chi.URLParam(r, "id"), req.Name, req.Members); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	if err := s.svc.DeleteTeam(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
