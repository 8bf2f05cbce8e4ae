package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/boardsync/internal/store"
)

type signupRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	u, err := s.svc.RegisterUser(r.Context(), req.Email, store.Role(req.Role))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p, err := s.svc.CreateProject(r.Context(), actor, req.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	if err := s.svc.DeleteProject(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type assignTeamRequest struct {
	TeamID string `json:"team_id"`
}

func (s *Server) handleAssignTeam(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req assignTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.svc.AssignTeam(r.Context(), actor, chi.URLParam(r, "id"), req.TeamID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if _, err := s.actor(r); err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	cols, progress, err := s.svc.Board(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"columns":  cols,
		"progress": progress,
	})
}

type addTaskRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req addTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	t, err := s.svc.AddTask(r.Context(), actor, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

type generateTasksRequest struct {
	Goal string `json:"goal"`
}

func (s *Server) handleGenerateTasks(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req generateTasksRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	tasks, err := s.svc.GenerateTasks(r.Context(), actor, chi.URLParam(r, "id"), req.Goal)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"tasks": tasks})
}

// updateTaskRequest carries at most one mutation per field; absent fields are
// left untouched. A blank text edit is accepted and discarded downstream.
type updateTaskRequest struct {
	Text       *string    `json:"text,omitempty"`
	Status     *string    `json:"status,omitempty"`
	AssignedTo *string    `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	ClearDue   bool       `json:"clear_due,omitempty"`
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	projectID := chi.URLParam(r, "id")
	taskID := chi.URLParam(r, "taskID")
	ctx := r.Context()

	if req.Text != nil {
		if err := s.svc.EditTaskText(ctx, actor, projectID, taskID, *req.Text); err != nil {
			respondServiceError(w, err)
			return
		}
	}
	if req.Status != nil {
		if err := s.svc.MoveTask(ctx, actor, projectID, taskID, store.TaskStatus(*req.Status)); err != nil {
			respondServiceError(w, err)
			return
		}
	}
	if req.AssignedTo != nil {
		if err := s.svc.AssignTask(ctx, actor, projectID, taskID, *req.AssignedTo); err != nil {
			respondServiceError(w, err)
			return
		}
	}
	if req.DueDate != nil || req.ClearDue {
		due := req.DueDate
		if req.ClearDue {
			due = nil
		}
		if err := s.svc.SetDueDate(ctx, actor, projectID, taskID, due); err != nil {
			respondServiceError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	if err := s.svc.DeleteTask(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "taskID")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type addCommentRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var req addCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	c, err := s.svc.AddComment(r.Context(), actor, chi.URLParam(r, "taskID"), req.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}
