package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/boardsync/internal/config"
	"github.com/ent0n29/boardsync/internal/genai"
	"github.com/ent0n29/boardsync/internal/identity"
	"github.com/ent0n29/boardsync/internal/observability"
	"github.com/ent0n29/boardsync/internal/store"
	"github.com/ent0n29/boardsync/internal/tracker"
)

type Server struct {
	cfg      config.Config
	st       store.Store
	svc      *tracker.Service
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, st store.Store, svc *tracker.Service, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		st:      st,
		svc:     svc,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly
				// opened up; non-browser clients omit Origin and pass.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/users", s.handleSignup)

	r.Post("/v1/projects", s.handleCreateProject)
	r.Delete("/v1/projects/{id}", s.handleDeleteProject)
	r.Put("/v1/projects/{id}/team", s.handleAssignTeam)
	r.Get("/v1/projects/{id}/board", s.handleBoard)

	r.Post("/v1/projects/{id}/tasks", s.handleAddTask)
	r.Post("/v1/projects/{id}/tasks/generate", s.handleGenerateTasks)
	r.Patch("/v1/projects/{id}/tasks/{taskID}", s.handleUpdateTask)
	r.Delete("/v1/projects/{id}/tasks/{taskID}", s.handleDeleteTask)
	r.Post("/v1/projects/{id}/tasks/{taskID}/comments", s.handleAddComment)

	r.Post("/v1/teams", s.handleCreateTeam)
	r.Put("/v1/teams/{id}", s.handleUpdateTeam)
	r.Delete("/v1/teams/{id}", s.handleDeleteTeam)

	r.Post("/v1/messages", s.handleSendMessage)
	r.Post("/v1/messages/read-all", s.handleMarkAllRead)
	r.Post("/v1/messages/{id}/read", s.handleMarkRead)
	r.Delete("/v1/messages/{id}", s.handleDeleteMessage)

	r.Get("/v1/stream", s.handleStream)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// actor resolves the calling principal from the X-User-ID header and joins it
// with the profile store. A missing profile yields an identity without a
// role; permission checks downstream reject what that role cannot do.
func (s *Server) actor(r *http.Request) (identity.Identity, error) {
	uid := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if uid == "" {
		return identity.Identity{}, errors.New("X-User-ID header is required")
	}
	u, err := s.st.GetUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return identity.Identity{UserID: uid}, nil
		}
		return identity.Identity{}, err
	}
	return identity.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(data, out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondServiceError maps tracker errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	var statusErr *genai.StatusError
	switch {
	case errors.Is(err, tracker.ErrPermission), errors.Is(err, tracker.ErrNotRecipient):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tracker.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, tracker.ErrEmptyProject),
		errors.Is(err, tracker.ErrEmptyTeam),
		errors.Is(err, tracker.ErrEmptyMessage),
		errors.Is(err, tracker.ErrEmptyTask),
		errors.Is(err, tracker.ErrEmptyComment),
		errors.Is(err, tracker.ErrEmptyGoal),
		errors.Is(err, tracker.ErrEmptyEmail),
		errors.Is(err, tracker.ErrInvalidStatus),
		errors.Is(err, tracker.ErrInvalidRole):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &statusErr):
		respondError(w, http.StatusBadGateway, "generation_failed", err.Error())
	case errors.Is(err, genai.ErrNoCandidates):
		respondError(w, http.StatusBadGateway, "generation_empty", err.Error())
	case errors.Is(err, genai.ErrBadFormat):
		respondError(w, http.StatusBadGateway, "generation_unparsable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
