package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/boardsync/internal/identity"
	"github.com/ent0n29/boardsync/internal/realtime"
)

// clientCommand is the only inbound frame shape: navigation commands that
// retarget the per-document listeners.
type clientCommand struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

type errorFrame struct {
	Kind   string `json:"kind"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// handleStream upgrades to a websocket and streams snapshot events for the
// connected user. The set of active listeners follows the resolved identity,
// so a role change or profile deletion re-scopes the stream without a
// reconnect. One writer goroutine owns the connection for writes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if uid == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}

	email := ""
	if u, err := s.st.GetUser(r.Context(), uid); err == nil {
		email = u.Email
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)

	provider := identity.NewProvider()
	resolver := identity.NewResolver(provider, s.st)
	go resolver.Run(ctx)

	manager := realtime.NewManager(s.st, func(ev realtime.Event) {
		select {
		case outbound <- ev:
		default:
			// Keep websocket writes single-threaded; drop if outbound queue
			// is saturated. The next store change re-emits a full snapshot.
			s.metrics.WSMessages.WithLabelValues("outbound", "drop_full").Inc()
		}
	}, s.metrics)
	defer manager.CloseAll()

	identCh, identCancel := resolver.Subscribe()
	defer identCancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ident, ok := <-identCh:
				if !ok {
					return
				}
				manager.Apply(ident)
			}
		}
	}()

	provider.SignIn(identity.Principal{UID: uid, Email: email})
	defer provider.SignOut()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if ev, ok := msg.(realtime.Event); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(ev.Kind)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.streamError(outbound, "invalid_command", err.Error())
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", cmd.Action).Inc()
		switch cmd.Action {
		case "open_project":
			manager.SetProject(cmd.ID)
		case "close_project":
			manager.SetProject("")
		case "open_task":
			manager.SetTask(cmd.ID)
		case "close_task":
			manager.SetTask("")
		default:
			s.streamError(outbound, "unknown_action", "unsupported action: "+cmd.Action)
		}
	}

	cancel()
	<-writerDone
}

func (s *Server) streamError(outbound chan<- any, code, detail string) {
	frame := errorFrame{Kind: "error", Code: code, Detail: detail}
	select {
	case outbound <- frame:
	default:
		s.metrics.WSMessages.WithLabelValues("outbound", "drop_full").Inc()
	}
}
