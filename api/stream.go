package api

import (
	"context"
	"net/http"
	"pick-roll/domain"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// subscribeFunc opens a subscription whose snapshots are handed to push.
type subscribeFunc func(ctx context.Context, push func(any)) (func(), error)

// stream serves a websocket carrying full snapshots. The subscription is opened
// before the upgrade so its errors still get an HTTP status. When the client
// is slower than the updates, only the newest snapshot is kept.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, subscribe subscribeFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	latest := make(chan any, 1)
	push := func(v any) {
		for {
			select {
			case latest <- v:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	}

	unsubscribe, err := subscribe(ctx, push)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	s.metrics.Subscriptions.Inc()
	defer s.metrics.Subscriptions.Dec()

	// Clients only send control frames; reading detects the close.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case v := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				s.log.Error("Websocket write failed", "path", r.URL.Path, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) streamCurrentUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := identity(r).UserID
	s.stream(w, r, func(ctx context.Context, push func(any)) (func(), error) {
		return s.auth.SubscribeToUser(ctx, userID, func(data domain.UserData) { push(data) })
	})
}

func (s *Server) streamPublicChat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.stream(w, r, func(ctx context.Context, push func(any)) (func(), error) {
		return s.publicChat.Subscribe(ctx, func(messages []domain.ChatMessage) { push(nonNil(messages)) })
	})
}

func (s *Server) streamPrivateChat(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	userID := identity(r).UserID
	s.stream(w, r, func(ctx context.Context, push func(any)) (func(), error) {
		return s.privateChat.Subscribe(ctx, userID, p.ByName("id"),
			func(messages []domain.PrivateMessage) { push(nonNil(messages)) })
	})
}

func (s *Server) streamComments(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	s.stream(w, r, func(ctx context.Context, push func(any)) (func(), error) {
		return s.posts.SubscribeToComments(ctx, p.ByName("id"),
			func(comments []domain.Comment) { push(nonNil(comments)) })
	})
}

// nonNil makes empty snapshots encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
