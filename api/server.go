package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"pick-roll/auth"
	"pick-roll/contract"
	"pick-roll/domain"
	"pick-roll/errors"
	"pick-roll/observability"
	"pick-roll/services"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxJSONBody = 1 << 20

// PrivateChat sends and follows one-to-one conversations.
type PrivateChat interface {
	SendMessage(ctx context.Context, senderID, receiverID, content string) (string, error)
	Subscribe(ctx context.Context, senderID, receiverID string, onChange func([]domain.PrivateMessage)) (contract.Unsubscribe, error)
}

// Dependencies groups everything the HTTP surface talks to.
type Dependencies struct {
	Auth           services.IAuthService
	Users          services.IUserService
	PublicChat     services.IPublicChatService
	PrivateChat    PrivateChat
	Posts          services.IPostService
	FilesDir       string
	Gatherer       prometheus.Gatherer
	Metrics        *observability.Metrics
	Log            *slog.Logger
	MaxUploadBytes int64
}

type Server struct {
	auth           services.IAuthService
	users          services.IUserService
	publicChat     services.IPublicChatService
	privateChat    PrivateChat
	posts          services.IPostService
	metrics        *observability.Metrics
	log            *slog.Logger
	maxUploadBytes int64
}

// NewRouter registers every route of the API.
func NewRouter(deps Dependencies) http.Handler {
	s := &Server{
		auth:           deps.Auth,
		users:          deps.Users,
		publicChat:     deps.PublicChat,
		privateChat:    deps.PrivateChat,
		posts:          deps.Posts,
		metrics:        deps.Metrics,
		log:            deps.Log,
		maxUploadBytes: deps.MaxUploadBytes,
	}

	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.log.Error("Handler panicked", "method", r.Method, "path", r.URL.Path, "panic", v)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}

	mux.POST("/auth/register", s.logged(s.register))
	mux.POST("/auth/login", s.logged(s.login))
	mux.POST("/auth/logout", s.logged(s.authenticated(s.logout)))
	mux.PUT("/auth/password", s.logged(s.authenticated(s.changePassword)))

	mux.GET("/me", s.logged(s.authenticated(s.currentUser)))
	mux.PUT("/me", s.logged(s.authenticated(s.updateUser)))
	mux.PUT("/me/photo", s.logged(s.authenticated(s.updatePhoto)))
	mux.GET("/ws/me", s.logged(s.authenticated(s.streamCurrentUser)))
	mux.GET("/users/:id", s.logged(s.authenticated(s.profile)))

	mux.POST("/chat/messages", s.logged(s.authenticated(s.sendPublicMessage)))
	mux.GET("/ws/chat", s.logged(s.authenticated(s.streamPublicChat)))
	mux.POST("/users/:id/messages", s.logged(s.authenticated(s.sendPrivateMessage)))
	mux.GET("/ws/users/:id/messages", s.logged(s.authenticated(s.streamPrivateChat)))

	mux.GET("/posts", s.logged(s.authenticated(s.listPosts)))
	mux.GET("/posts/latest", s.logged(s.authenticated(s.latestPosts)))
	mux.GET("/posts/mine", s.logged(s.authenticated(s.myPosts)))
	mux.GET("/posts/search", s.logged(s.authenticated(s.searchPosts)))
	mux.POST("/posts", s.logged(s.authenticated(s.createPost)))
	mux.POST("/posts/:id/comments", s.logged(s.authenticated(s.createComment)))
	mux.GET("/ws/posts/:id/comments", s.logged(s.authenticated(s.streamComments)))

	if deps.FilesDir != "" {
		mux.ServeFiles("/files/*filepath", http.Dir(deps.FilesDir))
	}
	mux.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

func (s *Server) logged(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		start := time.Now()
		h(w, r, p)
		s.log.Debug("Request served", "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start).Round(time.Microsecond))
	}
}

// authenticated rejects requests without a valid bearer token and stores the claims in the context.
func (s *Server) authenticated(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		claims, err := s.auth.Authenticate(auth.BearerToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h(w, r.WithContext(auth.WithClaims(r.Context(), claims)), p)
	}
}

// identity is only called behind authenticated.
func identity(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFrom(r.Context())
	return claims
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errors.ErrInvalidArgument, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: trailing data in body", errors.ErrInvalidArgument)
	}
	_, _ = io.Copy(io.Discard, body)
	return nil
}

type idResponse struct {
	ID string `json:"id"`
}
