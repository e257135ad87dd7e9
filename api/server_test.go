package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"pick-roll/auth"
	"pick-roll/domain"
	"pick-roll/errors"
	"pick-roll/moderation"
	"pick-roll/observability"
	"pick-roll/privatechat"
	"pick-roll/repositories"
	"pick-roll/search"
	"pick-roll/services"
	"pick-roll/storage"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	moderator, err := moderation.NewModerator([]string{"flop"}, '*', log)
	req.NoError(err)
	filesDir := t.TempDir()

	server := httptest.NewUnstartedServer(nil)
	blobs, err := storage.NewDiskStorage(filesDir, "http://"+server.Listener.Addr().String(), log)
	req.NoError(err)

	store := repositories.NewDocumentRepository(db, log)
	users := repositories.NewUserRepository(store)
	gate := privatechat.NewGate(store, privatechat.NewConversationCache(), log, metrics)

	server.Config.Handler = NewRouter(Dependencies{
		Auth:           services.NewAuthService(users, auth.NewTokenIssuer("test-secret", time.Hour), blobs, log),
		Users:          services.NewUserService(users),
		PublicChat:     services.NewPublicChatService(store, moderator, log, metrics),
		PrivateChat:    privatechat.NewService(gate, store, log, metrics),
		Posts:          services.NewPostService(store, search.NewIndex(writer, log), moderator, log, metrics, 3),
		FilesDir:       filesDir,
		Gatherer:       registry,
		Metrics:        metrics,
		Log:            log,
		MaxUploadBytes: 1 << 20,
	})
	server.Start()
	t.Cleanup(server.Close)
	return server
}

// call sends a JSON request and decodes the JSON answer into out when given.
func call(t *testing.T, server *httptest.Server, method, path, token string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := server.Client().Do(r)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func register(t *testing.T, server *httptest.Server, email string) services.Session {
	t.Helper()
	var session services.Session
	status := call(t, server, http.MethodPost, "/auth/register", "",
		credentials{Email: email, Password: "ComplexPass123!"}, &session)
	require.Equal(t, http.StatusCreated, status)
	return session
}

func TestServer_Account_Flow(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	session := register(t, server, "magic@lakers.com")
	req.NotEmpty(session.Token)

	// Duplicate registration
	status := call(t, server, http.MethodPost, "/auth/register", "",
		credentials{Email: "magic@lakers.com", Password: "ComplexPass123!"}, nil)
	req.Equal(http.StatusConflict, status)

	// Wrong password
	status = call(t, server, http.MethodPost, "/auth/login", "",
		credentials{Email: "magic@lakers.com", Password: "WrongPass123!"}, nil)
	req.Equal(http.StatusUnauthorized, status)

	var login services.Session
	status = call(t, server, http.MethodPost, "/auth/login", "",
		credentials{Email: "magic@lakers.com", Password: "ComplexPass123!"}, &login)
	req.Equal(http.StatusOK, status)

	var me domain.UserData
	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/me", login.Token, nil, &me))
	req.Equal("magic@lakers.com", me.Email)
	req.Equal(domain.RoleUser, me.Role)

	var updated domain.UserData
	status = call(t, server, http.MethodPut, "/me", login.Token,
		domain.ProfileUpdate{DisplayName: "Magic", NBAFavorites: "Lakers"}, &updated)
	req.Equal(http.StatusOK, status)
	req.Equal("Magic", updated.DisplayName)

	var profile domain.UserProfile
	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/users/"+me.ID, login.Token, nil, &profile))
	req.Equal("Lakers", profile.NBAFavorites)
	req.Equal(http.StatusNotFound, call(t, server, http.MethodGet, "/users/ghost", login.Token, nil, nil))

	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPut, "/auth/password", login.Token,
		passwordChange{Password: "weak"}, nil))
	req.Equal(http.StatusNoContent, call(t, server, http.MethodPut, "/auth/password", login.Token,
		passwordChange{Password: "NewComplexPass456!"}, nil))
	req.Equal(http.StatusOK, call(t, server, http.MethodPost, "/auth/login", "",
		credentials{Email: "magic@lakers.com", Password: "NewComplexPass456!"}, nil))
}

func TestServer_Requires_Authentication(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	req.Equal(http.StatusUnauthorized, call(t, server, http.MethodGet, "/me", "", nil, nil))
	req.Equal(http.StatusUnauthorized, call(t, server, http.MethodGet, "/posts", "not-a-token", nil, nil))
	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/healthz", "", nil, nil))
}

func TestServer_Photo_Upload(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	session := register(t, server, "bird@celtics.com")
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

	r, err := http.NewRequest(http.MethodPut, server.URL+"/me/photo", bytes.NewReader(png))
	req.NoError(err)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	resp, err := server.Client().Do(r)
	req.NoError(err)
	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	req.True(strings.HasSuffix(body["photoURL"], "/files/users/"+session.User.ID+"/avatar.png"))

	// The stored file is served back
	resp, err = server.Client().Get(body["photoURL"])
	req.NoError(err)
	served, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	req.NoError(err)
	req.Equal(png, served)
}

func TestServer_Photo_Upload_Too_Large(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	session := register(t, server, "shaq@lakers.com")
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	photo := append(png, make([]byte, 1<<20)...)

	r, err := http.NewRequest(http.MethodPut, server.URL+"/me/photo", bytes.NewReader(photo))
	req.NoError(err)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	resp, err := server.Client().Do(r)
	req.NoError(err)
	_ = resp.Body.Close()

	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Posts(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	author := register(t, server, "curry@warriors.com")
	reader := register(t, server, "lebron@lakers.com")

	for i := 1; i <= 4; i++ {
		var created idResponse
		status := call(t, server, http.MethodPost, "/posts", author.Token,
			postRequest{Title: fmt.Sprintf("Splash %d", i), Content: "Three pointers from the logo"}, &created)
		req.Equal(http.StatusCreated, status)
		req.NotEmpty(created.ID)
		time.Sleep(2 * time.Millisecond)
	}
	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPost, "/posts", author.Token,
		postRequest{Title: "", Content: "no title"}, nil))

	var posts []domain.Post
	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/posts", reader.Token, nil, &posts))
	req.Len(posts, 4)
	req.Equal("Splash 4", posts[0].Title)

	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/posts/latest", reader.Token, nil, &posts))
	req.Len(posts, 3)

	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/posts/mine", reader.Token, nil, &posts))
	req.Empty(posts)

	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/posts/search?q=logo", reader.Token, nil, &posts))
	req.Len(posts, 4)

	req.Equal(http.StatusNotFound, call(t, server, http.MethodPost, "/posts/missing/comments", reader.Token,
		contentRequest{Content: "hello"}, nil))
}

func TestServer_Private_Chat_Over_Websocket(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	kobe := register(t, server, "kobe@lakers.com")
	shaq := register(t, server, "shaq@lakers.com")

	// Given kobe follows the conversation with shaq
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/users/" + shaq.User.ID + "/messages?token=" + kobe.Token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var messages []domain.PrivateMessage
	req.NoError(conn.ReadJSON(&messages))
	req.Empty(messages)

	// When shaq writes to kobe
	var created idResponse
	status := call(t, server, http.MethodPost, "/users/"+kobe.User.ID+"/messages", shaq.Token,
		contentRequest{Content: "Can you dig it?"}, &created)
	req.Equal(http.StatusCreated, status)

	// Then kobe receives the message
	req.NoError(conn.ReadJSON(&messages))
	req.Len(messages, 1)
	req.Equal(created.ID, messages[0].ID)
	req.Equal(shaq.User.ID, messages[0].SenderID)
	req.NotNil(messages[0].CreatedAt)

	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPost, "/users/%20/messages", shaq.Token,
		contentRequest{Content: "nobody"}, nil))
}

func TestServer_Public_Chat_Over_Websocket(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	session := register(t, server, "nash@suns.com")

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat?token=" + session.Token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var messages []domain.ChatMessage
	req.NoError(conn.ReadJSON(&messages))
	req.Empty(messages)

	req.Equal(http.StatusCreated, call(t, server, http.MethodPost, "/chat/messages", session.Token,
		contentRequest{Content: "Seven seconds or less"}, nil))
	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPost, "/chat/messages", session.Token,
		contentRequest{Content: ""}, nil))

	req.NoError(conn.ReadJSON(&messages))
	req.Len(messages, 1)
	req.Equal("nash@suns.com", messages[0].Email)
}

func TestServer_Websocket_Refused_Without_Token(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/chat", nil)

	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/metrics")
	req.NoError(err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(string(body), "pickroll_active_subscriptions")
}

func TestStatusOf(t *testing.T) {
	req := require.New(t)

	req.Equal(http.StatusBadRequest, statusOf(fmt.Errorf("%w: x", errors.ErrInvalidArgument)))
	req.Equal(http.StatusBadRequest, statusOf(errors.ErrIncompleteMessage))
	req.Equal(http.StatusUnauthorized, statusOf(errors.ErrNotAuthenticated))
	req.Equal(http.StatusUnauthorized, statusOf(errors.ErrInvalidCredentials))
	req.Equal(http.StatusForbidden, statusOf(errors.ErrPermissionDenied))
	req.Equal(http.StatusNotFound, statusOf(errors.ErrNotFound))
	req.Equal(http.StatusConflict, statusOf(errors.ErrUserAlreadyExists))
	req.Equal(http.StatusServiceUnavailable, statusOf(fmt.Errorf("%w: %w", errors.ErrBackendUnavailable, context.DeadlineExceeded)))
	req.Equal(http.StatusInternalServerError, statusOf(fmt.Errorf("boom")))
}
