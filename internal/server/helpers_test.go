package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/gameportal/internal/account"
	"github.com/Tyrowin/gameportal/internal/auth"
	"github.com/Tyrowin/gameportal/internal/catalog"
	"github.com/Tyrowin/gameportal/internal/chat"
	"github.com/Tyrowin/gameportal/internal/config"
	"github.com/Tyrowin/gameportal/internal/storage/sqlite"
)

const testOrigin = "http://localhost:8080"

type testEnv struct {
	server   *httptest.Server
	engine   *chat.Engine
	gateway  *Gateway
	tokens   *auth.TokenManager
	accounts *account.Service
	catalog  *catalog.Service
	stop     context.CancelFunc
}

// newTestEnv wires the full application against a temp SQLite store.
// mutate may adjust the configuration before anything is built.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.Chat.AllowedOrigins = []string{testOrigin}
	cfg.Chat.MaxMessageSize = 512
	cfg.Security.BcryptCost = bcrypt.MinCost
	cfg.Security.AuthRateLimitOff = true
	cfg.Database.Path = filepath.Join(t.TempDir(), "portal.db")
	if mutate != nil {
		mutate(cfg)
	}

	store, err := sqlite.Open(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	require.NoError(t, err)

	accounts := account.NewService(store, cfg.Security.BcryptCost)
	products := catalog.NewService(store)

	engine := chat.NewEngine(chat.Config{
		QueueSize:       cfg.Chat.EventQueueSize,
		TimestampFormat: cfg.Chat.TimestampFormat,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go engine.Run(ctx)

	gateway := NewGateway(engine, tokens, cfg.Chat)
	handlers := NewHandlers(accounts, products, tokens, engine)
	srv := httptest.NewServer(SetupRoutes(handlers, gateway, tokens, cfg.Security))

	env := &testEnv{
		server:   srv,
		engine:   engine,
		gateway:  gateway,
		tokens:   tokens,
		accounts: accounts,
		catalog:  products,
		stop:     cancel,
	}
	t.Cleanup(func() {
		cancel()
		<-engine.Done()
		_ = gateway.Shutdown(2 * time.Second)
		srv.Close()
	})
	return env
}

func (e *testEnv) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// dial opens a chat connection with the given Origin header.
func (e *testEnv) dial(t *testing.T, origin, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(e.wsURL(query), headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func (e *testEnv) connect(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := e.dial(t, testOrigin, "")
	require.NoError(t, err)
	return conn
}

// join connects and joins as username, consuming the welcome frame.
func (e *testEnv) join(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	conn := e.connect(t)
	sendFrame(t, conn, chat.TypeUserJoined, map[string]string{"username": username, "userId": "id-" + username})
	welcome := readFrame(t, conn)
	require.Equal(t, chat.TypeSystemMessage, welcome.Type)
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (f frame) announcement(t *testing.T) chat.Announcement {
	t.Helper()
	var a chat.Announcement
	require.NoError(t, json.Unmarshal(f.Data, &a))
	return a
}

func (f frame) chatMessage(t *testing.T) chat.ChatMessage {
	t.Helper()
	var m chat.ChatMessage
	require.NoError(t, json.Unmarshal(f.Data, &m))
	return m
}

func (f frame) typing(t *testing.T) []string {
	t.Helper()
	var names []string
	require.NoError(t, json.Unmarshal(f.Data, &names))
	return names
}

func sendFrame(t *testing.T, conn *websocket.Conn, eventType string, data any) {
	t.Helper()
	msg := map[string]any{"type": eventType}
	if data != nil {
		msg["data"] = data
	}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

// expectNoFrame asserts nothing arrives within wait. The connection cannot be
// read from afterwards.
func expectNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", raw)
}

// doJSON performs a REST call and decodes the JSON body into out when set.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// tokenFor registers username and returns its token.
func (e *testEnv) tokenFor(t *testing.T, username string) string {
	t.Helper()
	var resp authResponse
	status := e.doJSON(t, http.MethodPost, "/api/auth/register", "",
		account.Credentials{Username: username, Password: "secret1"}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp.Token
}
