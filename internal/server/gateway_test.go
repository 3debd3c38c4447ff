package server

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gameportal/internal/auth"
	"github.com/Tyrowin/gameportal/internal/chat"
	"github.com/Tyrowin/gameportal/internal/config"
)

func TestChatSessionAliceAndBob(t *testing.T) {
	env := newTestEnv(t, nil)

	alice := env.join(t, "alice")
	bob := env.join(t, "bob")

	joined := readFrame(t, alice)
	require.Equal(t, chat.TypeUserJoined, joined.Type)
	assert.Equal(t, "bob", joined.announcement(t).Username)
	assert.Equal(t, "bob joined the chat", joined.announcement(t).Message)

	sendFrame(t, alice, chat.TypeTypingStart, nil)
	typing := readFrame(t, bob)
	require.Equal(t, chat.TypeUserTyping, typing.Type)
	assert.Equal(t, []string{"alice"}, typing.typing(t))

	sendFrame(t, alice, chat.TypeChatMessage, map[string]string{"message": "hi"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, conn)
		require.Equal(t, chat.TypeChatMessage, f.Type, "presence frames never reach their originator")
		msg := f.chatMessage(t)
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "hi", msg.Message)
		assert.NotEmpty(t, msg.Timestamp)
	}

	require.NoError(t, alice.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	left := readFrame(t, bob)
	require.Equal(t, chat.TypeUserLeft, left.Type)
	assert.Equal(t, "alice left the chat", left.announcement(t).Message)

	carol := env.join(t, "carol")
	require.Equal(t, chat.TypeUserJoined, readFrame(t, bob).Type)

	sendFrame(t, bob, chat.TypeTypingStart, nil)
	snapshot := readFrame(t, carol)
	require.Equal(t, chat.TypeUserTyping, snapshot.Type)
	assert.Equal(t, []string{"bob"}, snapshot.typing(t))
}

func TestMessageBeforeJoinIsDropped(t *testing.T) {
	env := newTestEnv(t, nil)

	watcher := env.join(t, "watcher")
	early := env.connect(t)

	sendFrame(t, early, chat.TypeChatMessage, map[string]string{"message": "too soon"})
	sendFrame(t, early, chat.TypeUserJoined, map[string]string{"username": "late"})

	next := readFrame(t, watcher)
	require.Equal(t, chat.TypeUserJoined, next.Type, "no chat_message may precede the join")
	assert.Equal(t, "late", next.announcement(t).Username)
}

func TestTypingBeforeJoinIsIgnored(t *testing.T) {
	env := newTestEnv(t, nil)

	watcher := env.join(t, "watcher")
	early := env.connect(t)

	sendFrame(t, early, chat.TypeTypingStart, nil)
	expectNoFrame(t, watcher, 300*time.Millisecond)
	assert.Empty(t, env.engine.TypingUsers())
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.join(t, "alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendFrame(t, alice, "shout", map[string]string{"message": "?"})
	sendFrame(t, alice, chat.TypeChatMessage, map[string]string{"message": "still here"})

	f := readFrame(t, alice)
	require.Equal(t, chat.TypeChatMessage, f.Type)
	assert.Equal(t, "still here", f.chatMessage(t).Message)
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	env := newTestEnv(t, nil)
	watcher := env.join(t, "watcher")
	big := env.join(t, "big")
	require.Equal(t, chat.TypeUserJoined, readFrame(t, watcher).Type)

	payload := `{"type":"chat_message","data":{"message":"` + strings.Repeat("x", 1024) + `"}}`
	require.NoError(t, big.WriteMessage(websocket.TextMessage, []byte(payload)))

	left := readFrame(t, watcher)
	require.Equal(t, chat.TypeUserLeft, left.Type)
	assert.Equal(t, "big", left.announcement(t).Username)
}

func TestDuplicateUsernamesArePreserved(t *testing.T) {
	env := newTestEnv(t, nil)
	env.join(t, "sam")
	env.join(t, "sam")

	require.Eventually(t, func() bool {
		return len(env.engine.Participants()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUpgradeRejectsDisallowedOrigin(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, origin := range []string{"http://evil.example", ""} {
		_, resp, err := env.dial(t, origin, "")
		require.ErrorIs(t, err, websocket.ErrBadHandshake, "origin %q", origin)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestUpgradeRequiresTokenWhenConfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Chat.RequireToken = true
	})

	_, resp, err := env.dial(t, testOrigin, "")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = env.dial(t, testOrigin, "token=garbage")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := env.tokens.Issue(auth.Identity{ID: "u-1", Username: "alice", Role: auth.RoleUser})
	require.NoError(t, err)
	conn, _, err := env.dial(t, testOrigin, "token="+url.QueryEscape(token))
	require.NoError(t, err)

	sendFrame(t, conn, chat.TypeUserJoined, map[string]string{"username": "alice"})
	assert.Equal(t, chat.TypeSystemMessage, readFrame(t, conn).Type)
}

func TestWebSocketEndpointRejectsOtherMethods(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req, err := http.NewRequest(method, env.server.URL+"/ws", http.NoBody)
		require.NoError(t, err)
		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, method)
		assert.Contains(t, resp.Header.Values("Allow"), http.MethodGet, method)
	}
}

func TestEngineStopClosesConnections(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.join(t, "alice")

	env.stop()
	<-env.engine.Done()

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := alice.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure),
		"expected close frame, got %v", err)

	assert.NoError(t, env.gateway.Shutdown(2*time.Second))
}
