package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/gameportal/internal/auth"
	"github.com/Tyrowin/gameportal/internal/chat"
	"github.com/Tyrowin/gameportal/internal/config"
	"github.com/Tyrowin/gameportal/internal/logging"
)

// Gateway upgrades HTTP requests to chat connections and runs their pumps.
// Presence and broadcast decisions belong to the chat.Engine.
type Gateway struct {
	engine         *chat.Engine
	tokens         *auth.TokenManager
	requireToken   bool
	origins        *OriginPolicy
	upgrader       websocket.Upgrader
	maxMessageSize int64
	sendBuffer     int

	wg  sync.WaitGroup
	log zerolog.Logger
}

// NewGateway creates a Gateway feeding engine. tokens may be nil when
// cfg.RequireToken is false.
func NewGateway(engine *chat.Engine, tokens *auth.TokenManager, cfg config.ChatConfig) *Gateway {
	g := &Gateway{
		engine:         engine,
		tokens:         tokens,
		requireToken:   cfg.RequireToken,
		origins:        NewOriginPolicy(cfg.AllowedOrigins),
		maxMessageSize: cfg.MaxMessageSize,
		sendBuffer:     cfg.SendBufferSize,
		log:            logging.With().Str("component", "gateway").Logger(),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.origins.CheckOrigin,
	}
	return g
}

// tokenFromRequest reads the bearer header, falling back to the "token"
// query parameter since browsers cannot set headers on a WebSocket.
func tokenFromRequest(r *http.Request) string {
	if token := auth.BearerToken(r); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// ServeWS handles GET /ws. The router answers other methods with 405.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if g.requireToken {
		if _, err := g.tokens.Verify(tokenFromRequest(r)); err != nil {
			g.log.Info().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Rejected chat upgrade without valid token")
			respondError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := NewClient(uuid.NewString(), conn, g.engine, r.RemoteAddr, g.maxMessageSize, g.sendBuffer, g.log)
	if !client.submit(chat.Event{Kind: chat.EventConnect, ConnID: client.ID(), Conn: client}) {
		client.Close()
		_ = conn.Close()
		return
	}

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		client.writePump()
	}()
	go func() {
		defer g.wg.Done()
		client.readPump()
	}()
}

// Shutdown waits for every connection pump to exit. The engine must already
// be stopping, since that is what closes the connections.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	g.log.Info().Msg("Waiting for chat connections to drain")

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.log.Info().Msg("Chat gateway shutdown completed")
		return nil
	case <-time.After(timeout):
		g.log.Warn().Msg("Chat gateway shutdown timeout reached, some connections may still be open")
		return context.DeadlineExceeded
	}
}
