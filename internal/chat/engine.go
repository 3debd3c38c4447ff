package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Tyrowin/gameportal/internal/logging"
	"github.com/Tyrowin/gameportal/internal/metrics"
)

// ErrEngineStopped is returned by Submit once Run has returned.
var ErrEngineStopped = errors.New("chat engine stopped")

// Conn is an attached transport connection as seen by the Engine.
type Conn interface {
	// ID returns the unique connection id.
	ID() string
	// Send queues payload without blocking and reports whether it was
	// accepted.
	Send(payload []byte) bool
	// Close releases the connection's outbound queue. The Engine calls it
	// exactly once, after the connection has been detached.
	Close()
}

// Config tunes an Engine.
type Config struct {
	// QueueSize is the capacity of the inbound event queue.
	QueueSize int
	// TimestampFormat is the time layout used for outbound timestamps.
	TimestampFormat string
}

// Engine is the presence and broadcast state machine. One mutex guards the
// attached connections, the Registry and the TypingTracker.
type Engine struct {
	mu       sync.Mutex
	conns    map[string]Conn
	registry *Registry
	typing   *TypingTracker

	events chan Event
	done   chan struct{}

	now      func() time.Time
	tsFormat string
	log      zerolog.Logger
}

// delivery is one outbound frame and the snapshot of its targets.
type delivery struct {
	eventType string
	payload   []byte
	targets   []Conn
}

// NewEngine creates an Engine with empty state. Call Run to start
// processing submitted events.
func NewEngine(cfg Config) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = "15:04:05"
	}
	return &Engine{
		conns:    make(map[string]Conn),
		registry: NewRegistry(),
		typing:   NewTypingTracker(),
		events:   make(chan Event, cfg.QueueSize),
		done:     make(chan struct{}),
		now:      time.Now,
		tsFormat: cfg.TimestampFormat,
		log:      logging.With().Str("component", "chat").Logger(),
	}
}

// Submit queues ev for the dispatch goroutine.
func (e *Engine) Submit(ctx context.Context, ev Event) error {
	select {
	case <-e.done:
		return ErrEngineStopped
	default:
	}

	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies queued events one at a time until ctx is canceled, then
// closes every attached connection.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	e.log.Info().Msg("Chat engine started")
	for {
		select {
		case <-ctx.Done():
			e.closeAll()
			return
		case ev := <-e.events:
			e.Dispatch(ev)
		}
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Dispatch applies a single event. Run is its only caller in production;
// it must not be called concurrently from several goroutines.
func (e *Engine) Dispatch(ev Event) {
	outcome := "handled"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			e.log.Error().
				Str("conn_id", ev.ConnID).
				Str("event", ev.Kind.String()).
				Interface("panic", r).
				Msg("Recovered from panic while dispatching chat event")
		}
		metrics.RecordChatEvent(ev.Kind.String(), outcome)
	}()

	deliveries, closing, handled := e.apply(ev)
	if !handled {
		outcome = "dropped"
		e.log.Debug().
			Str("conn_id", ev.ConnID).
			Str("event", ev.Kind.String()).
			Msg("Dropped chat event from connection without a participant")
		return
	}

	if closing != nil {
		closing.Close()
	}
	for _, d := range deliveries {
		e.fanOut(d)
	}
}

// apply runs the transition for ev under the engine lock and returns the
// frames to deliver once the lock is released.
func (e *Engine) apply(ev Event) ([]delivery, Conn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		metrics.SetChatPresence(len(e.conns), e.registry.Len())
	}()

	switch ev.Kind {
	case EventConnect:
		return e.connect(ev)
	case EventJoin:
		return e.join(ev)
	case EventMessage:
		return e.message(ev)
	case EventTypingStart, EventTypingStop:
		return e.typingChange(ev)
	case EventDisconnect:
		return e.disconnect(ev)
	default:
		return nil, nil, false
	}
}

func (e *Engine) connect(ev Event) ([]delivery, Conn, bool) {
	if ev.Conn == nil || ev.ConnID == "" {
		return nil, nil, false
	}
	e.conns[ev.ConnID] = ev.Conn
	e.log.Info().
		Str("conn_id", ev.ConnID).
		Int("total_connections", len(e.conns)).
		Msg("Chat connection attached")
	return nil, nil, true
}

func (e *Engine) join(ev Event) ([]delivery, Conn, bool) {
	self, ok := e.conns[ev.ConnID]
	if !ok || ev.Join.Username == "" {
		return nil, nil, false
	}

	p := Participant{Username: ev.Join.Username, UserID: ev.Join.UserID}
	e.registry.Register(ev.ConnID, p)
	ts := e.timestamp()

	e.log.Info().
		Str("conn_id", ev.ConnID).
		Str("username", p.Username).
		Int("participants", e.registry.Len()).
		Msg("Participant joined chat")

	return []delivery{
		e.build(TypeUserJoined, Announcement{
			Username:  p.Username,
			Message:   fmt.Sprintf("%s joined the chat", p.Username),
			Timestamp: ts,
		}, e.othersLocked(ev.ConnID)),
		e.build(TypeSystemMessage, SystemMessage{
			Message:   fmt.Sprintf("Welcome to the chat, %s!", p.Username),
			Timestamp: ts,
		}, []Conn{self}),
	}, nil, true
}

func (e *Engine) message(ev Event) ([]delivery, Conn, bool) {
	p, ok := e.registry.Lookup(ev.ConnID)
	if !ok {
		return nil, nil, false
	}
	msg := ChatMessage{
		Username:  p.Username,
		Message:   ev.Text,
		Timestamp: e.timestamp(),
	}
	return []delivery{e.build(TypeChatMessage, msg, e.allLocked())}, nil, true
}

func (e *Engine) typingChange(ev Event) ([]delivery, Conn, bool) {
	p, ok := e.registry.Lookup(ev.ConnID)
	if !ok {
		return nil, nil, false
	}
	if ev.Kind == EventTypingStart {
		e.typing.MarkTyping(p.Username)
	} else {
		e.typing.ClearTyping(p.Username)
	}
	return []delivery{e.build(TypeUserTyping, e.typing.Snapshot(), e.othersLocked(ev.ConnID))}, nil, true
}

func (e *Engine) disconnect(ev Event) ([]delivery, Conn, bool) {
	conn, attached := e.conns[ev.ConnID]
	if attached {
		delete(e.conns, ev.ConnID)
	}

	p, joined := e.registry.Unregister(ev.ConnID)
	if !joined {
		if attached {
			e.log.Info().Str("conn_id", ev.ConnID).Msg("Chat connection detached before joining")
		}
		return nil, conn, attached
	}
	e.typing.ClearTyping(p.Username)

	e.log.Info().
		Str("conn_id", ev.ConnID).
		Str("username", p.Username).
		Int("participants", e.registry.Len()).
		Msg("Participant left chat")

	left := e.build(TypeUserLeft, Announcement{
		Username:  p.Username,
		Message:   fmt.Sprintf("%s left the chat", p.Username),
		Timestamp: e.timestamp(),
	}, e.allLocked())
	return []delivery{left}, conn, true
}

// build encodes one frame. Targets must already be a snapshot.
func (e *Engine) build(eventType string, data any, targets []Conn) delivery {
	payload, err := encodeEnvelope(eventType, data)
	if err != nil {
		e.log.Error().Err(err).Str("event", eventType).Msg("Failed to encode chat frame")
		return delivery{eventType: eventType}
	}
	return delivery{eventType: eventType, payload: payload, targets: targets}
}

func (e *Engine) allLocked() []Conn {
	return lo.Values(e.conns)
}

func (e *Engine) othersLocked(connID string) []Conn {
	return lo.Filter(lo.Values(e.conns), func(c Conn, _ int) bool {
		return c.ID() != connID
	})
}

// fanOut sends d to each target. A failed send is logged and never stops the
// loop.
func (e *Engine) fanOut(d delivery) {
	if d.payload == nil {
		return
	}
	failures := 0
	for _, c := range d.targets {
		if !e.sendTo(c, d) {
			failures++
			e.log.Warn().
				Str("conn_id", c.ID()).
				Str("event", d.eventType).
				Msg("Chat target unreachable; frame dropped")
		}
	}
	metrics.RecordBroadcast(d.eventType, failures)
	e.log.Debug().
		Str("event", d.eventType).
		Int("targets", len(d.targets)).
		Int("failures", failures).
		Msg("Broadcast chat frame")
}

// sendTo delivers one frame, treating a panicking Send as a failed one so the
// other targets still receive it.
func (e *Engine) sendTo(c Conn, d delivery) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("conn_id", c.ID()).
				Str("event", d.eventType).
				Interface("panic", r).
				Msg("Recovered from panic while sending chat frame")
			ok = false
		}
	}()
	return c.Send(d.payload)
}

func (e *Engine) closeAll() {
	e.mu.Lock()
	conns := lo.Values(e.conns)
	e.conns = make(map[string]Conn)
	e.registry = NewRegistry()
	e.typing = NewTypingTracker()
	e.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	metrics.SetChatPresence(0, 0)
	e.log.Info().Int("closed", len(conns)).Msg("Chat engine stopped; closed all connections")
}

func (e *Engine) timestamp() string {
	return e.now().Format(e.tsFormat)
}

// Participants returns a snapshot of the joined participants.
func (e *Engine) Participants() []Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.All()
}

// TypingUsers returns a snapshot of the typing set.
func (e *Engine) TypingUsers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typing.Snapshot()
}

// ConnectionCount returns the number of attached connections, joined or not.
func (e *Engine) ConnectionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}
