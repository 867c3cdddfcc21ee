// Package session manages one full-duplex voice connection over WebSocket.
//
// A Session covers exactly one connection attempt: it dials, runs a receive
// loop that dispatches inbound messages to the registered handlers, and
// accepts outbound audio frames while connected. There is no automatic
// reconnect; when a session reaches a terminal state the caller decides
// whether to build a new one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxwire/internal/observe"
	"github.com/MrWong99/voxwire/internal/wire"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ErrClosed is returned by Connect when the session was closed before the
// connection was established.
var ErrClosed = errors.New("session: closed")

// eventsBuffer holds more state changes than a session can ever emit, so a
// consumer that keeps up never misses one.
const eventsBuffer = 8

// Config carries the dial parameters for a session.
type Config struct {
	// URL is the fully resolved WebSocket endpoint.
	URL string
	// Header is sent with the dial request. Optional.
	Header http.Header
}

// Option configures a Session.
type Option func(*Session)

// WithAudioHandler registers the handler for inbound audio payloads. It runs
// on the receive-loop goroutine and must not block.
func WithAudioHandler(fn func(payload []byte)) Option {
	return func(s *Session) { s.onAudio = fn }
}

// WithTextHandler registers the handler for inbound text fragments. It runs
// on the receive-loop goroutine and must not block.
func WithTextHandler(fn func(fragment string)) Option {
	return func(s *Session) { s.onText = fn }
}

// WithConnectHook registers fn to run synchronously inside Connect, after
// the state reaches connected and before Connect returns. fn receives
// Connect's context. Capture startup is wired here.
func WithConnectHook(fn func(ctx context.Context)) Option {
	return func(s *Session) { s.onConnect = fn }
}

// WithMetrics sets the metrics instance for connection, message and drop
// counters.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one voice connection. Create it with New, establish it with
// Connect and end it with Close. All methods are safe for concurrent use.
type Session struct {
	id      string
	cfg     Config
	metrics *observe.Metrics

	onAudio   func(payload []byte)
	onText    func(fragment string)
	onConnect func(ctx context.Context)

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	disposed    bool
	recvStarted bool
	lastErr     error

	events  chan StateChange
	dropped atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	recvDone  chan struct{}
	closeOnce sync.Once
}

// New creates a Session in StateConnecting.
func New(cfg Config, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		state:    StateConnecting,
		events:   make(chan StateChange, eventsBuffer),
		ctx:      ctx,
		cancel:   cancel,
		recvDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique identifier, used in logs and metrics.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session into StateError, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Events returns the state-change stream. The channel is buffered and never
// closed; receive from it together with your own done signal. Emission never
// blocks the session: changes a full buffer cannot hold are discarded.
func (s *Session) Events() <-chan StateChange {
	return s.events
}

// Dropped reports how many outbound frames Send has discarded.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Connect dials the configured endpoint. On success the session moves to
// StateConnected, the connect hook fires and the receive loop starts. On
// failure the session moves to StateError and the dial error is returned;
// the session is then spent.
func (s *Session) Connect(ctx context.Context) error {
	slog.Info("session: connecting", "session_id", s.id, "url", s.cfg.URL)
	start := time.Now()

	conn, _, err := websocket.Dial(ctx, s.cfg.URL, &websocket.DialOptions{
		HTTPHeader: s.cfg.Header,
	})
	if err != nil {
		dialErr := fmt.Errorf("session: dial %s: %w", s.cfg.URL, err)
		s.apply(eventDialFailed, dialErr)
		return dialErr
	}

	s.mu.Lock()
	to, ok := next(s.state, eventDialOK)
	if !ok {
		s.mu.Unlock()
		// Close won the race, or Connect ran twice; this dial's socket
		// does not belong to the session.
		conn.Close(websocket.StatusNormalClosure, "client shutting down")
		return ErrClosed
	}
	change := StateChange{From: s.state, To: to}
	s.state = to
	s.conn = conn
	s.recvStarted = true
	s.mu.Unlock()
	s.publish(change)

	if s.metrics != nil {
		s.metrics.ConnectDuration.Record(ctx, time.Since(start).Seconds())
	}
	slog.Info("session: connected", "session_id", s.id, "took", time.Since(start))

	go s.receiveLoop()

	if s.onConnect != nil && !s.isDisposed() {
		s.onConnect(ctx)
	}
	return nil
}

// Send writes one already-encoded audio frame to the peer. Outside
// StateConnected the frame is dropped and counted; stale audio is worthless
// live, so nothing is ever buffered or retried. The returned error reports
// write failures only.
func (s *Session) Send(frame []byte) error {
	s.mu.Lock()
	state := s.state
	conn := s.conn
	s.mu.Unlock()

	if state != StateConnected {
		s.dropped.Add(1)
		if s.metrics != nil {
			s.metrics.RecordFrameDropped(context.Background(), "not_connected")
		}
		slog.Debug("session: dropping outbound frame", "session_id", s.id, "state", state, "bytes", len(frame))
		return nil
	}

	if err := conn.Write(s.ctx, websocket.MessageBinary, wire.EncodeOutbound(frame)); err != nil {
		return fmt.Errorf("session: write frame: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordFrameSent(context.Background())
	}
	return nil
}

// Close ends the session and waits for the receive loop to exit, so no
// handler runs after Close returns. Idempotent. A clean local close moves a
// connected session to StateClosed; a session already in StateError keeps
// its error state.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.disposed = true
		conn := s.conn
		started := s.recvStarted
		s.mu.Unlock()

		s.apply(eventLocalClose, nil)
		s.cancel()
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client shutting down")
		}
		if started {
			<-s.recvDone
		}
		slog.Info("session: closed", "session_id", s.id)
	})
	return nil
}

// receiveLoop reads messages in arrival order and dispatches them until the
// connection ends.
func (s *Session) receiveLoop() {
	defer close(s.recvDone)
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.readEnded(err)
			return
		}
		s.dispatch(data)
	}
}

// readEnded translates the read error that terminated the loop into a state
// transition. Local closes already transitioned and are ignored here.
func (s *Session) readEnded(err error) {
	if s.ctx.Err() != nil {
		return
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		slog.Info("session: peer closed connection", "session_id", s.id)
		s.apply(eventPeerClosed, nil)
	default:
		s.apply(eventReadFailed, fmt.Errorf("session: read: %w", err))
	}
}

// dispatch routes one inbound message by its tag. Unknown tags are a no-op
// so the protocol can grow without breaking older clients; empty messages
// carry nothing and are dropped without dispatch.
func (s *Session) dispatch(data []byte) {
	if s.isDisposed() {
		return
	}

	msg, err := wire.DecodeInbound(data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordMessage(context.Background(), "empty")
		}
		return
	}

	switch msg.Tag {
	case wire.TagAudio:
		if s.metrics != nil {
			s.metrics.RecordMessage(context.Background(), "audio")
		}
		if s.onAudio != nil {
			s.onAudio(msg.Payload)
		}
	case wire.TagText:
		if s.metrics != nil {
			s.metrics.RecordMessage(context.Background(), "text")
		}
		if s.onText != nil {
			s.onText(string(msg.Payload))
		}
	default:
		if s.metrics != nil {
			s.metrics.RecordMessage(context.Background(), "unknown")
		}
		slog.Debug("session: ignoring unknown message tag", "session_id", s.id, "tag", msg.Tag)
	}
}

// apply runs one state-machine transition and publishes it. It reports
// whether ev was legal in the current state; illegal events have no effect.
func (s *Session) apply(ev event, cause error) (StateChange, bool) {
	s.mu.Lock()
	to, ok := next(s.state, ev)
	if !ok {
		s.mu.Unlock()
		return StateChange{}, false
	}
	change := StateChange{From: s.state, To: to, Err: cause}
	s.state = to
	if cause != nil && s.lastErr == nil {
		s.lastErr = cause
	}
	s.mu.Unlock()

	if cause != nil {
		slog.Warn("session: entering error state", "session_id", s.id, "error", cause)
	}
	s.publish(change)
	return change, true
}

// publish emits one applied transition to the events stream and metrics.
// Emission never blocks; a change the full buffer cannot hold is dropped.
func (s *Session) publish(change StateChange) {
	select {
	case s.events <- change:
	default:
	}
	if s.metrics != nil {
		s.metrics.RecordStateChange(context.Background(), change.To.String())
	}
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
