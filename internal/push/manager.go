package push

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/edosecure/console/internal/store"
)

// State of the push channel.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config bounds the reconnect backoff.
type Config struct {
	URL         string
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// TokenFunc supplies the current access token for the ws handshake.
	// Called on every connect attempt so re-logins take effect.
	TokenFunc func() string
}

// Manager owns the one logical push channel. It dials, reads, and redials on
// any failure; inbound frames are decoded into typed events and delivered in
// order on a single-consumer channel. No message is ever retried; a
// transport failure loses at most the in-flight frame, and the store's
// duplicate suppression covers upstream redelivery.
type Manager struct {
	cfg Config
	log zerolog.Logger

	state  atomic.Int32
	events chan store.PushEvent

	// OnStateChange is invoked from the run loop on every transition.
	// Optional; used for the liveness gauge.
	OnStateChange func(State)
	// OnAnomaly is invoked when an inbound frame cannot be decoded. Optional.
	OnAnomaly func()
}

func NewManager(cfg Config, log zerolog.Logger) *Manager {
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		log:    log,
		events: make(chan store.PushEvent, 64),
	}
}

// Events is the typed inbound message stream. Closed when Run returns.
func (m *Manager) Events() <-chan store.PushEvent {
	return m.events
}

// Connected reports channel liveness.
func (m *Manager) Connected() bool {
	return State(m.state.Load()) == Connected
}

// Run dials and reads until ctx is cancelled. Reconnecting is the only
// retried operation in the engine.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.events)
	defer m.setState(Disconnected)

	backoff := m.cfg.BackoffBase
	for {
		if ctx.Err() != nil {
			return
		}

		m.setState(Connecting)
		conn, err := m.dial(ctx)
		if err != nil {
			m.setState(Disconnected)
			m.log.Warn().Err(err).Dur("backoff", backoff).Msg("push channel dial failed")
			if !sleep(ctx, withJitter(backoff)) {
				return
			}
			backoff = nextBackoff(backoff, m.cfg.BackoffMax)
			continue
		}

		m.setState(Connected)
		m.log.Info().Str("url", m.cfg.URL).Msg("push channel connected")
		backoff = m.cfg.BackoffBase

		m.readLoop(ctx, conn)
		conn.Close()
		m.setState(Disconnected)

		if ctx.Err() != nil {
			return
		}
		m.log.Warn().Msg("push channel dropped, scheduling reconnect")
		if !sleep(ctx, withJitter(backoff)) {
			return
		}
		backoff = nextBackoff(backoff, m.cfg.BackoffMax)
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	url := m.cfg.URL
	if m.cfg.TokenFunc != nil {
		if tok := m.cfg.TokenFunc(); tok != "" {
			url += "?token=" + tok
		}
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.log.Debug().Err(err).Msg("push channel read error")
			}
			return
		}

		var evt store.PushEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			m.log.Warn().Err(err).Msg("undecodable push frame dropped")
			if m.OnAnomaly != nil {
				m.OnAnomaly()
			}
			continue
		}

		select {
		case m.events <- evt:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) setState(s State) {
	prev := State(m.state.Swap(int32(s)))
	if prev != s && m.OnStateChange != nil {
		m.OnStateChange(s)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		next = max
	}
	return next
}

// withJitter adds 0-250ms so a fleet of consoles does not redial in lockstep.
func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Intn(250))*time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
