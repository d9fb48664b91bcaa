package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edosecure/console/internal/gateway"
	"github.com/edosecure/console/internal/metrics"
	"github.com/edosecure/console/internal/model"
	"github.com/edosecure/console/internal/push"
	"github.com/edosecure/console/internal/store"
	"github.com/edosecure/console/internal/tokens"
)

// ErrClosed is returned for commands submitted after the session stopped.
var ErrClosed = errors.New("session closed")

// tokenRenewLead is how long before expiry the session re-logs in.
const tokenRenewLead = time.Minute

// Options for one dashboard session.
type Options struct {
	Username        string
	Password        string
	RefreshInterval time.Duration
}

type command struct {
	action string // "acknowledge" or "resolve"
	id     string
	reply  chan error
}

// Session owns the engine lifecycle: one baseline fetch, then a single event
// loop that applies push events, operator commands, and periodic refreshes
// one at a time. The store is only ever mutated from inside the loop, which
// is the entire concurrency discipline of the core.
type Session struct {
	log   zerolog.Logger
	gw    *gateway.Client
	push  *push.Manager
	store *store.Store
	mx    *metrics.Engine
	opts  Options

	commands  chan command
	intervals chan time.Duration

	closed chan struct{}
	once   sync.Once
}

func New(gw *gateway.Client, pm *push.Manager, st *store.Store, mx *metrics.Engine, opts Options, log zerolog.Logger) *Session {
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = 5 * time.Minute
	}
	return &Session{
		log:       log,
		gw:        gw,
		push:      pm,
		store:     st,
		mx:        mx,
		opts:      opts,
		commands:  make(chan command),
		intervals: make(chan time.Duration, 1),
		closed:    make(chan struct{}),
	}
}

// Snapshot proxies the store's consistent view.
func (s *Session) Snapshot() store.Snapshot {
	return s.store.Snapshot()
}

// Connected reports push channel liveness.
func (s *Session) Connected() bool {
	return s.push.Connected()
}

// Acknowledge submits an optimistic acknowledge for one incident and waits
// for the remote outcome. On remote rejection the local transition has
// already been rolled back by the time this returns.
func (s *Session) Acknowledge(ctx context.Context, incidentID string) error {
	return s.submit(ctx, command{action: "acknowledge", id: incidentID, reply: make(chan error, 1)})
}

// Resolve submits an optimistic resolve for one incident.
func (s *Session) Resolve(ctx context.Context, incidentID string) error {
	return s.submit(ctx, command{action: "resolve", id: incidentID, reply: make(chan error, 1)})
}

// SetRefreshInterval applies a hot-reloaded refresh interval.
func (s *Session) SetRefreshInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case s.intervals <- d:
	default:
	}
}

func (s *Session) submit(ctx context.Context, cmd command) error {
	select {
	case s.commands <- cmd:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run logs in, loads the baseline, starts the push channel, and drives the
// event loop until ctx is cancelled. Returns an error only when the session
// cannot start at all; runtime transport failures are recovered internally.
func (s *Session) Run(ctx context.Context) error {
	defer s.once.Do(func() { close(s.closed) })

	login, err := s.gw.Login(ctx, s.opts.Username, s.opts.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.log.Info().Str("user", login.User.Username).Str("role", login.User.Role).Msg("session authenticated")

	if err := s.loadBaseline(ctx); err != nil {
		return fmt.Errorf("initial baseline: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.push.Run(ctx)
	}()

	s.loop(ctx)
	wg.Wait()
	return ctx.Err()
}

func (s *Session) loop(ctx context.Context) {
	refresh := time.NewTicker(s.opts.RefreshInterval)
	defer refresh.Stop()

	renew := time.NewTimer(s.renewIn())
	defer renew.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-s.push.Events():
			if !ok {
				return
			}
			s.applyPush(evt)

		case cmd := <-s.commands:
			cmd.reply <- s.applyCommand(ctx, cmd)

		case <-refresh.C:
			if err := s.loadBaseline(ctx); err != nil {
				// Transport failures here are never fatal; the next tick
				// retries with whatever state we already hold.
				s.log.Warn().Err(err).Msg("baseline refresh failed")
			}

		case d := <-s.intervals:
			s.opts.RefreshInterval = d
			refresh.Reset(d)
			s.log.Info().Dur("interval", d).Msg("refresh interval updated")

		case <-renew.C:
			if _, err := s.gw.Login(ctx, s.opts.Username, s.opts.Password); err != nil {
				s.log.Warn().Err(err).Msg("token renewal failed, retrying in 30s")
				renew.Reset(30 * time.Second)
			} else {
				renew.Reset(s.renewIn())
			}
		}
	}
}

func (s *Session) applyPush(evt store.PushEvent) {
	err := s.store.Ingest(evt)
	switch {
	case err == nil:
		s.mx.EventIngested()
	case errors.Is(err, store.ErrDuplicate):
		s.mx.DuplicateDropped()
	case errors.Is(err, store.ErrIgnored):
		s.mx.Anomaly("ignored_type")
	default:
		s.log.Warn().Err(err).Msg("push event rejected")
		s.mx.Anomaly("validation")
	}
	s.updateGauges()
}

// applyCommand runs one optimistic mutation to completion: local transition,
// remote PATCH, rollback on rejection. The loop admits no other event while
// this is in flight, so the store never sees reentrant mutation.
func (s *Session) applyCommand(ctx context.Context, cmd command) error {
	var (
		rev    *store.Revert
		status string
		err    error
	)
	switch cmd.action {
	case "acknowledge":
		status = model.StatusAcknowledged
		rev, err = s.store.Acknowledge(cmd.id)
	case "resolve":
		status = model.StatusResolved
		rev, err = s.store.Resolve(cmd.id)
	default:
		return fmt.Errorf("unknown command %q", cmd.action)
	}
	if err != nil {
		s.mx.Anomaly("conflict")
		return err
	}

	if _, err := s.gw.UpdateIncidentStatus(ctx, cmd.id, status); err != nil {
		s.store.Rollback(rev)
		s.mx.Rollback()
		s.updateGauges()
		return fmt.Errorf("remote rejected %s, rolled back: %w", cmd.action, err)
	}
	s.updateGauges()
	return nil
}

// loadBaseline fetches incidents and cameras in parallel and merges them.
func (s *Session) loadBaseline(ctx context.Context) error {
	var (
		wg        sync.WaitGroup
		incidents []model.Incident
		cameras   []model.Camera
		incErr    error
		camErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		incidents, incErr = s.gw.FetchIncidents(ctx)
	}()
	go func() {
		defer wg.Done()
		cameras, camErr = s.gw.FetchCameras(ctx)
	}()
	wg.Wait()

	if incErr != nil {
		return fmt.Errorf("fetch incidents: %w", incErr)
	}
	if camErr != nil {
		return fmt.Errorf("fetch cameras: %w", camErr)
	}

	if err := s.store.LoadBaseline(incidents, cameras); err != nil {
		s.mx.Anomaly("baseline")
		return err
	}
	s.mx.BaselineLoaded()
	s.updateGauges()
	return nil
}

func (s *Session) updateGauges() {
	snap := s.store.Snapshot()
	active := 0
	for _, inc := range snap.Incidents {
		if inc.Status == model.StatusActive {
			active++
		}
	}
	s.mx.SetActiveIncidents(active)
	s.mx.SetAlerts(len(snap.Alerts))
	s.mx.SetConnected(s.push.Connected())
}

func (s *Session) renewIn() time.Duration {
	exp, err := tokens.Expiry(s.gw.Token())
	if err != nil {
		// Opaque token; fall back to a fixed renewal cadence.
		return 15 * time.Minute
	}
	d := time.Until(exp) - tokenRenewLead
	if d < time.Second {
		d = time.Second
	}
	return d
}
