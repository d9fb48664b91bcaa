package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edosecure/console/internal/model"
)

var (
	// ErrNotFound is returned when a mutation targets an unknown incident id.
	ErrNotFound = errors.New("incident not found")
	// ErrConflict is returned when a mutation would move a status backward.
	ErrConflict = errors.New("status conflict")
	// ErrDuplicate is returned when a push event redelivers a known incident.
	ErrDuplicate = errors.New("duplicate incident")
	// ErrIgnored is returned for push event types the store does not handle.
	ErrIgnored = errors.New("event type ignored")
	// ErrInvalidBatch is returned when a baseline batch fails validation.
	// The batch is all-or-nothing: nothing was applied.
	ErrInvalidBatch = errors.New("invalid baseline batch")
)

// EventNewIncident is the only push event type the store applies.
const EventNewIncident = "new_incident"

// PushEvent is the decoded envelope from the alert channel.
type PushEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Revert captures the state needed to compensate an optimistic transition
// after the remote mutation is rejected.
type Revert struct {
	IncidentID string
	PrevStatus string
	// AlertAcked is the alert's acknowledged flag before the transition.
	AlertAcked bool
	// RemovedAlert holds the alert deleted by Resolve, nil otherwise.
	RemovedAlert *model.Alert
	// RemovedAt is the alert's index before removal, for order-stable restore.
	RemovedAt int
}

// Store is the canonical in-memory collection of incidents, cameras and
// alerts for one dashboard session. All mutations run through the session's
// single event loop; the lock only protects concurrent Snapshot readers.
type Store struct {
	log zerolog.Logger

	mu        sync.RWMutex
	incidents []*model.Incident // most recently observed first
	byID      map[string]*model.Incident
	cameras   []model.Camera
	alerts    []*model.Alert // most recent first, at most one per incident
}

// Snapshot is an immutable view of the store. Slices are fresh copies of
// value types; callers can never observe a mid-mutation state through one.
type Snapshot struct {
	Incidents []model.Incident
	Cameras   []model.Camera
	Alerts    []model.Alert
}

func New(log zerolog.Logger) *Store {
	return &Store{
		log:  log,
		byID: make(map[string]*model.Incident),
	}
}

// LoadBaseline merges a REST-fetched snapshot into the store. Cameras are
// replaced wholesale. Incidents already present keep their in-memory status
// and position: the baseline populates, it never rolls back. Newly observed
// ids enter as one run at the head, keeping the batch's newest-first order;
// they were observed later than anything already held. The batch is
// validated up front and applied all-or-nothing.
func (s *Store) LoadBaseline(incidents []model.Incident, cameras []model.Camera) error {
	for i := range incidents {
		if err := model.ValidateIncident(&incidents[i]); err != nil {
			s.log.Warn().Err(err).Str("id", incidents[i].ID).Msg("baseline rejected, keeping prior state")
			return fmt.Errorf("%w: incident %d: %v", ErrInvalidBatch, i, err)
		}
	}
	for i := range cameras {
		if err := model.ValidateCamera(&cameras[i]); err != nil {
			s.log.Warn().Err(err).Str("id", cameras[i].ID).Msg("baseline rejected, keeping prior state")
			return fmt.Errorf("%w: camera %d: %v", ErrInvalidBatch, i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cameras = append([]model.Camera(nil), cameras...)

	var (
		fresh       []*model.Incident
		freshAlerts []*model.Alert
	)
	for i := range incidents {
		inc := incidents[i]
		if _, ok := s.byID[inc.ID]; ok {
			// Already observed via push or an earlier baseline. The in-memory
			// version is more current; never overwrite backward.
			continue
		}
		p := &inc
		fresh = append(fresh, p)
		s.byID[inc.ID] = p

		if inc.Status == model.StatusActive {
			freshAlerts = append(freshAlerts, &model.Alert{
				ID:         "alert-" + inc.ID,
				IncidentID: inc.ID,
				Message:    inc.Description,
				Severity:   inc.Severity,
				Timestamp:  inc.Timestamp,
			})
		}
	}
	s.incidents = append(fresh, s.incidents...)
	s.alerts = append(freshAlerts, s.alerts...)

	s.log.Info().Int("incidents", len(fresh)).Int("cameras", len(cameras)).Msg("baseline merged")
	return nil
}

// Ingest applies one push event. Unknown event types are ignored with a
// reported anomaly; malformed or duplicate new_incident payloads are dropped
// without touching state. The store never crashes on bad input.
func (s *Store) Ingest(evt PushEvent) error {
	if evt.Type != EventNewIncident {
		s.log.Debug().Str("type", evt.Type).Msg("push event ignored")
		return fmt.Errorf("%w: %q", ErrIgnored, evt.Type)
	}

	var inc model.Incident
	if err := json.Unmarshal(evt.Data, &inc); err != nil {
		return fmt.Errorf("decode new_incident: %w", err)
	}
	if err := model.ValidateIncident(&inc); err != nil {
		return fmt.Errorf("reject new_incident: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[inc.ID]; ok {
		// Redelivery of an id we have already processed. Incidents are never
		// evicted, so byID is the complete suppression record. First write
		// wins, even when the payload differs.
		return fmt.Errorf("%w: %s", ErrDuplicate, inc.ID)
	}

	p := &inc
	s.incidents = append([]*model.Incident{p}, s.incidents...)
	s.byID[inc.ID] = p

	s.alerts = append([]*model.Alert{{
		ID:         "alert-" + uuid.New().String(),
		IncidentID: inc.ID,
		Message:    inc.Description,
		Severity:   inc.Severity,
		Timestamp:  inc.Timestamp,
	}}, s.alerts...)

	return nil
}

// Acknowledge transitions an active incident to acknowledged and flags its
// alert. The transition is optimistic: the returned Revert lets the caller
// roll back if the remote mutation is rejected.
func (s *Store) Acknowledge(incidentID string) (*Revert, error) {
	if strings.TrimSpace(incidentID) == "" {
		panic("store: acknowledge called with empty incident id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.byID[incidentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, incidentID)
	}
	if inc.Status != model.StatusActive {
		return nil, fmt.Errorf("%w: %s is %s, not active", ErrConflict, incidentID, inc.Status)
	}

	rev := &Revert{IncidentID: incidentID, PrevStatus: inc.Status}
	inc.Status = model.StatusAcknowledged

	if a := s.alertFor(incidentID); a != nil {
		rev.AlertAcked = a.Acknowledged
		a.Acknowledged = true
	}
	return rev, nil
}

// Resolve transitions an active or acknowledged incident to resolved and
// removes its alert. Resolving an already resolved incident is a reported
// conflict, never a state change.
func (s *Store) Resolve(incidentID string) (*Revert, error) {
	if strings.TrimSpace(incidentID) == "" {
		panic("store: resolve called with empty incident id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.byID[incidentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, incidentID)
	}
	if inc.Status == model.StatusResolved {
		return nil, fmt.Errorf("%w: %s already resolved", ErrConflict, incidentID)
	}

	rev := &Revert{IncidentID: incidentID, PrevStatus: inc.Status, RemovedAt: -1}
	inc.Status = model.StatusResolved

	for i, a := range s.alerts {
		if a.IncidentID == incidentID {
			cp := *a
			rev.RemovedAlert = &cp
			rev.RemovedAt = i
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			break
		}
	}
	return rev, nil
}

// Rollback compensates an optimistic transition: the incident returns to its
// prior status and a removed alert is restored at its prior position.
func (s *Store) Rollback(rev *Revert) {
	if rev == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.byID[rev.IncidentID]
	if !ok {
		return
	}
	inc.Status = rev.PrevStatus

	if rev.RemovedAlert != nil {
		a := *rev.RemovedAlert
		at := rev.RemovedAt
		if at < 0 || at > len(s.alerts) {
			at = 0
		}
		s.alerts = append(s.alerts[:at], append([]*model.Alert{&a}, s.alerts[at:]...)...)
	} else if a := s.alertFor(rev.IncidentID); a != nil {
		a.Acknowledged = rev.AlertAcked
	}

	s.log.Info().Str("id", rev.IncidentID).Str("status", rev.PrevStatus).Msg("optimistic transition rolled back")
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Incidents: make([]model.Incident, len(s.incidents)),
		Cameras:   append([]model.Camera(nil), s.cameras...),
		Alerts:    make([]model.Alert, len(s.alerts)),
	}
	for i, inc := range s.incidents {
		snap.Incidents[i] = *inc
	}
	for i, a := range s.alerts {
		snap.Alerts[i] = *a
	}
	return snap
}

// alertFor returns the alert referencing an incident, nil if none. Caller
// must hold the lock.
func (s *Store) alertFor(incidentID string) *model.Alert {
	for _, a := range s.alerts {
		if a.IncidentID == incidentID {
			return a
		}
	}
	return nil
}
