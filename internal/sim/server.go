package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/edosecure/console/internal/auth"
	"github.com/edosecure/console/internal/model"
	"github.com/edosecure/console/internal/tokens"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type demoUser struct {
	user model.User
	hash string
}

// Server is a dev-grade stand-in for the incident platform backend: the REST
// endpoints, the alert websocket, demo seed data, and a background incident
// generator. It exists so the console can be run and tested end to end
// without the real upstream.
type Server struct {
	log    zerolog.Logger
	tokens *tokens.Manager
	hub    *Hub
	rng    *rand.Rand

	mu        sync.RWMutex
	incidents []model.Incident // newest first
	cameras   []model.Camera
	users     map[string]demoUser
	nextID    int
}

func NewServer(signingKey string, seed int64, log zerolog.Logger) (*Server, error) {
	rng := rand.New(rand.NewSource(seed))
	s := &Server{
		log:    log,
		tokens: tokens.NewManager(signingKey),
		hub:    NewHub(log),
		rng:    rng,
		users:  make(map[string]demoUser),
	}

	for _, u := range []struct{ username, password, role, name string }{
		{"admin", "admin123", "admin", "Admin User"},
		{"operator", "operator123", "operator", "Security Operator"},
	} {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.username, err)
		}
		s.users[u.username] = demoUser{
			user: model.User{ID: uuid.New().String(), Username: u.username, Role: u.role, Name: u.name},
			hash: hash,
		}
	}

	now := time.Now()
	s.cameras = seedCameras(rng)
	s.incidents = seedIncidents(rng, now)
	sort.SliceStable(s.incidents, func(i, j int) bool {
		return s.incidents[i].Timestamp > s.incidents[j].Timestamp
	})
	s.nextID = len(s.incidents) + 1

	return s, nil
}

// Router builds the REST + websocket surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger(s.log))
	r.Use(cors)

	r.Post("/api/auth/login", s.handleLogin)
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/incidents", s.handleListIncidents)
	r.Patch("/api/incidents/{id}", s.handlePatchIncident)
	r.Get("/api/cameras", s.handleListCameras)
	r.Get("/ws/alerts", s.handleAlertsWS)

	return r
}

// RunGenerator emits a new incident every 45-120s and broadcasts it, the
// same cadence the original demo backend used.
func (s *Server) RunGenerator(ctx context.Context) {
	for {
		wait := time.Duration(45+s.rng.Intn(76)) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		inc := s.generateIncident()
		s.hub.Broadcast(map[string]interface{}{
			"type": "new_incident",
			"data": inc,
		})
		s.log.Info().Str("id", inc.ID).Str("severity", inc.Severity).Msg("simulated incident broadcast")
	}
}

func (s *Server) generateIncident() model.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()

	spot := hotspots[s.rng.Intn(len(hotspots))]
	itype := incidentTypes[s.rng.Intn(len(incidentTypes))]
	inc := model.Incident{
		ID:          strconv.Itoa(s.nextID),
		Type:        itype,
		Severity:    weightedSeverity(s.rng),
		Location:    spot.name,
		Latitude:    spot.lat + (s.rng.Float64()-0.5)*0.02,
		Longitude:   spot.lng + (s.rng.Float64()-0.5)*0.02,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Description: describe(itype, spot.name),
		Confidence:  0.70 + s.rng.Float64()*0.28,
		CameraID:    fmt.Sprintf("CAM-%03d", 1+s.rng.Intn(len(s.cameras))),
		Status:      model.StatusActive,
	}
	s.nextID++
	s.incidents = append([]model.Incident{inc}, s.incidents...)
	return inc
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	u, ok := s.users[req.Username]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	match, err := auth.CheckPassword(req.Password, u.hash)
	if err != nil || !match {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.tokens.GenerateAccessToken(u.user.ID, u.user.Username, u.user.Role)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"user":         u.user,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "edosecure-sim"})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	severity := r.URL.Query().Get("severity")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Incident, 0, limit)
	for _, inc := range s.incidents {
		if status != "" && inc.Status != status {
			continue
		}
		if severity != "" && inc.Severity != severity {
			continue
		}
		out = append(out, inc)
		if len(out) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePatchIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Status != "" && !model.ValidStatus(req.Status) {
		writeDetail(w, http.StatusUnprocessableEntity, "unknown status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.incidents {
		if s.incidents[i].ID == id {
			if req.Status != "" {
				s.incidents[i].Status = req.Status
			}
			writeJSON(w, http.StatusOK, s.incidents[i])
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Incident not found")
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cams := append([]model.Camera(nil), s.cameras...)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, cams)
}

func (s *Server) handleAlertsWS(w http.ResponseWriter, r *http.Request) {
	if tok := r.URL.Query().Get("token"); tok != "" {
		if _, err := s.tokens.ValidateToken(tok); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	s.hub.Add(conn)
	s.log.Info().Str("remote", r.RemoteAddr).Msg("alert subscriber connected")

	// Drain until the client goes away; inbound frames are not part of the
	// contract and are discarded.
	go func() {
		defer s.hub.Remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Subscribers reports the current websocket fan-out size.
func (s *Server) Subscribers() int {
	return s.hub.Count()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := uuid.New().String()
			start := time.Now()
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r)
			log.Debug().
				Str("req_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
