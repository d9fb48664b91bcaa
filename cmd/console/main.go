package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edosecure/console/internal/config"
	"github.com/edosecure/console/internal/gateway"
	"github.com/edosecure/console/internal/metrics"
	"github.com/edosecure/console/internal/push"
	"github.com/edosecure/console/internal/session"
	"github.com/edosecure/console/internal/store"
	"github.com/edosecure/console/internal/views"
)

func main() {
	configPath := flag.String("config", "config/console.yaml", "path to config file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "console").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if cfg.API.Username == "" || cfg.API.Password == "" {
		log.Fatal().Msg("api credentials missing (set api.username/api.password or CONSOLE_USERNAME/CONSOLE_PASSWORD)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mx := metrics.NewEngine()
	gw := gateway.NewClient(cfg.API.BaseURL, log.With().Str("component", "gateway").Logger())

	pm := push.NewManager(push.Config{
		URL:         cfg.API.WSURL,
		BackoffBase: cfg.Engine.BackoffBase,
		BackoffMax:  cfg.Engine.BackoffMax,
		TokenFunc:   gw.Token,
	}, log.With().Str("component", "push").Logger())
	pm.OnStateChange = func(st push.State) {
		mx.SetConnected(st == push.Connected)
		if st == push.Connecting {
			mx.Reconnect()
		}
	}
	pm.OnAnomaly = func() { mx.Anomaly("decode") }

	st := store.New(log.With().Str("component", "store").Logger())

	sess := session.New(gw, pm, st, mx, session.Options{
		Username:        cfg.API.Username,
		Password:        cfg.API.Password,
		RefreshInterval: cfg.Engine.RefreshInterval,
	}, log.With().Str("component", "session").Logger())

	config.Watch(ctx, *configPath, log, func(next *config.Config) {
		sess.SetRefreshInterval(next.Engine.RefreshInterval)
	})

	// Status surface for the presentation layer: derived views, liveness,
	// metrics. Renderers stay stateless; everything they need is here.
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: statusRouter(sess, mx),
	}
	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("status api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status api failed")
			cancel()
		}
	}()

	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("session terminated")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("console stopped")
}

func statusRouter(sess *session.Session, mx *metrics.Engine) chi.Router {
	r := chi.NewRouter()

	r.Handle("/metrics", mx.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status":    "ok",
			"connected": sess.Connected(),
		})
	})

	r.Get("/api/views/alerts", func(w http.ResponseWriter, req *http.Request) {
		limit := 0
		if v := req.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		writeJSON(w, views.ActiveAlerts(sess.Snapshot(), limit))
	})

	r.Get("/api/views/map", func(w http.ResponseWriter, req *http.Request) {
		compact := req.URL.Query().Get("compact") == "true"
		writeJSON(w, views.MapLayers(sess.Snapshot(), compact))
	})

	r.Get("/api/views/trends", func(w http.ResponseWriter, req *http.Request) {
		snap := sess.Snapshot()
		writeJSON(w, map[string]interface{}{
			"weekly":        views.WeeklyTrend(snap, time.Now()),
			"byCategory":    views.CategoryBreakdown(snap),
			"bySeverity":    views.SeverityBreakdown(snap),
			"avgConfidence": views.AverageConfidence(snap),
		})
	})

	r.Get("/api/views/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, views.BuildStats(sess.Snapshot()))
	})

	r.Patch("/api/incidents/{id}/acknowledge", func(w http.ResponseWriter, req *http.Request) {
		respondMutation(w, sess.Acknowledge(req.Context(), chi.URLParam(req, "id")))
	})

	r.Patch("/api/incidents/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
		respondMutation(w, sess.Resolve(req.Context(), chi.URLParam(req, "id")))
	})

	return r
}

func respondMutation(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, map[string]string{"result": "ok"})
	case errors.Is(err, store.ErrNotFound):
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		writeJSONStatus(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSONStatus(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
