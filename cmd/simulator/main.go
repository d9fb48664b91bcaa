package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/edosecure/console/internal/sim"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	seed := flag.Int64("seed", time.Now().UnixNano(), "demo data seed")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "simulator").Logger()

	signingKey := os.Getenv("SIM_JWT_SIGNING_KEY")
	if signingKey == "" {
		signingKey = "dev-secret-do-not-use-in-prod"
	}

	server, err := sim.NewServer(signingKey, *seed, log)
	if err != nil {
		log.Fatal().Err(err).Msg("simulator init failed")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go server.RunGenerator(ctx)

	srv := &http.Server{Addr: *addr, Handler: server.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", *addr).Msg("simulator listening (users: admin/admin123, operator/operator123)")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("simulator failed")
	}
	log.Info().Msg("simulator stopped")
}
