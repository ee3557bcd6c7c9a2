package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/erauner12/condoboard/internal/db"
	"github.com/erauner12/condoboard/internal/httpapi"
	"github.com/erauner12/condoboard/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "condoboard-api").Logger()

	// Pretty logging for local dev
	if env("ENV", "dev") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	st := openStore(ctx)
	defer st.Close()

	if err := seedOwner(ctx, st, env("SEED_OWNER_EMAIL", ""), env("SEED_OWNER_PASSWORD", "")); err != nil {
		log.Fatal().Err(err).Msg("failed to seed owner account")
	}

	jwtCfg := auth.JWTCfg{
		HS256Secret: env("JWT_HS256_SECRET", "dev-secret-change-in-production"),
		Issuer:      env("JWT_ISSUER", "condoboard"),
	}
	if ttl, err := time.ParseDuration(env("JWT_TTL", "")); err == nil {
		jwtCfg.TTL = ttl
	}

	srv := httpapi.NewServer(st, jwtCfg, env("API_KEY", "dev-anon-key"))
	if origins := env("ALLOWED_ORIGINS", ""); origins != "" {
		srv.AllowedOrigins = strings.Split(origins, ",")
	}
	if n, err := strconv.Atoi(env("RATE_LIMIT_PER_MINUTE", "")); err == nil && n > 0 {
		srv.RateLimitConfig.MaxRequests = n
	}

	httpAddr := env("HTTP_ADDR", ":8081")
	httpServer := &http.Server{
		Addr:        httpAddr,
		Handler:     srv.Routes(),
		ReadTimeout: 15 * time.Second,
		// no write timeout: the change stream is a long-lived response
		IdleTimeout: 120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", httpAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	// Event streams never finish on their own
	srv.Events.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}

// openStore uses Postgres when DATABASE_URL is set and memory otherwise
func openStore(ctx context.Context) store.Store {
	pgURL := env("DATABASE_URL", "")
	if pgURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return store.NewMemory()
	}

	pc := poolConfig(env("DB_MAX_CONNS", ""))
	if err := db.Migrate(pgURL); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	pool, err := db.Open(ctx, pgURL, pc)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	return store.NewPostgres(pool)
}

// poolConfig reads the pool size; anything but a positive int32 keeps the
// driver default
func poolConfig(maxConns string) db.PoolConfig {
	var pc db.PoolConfig
	if maxConns == "" {
		return pc
	}
	n, err := strconv.ParseInt(maxConns, 10, 32)
	if err != nil || n <= 0 {
		log.Warn().Str("DB_MAX_CONNS", maxConns).Msg("ignoring invalid pool size")
		return pc
	}
	pc.MaxConns = int32(n)
	return pc
}
