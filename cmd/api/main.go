// Command api serves the UniMind campus mental-health platform over HTTP.
//
// Storage is selected by configuration: with MONGODB_URI set, documents live
// in MongoDB and change broadcasts use the in-process hub; otherwise a single
// Redis connection serves both documents and broadcasts.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unimind/platform/internal/assistant"
	"github.com/unimind/platform/internal/auth"
	"github.com/unimind/platform/internal/config"
	"github.com/unimind/platform/internal/data"
	"github.com/unimind/platform/internal/middleware"
	"github.com/unimind/platform/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	roster := data.NewRosterStore(st)
	msgs := data.NewMessageLog(st)
	marks := data.NewReadMarkers(st, msgs)
	appts := data.NewAppointmentBook(st, roster)
	moods := data.NewMoodLog(st, cfg.MoodLogCap)

	if cfg.AdminPassword != "" {
		if err := roster.EnsureAdmin(ctx, cfg.AdminID, cfg.AdminName, cfg.AdminPassword); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	ai := assistant.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)

	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 5*time.Minute)
	defer limiter.Stop()

	srv := newServer(st, roster, msgs, marks, appts, moods, jwtMgr, ai)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openStore wires the configured backend and returns the store plus a
// cleanup func.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, func(), error) {
	if cfg.MongoURI != "" {
		kv, err := store.NewMongoKV(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		hub := store.NewChangeHub()
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kv.Close(closeCtx)
		}
		return store.New(kv, hub), closeFn, nil
	}

	rs, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return store.New(rs, rs), func() { _ = rs.Close() }, nil
}
