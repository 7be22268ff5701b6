package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/server/internal/auth/service"
	"chat-relay/server/internal/chat/hub"
	"chat-relay/server/internal/chat/registry"
	"chat-relay/server/internal/config"
	"chat-relay/server/internal/db"
	"chat-relay/server/internal/security"
	"chat-relay/server/internal/server"
	"chat-relay/server/internal/telemetry"
	teleotel "chat-relay/server/internal/telemetry/otel"
	userrepo "chat-relay/server/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := teleotel.NewProvider(ctx, cfg.OTLPEndpoint, "chat-relay-server")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	emitter := teleotel.NewEventEmitter(provider.LoggerProvider)

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider(
		[]byte(cfg.JWTAccessSecret),
		[]byte(cfg.JWTRefreshSecret),
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)
	authSvc := service.NewAuthService(userrepo.NewPostgresRepository(conn), hasher, tokens)

	h := hub.New(registry.New(), authSvc, emitter)
	go h.RunReporter(ctx, cfg.ReportEvery())

	srv := server.New(cfg.ListenAddr, h)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Give in-flight telemetry emits a chance to land before the exporter
	// flushes and the process exits.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("server stopped")
}
