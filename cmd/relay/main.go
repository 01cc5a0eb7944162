package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/api"
	"chat-relay/auth"
	"chat-relay/encryption"
	"chat-relay/gateway"
	"chat-relay/internal"
	"chat-relay/notifications"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires everything and owns the lifecycle, so every defer executes on
// the way out and main stays a thin exit-code adapter.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	auth.SetSigningKey(config.JWTSigningKey)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Runtime & collaborators
	registry := runtime.NewRegistry()
	router := runtime.NewDeliveryRouter(log, registry)

	users := repositories.NewUserRepository(db)
	chats := repositories.NewChatRepository(db)
	messages := repositories.NewMessageRepository(db, log, config.LimitMessages)
	calls := repositories.NewCallRepository(db)

	push := notifications.NewQueue(log, config.PushQueueSize)
	pushWorker := notifications.NewWorker(log, push, notifications.NewLogSender(log))

	messageService := services.NewMessageService(log, chats, messages, registry, router, encryption.NewService(), push)
	callService := services.NewCallService(log, calls, registry, router, push)
	ws := gateway.NewGateway(log, registry, router, users, config.BufferSize)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised workers
	sup := workers.NewSupervisor(log)
	sup.Add(pushWorker)
	go sup.Run(ctx)

	// 6. HTTP server (REST + /ws + /metrics)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: api.NewServer(log, messageService, callService, ws).Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Forced shutdown", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
