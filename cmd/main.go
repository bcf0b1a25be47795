package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cinelive/auth"
	"cinelive/infrastructure/ws"
	"cinelive/internal"
	"cinelive/moderation"
	"cinelive/observability"
	"cinelive/repositories"
	"cinelive/runtime"
	"cinelive/runtime/workers"
	"cinelive/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Moderation
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	activityRepository := repositories.NewActivityRepository(db, log, config.LimitMessages)
	userRepository := repositories.NewUserRepository(db, log)
	socialRepository := repositories.NewSocialRepository(db, log, config.FollowerPageSize)

	moderator, err := moderation.NewModerator(internal.WordList(config.CensoredWords), replacement)
	if err != nil {
		return fmt.Errorf("moderator build failed: %w", err)
	}

	// 4. Live core: supervision, monitoring, orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	stats := observability.NewMonitoringManager(log)

	orchestrator := runtime.NewOrchestrator(log, sup, socialRepository, stats, runtime.Timings{
		DeliveryTimeout:   config.DeliveryTimeout,
		DedupWindow:       config.DedupWindow,
		DedupPruneEvery:   config.DedupPruneInterval,
		TypingTTL:         config.TypingTTL,
		IdleTimeout:       config.IdleTimeout,
		ReapEvery:         config.ReaperInterval,
		HeartbeatInterval: config.HeartbeatInterval,
	})

	// 5. Services
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(messageRepository, &moderator, orchestrator, config.MaxContentLength)
	feedService := services.NewFeedService(activityRepository, orchestrator)
	liveService := services.NewLiveService(orchestrator)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator.Start(ctx)

	internal.StartDebugServer(db, config.DebugPort, nil, func() map[string]any {
		snapshot := stats.Snapshot()
		return map[string]any{
			"delivered":     snapshot.Delivered,
			"dropped":       snapshot.Dropped,
			"suppressed":    snapshot.Suppressed,
			"connections":   snapshot.Connections,
			"delivery_rate": fmt.Sprintf("%.1f/s", snapshot.DeliveryRate),
			"alloc_mb":      snapshot.AllocMemMb,
			"rss_mb":        snapshot.RSSBytes / 1024 / 1024,
			"cpu_percent":   fmt.Sprintf("%.1f%%", snapshot.CPUPercent),
		}
	})

	// 7. Gateway
	gateway := ws.NewServer(log, liveService, chatService, feedService,
		authService, socialRepository, tokens, config.ConnectionBufferSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: gateway.Handler()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting gateway", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
