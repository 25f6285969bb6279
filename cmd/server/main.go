package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimlens/internal/config"
	"claimlens/internal/handler"
	"claimlens/internal/polling"
	"claimlens/internal/realtime"
	"claimlens/internal/router"
	"claimlens/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Polling side: document status client and orchestrator
	docClient := polling.NewClient(cfg.Polling.BaseURL, cfg.Polling.AuthToken)
	orch := polling.New(docClient, polling.Config{
		Interval:   cfg.Polling.Interval,
		MaxRetries: cfg.Polling.MaxRetries,
	})

	// Realtime side: push channel over WebSocket
	transport := realtime.NewWebSocketTransport(cfg.Realtime.AuthToken)
	channel := realtime.NewChannel(transport, realtime.Config{
		URL:                   cfg.Realtime.URL,
		HeartbeatInterval:     cfg.Realtime.HeartbeatInterval,
		BaseReconnectInterval: cfg.Realtime.BaseReconnectInterval,
		MaxReconnectAttempts:  cfg.Realtime.MaxReconnectAttempts,
		ThrottleWindow:        cfg.Realtime.ThrottleWindow,
		MinBatchInterval:      cfg.Realtime.MinBatchInterval,
	})
	channel.Connect()

	// Services and handlers
	extractionSvc := service.NewExtractionService(orch)

	extractionH := handler.NewExtractionHandler(extractionSvc)
	documentH := handler.NewDocumentHandler(orch)
	realtimeH := handler.NewRealtimeHandler(channel)
	healthH := handler.NewHealthHandler()

	r := router.Setup(cfg.CORS.AllowedOrigins, extractionH, documentH, realtimeH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Printf("received %s, shutting down", sig)
	}

	channel.Disconnect()
	extractionSvc.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
