package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/taogames/ticketrelay"
	"github.com/taogames/ticketrelay/auth"
	"github.com/taogames/ticketrelay/bridge"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, err := newLogger(config.LogLevel, config.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	verifier, err := auth.New(config.AuthMode, []byte(config.JWTSecret), config.JWTIssuer)
	if err != nil {
		return err
	}

	hub := ticketrelay.NewHub(
		ticketrelay.WithHubLogger(logger),
		ticketrelay.WithOutboxSize(config.OutboxSize),
		ticketrelay.WithMaxConnsPerUser(config.MaxConnsPerUser),
	)
	server := ticketrelay.NewServer(verifier,
		ticketrelay.WithHub(hub),
		ticketrelay.WithLogger(logger),
		ticketrelay.WithAuthTimeout(config.AuthTimeout),
		ticketrelay.WithPingInterval(config.PingInterval),
		ticketrelay.WithPingTimeout(config.PingTimeout),
		ticketrelay.WithMaxPayload(config.MaxPayload),
	)
	go server.Accept()
	defer server.Close()

	dispatcher := ticketrelay.NewNotificationDispatcher(hub, logger)

	router := http.NewServeMux()
	router.Handle("/socket.io/", server)
	bridge.New(hub, dispatcher, logger).Register(router)

	httpServer := &http.Server{
		Addr:    config.Addr(),
		Handler: bridge.CORS(config.CORSOrigin)(router),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Socket.IO server running on %s", config.Addr())
		logger.Infof("CORS origin: %s", config.CORSOrigin)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	server.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
