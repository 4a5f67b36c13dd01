package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/wsrelay/internal/registry"
	"github.com/Tyrowin/wsrelay/internal/server"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	host := flag.String("host", "", "address to bind (overrides HOST)")
	port := flag.Int("port", 0, "port to listen on (overrides PORT)")
	flag.Parse()

	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	hub := server.NewHub(*cfg, registry.New(log), log)
	httpServer := server.CreateServer(cfg.Address(), hub.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Relay listening", "address", cfg.Address(), "identity", cfg.IdentityMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully")
	case err := <-errChan:
		return err
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil {
		return err
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	log.Info("Relay stopped cleanly")
	return nil
}
