package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/luminos-ui/shellhost/internal/infrastructure/config"
	"github.com/luminos-ui/shellhost/internal/infrastructure/server"
)

func main() {
	port := flag.String("port", "", "control API port (overrides SHELLHOST_PORT)")
	hostAddr := flag.String("host-addr", "", "execution host gRPC address (overrides SHELLHOST_HOST_ADDR)")
	profileDir := flag.String("profiles", "", "layout profile directory (overrides SHELLHOST_PROFILE_DIR)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *hostAddr != "" {
		cfg.HostLink.Address = *hostAddr
	}
	if *profileDir != "" {
		cfg.Surfaces.ProfileDir = *profileDir
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		if err := srv.Close(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("server error: %v", err)
	}
}
