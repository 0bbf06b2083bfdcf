package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"ipcscope/internal/config"
	"ipcscope/internal/server"
)

func main() {
	cfg := config.LoadOrDefault()

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
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
			log.Printf("error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("server error: %v", err)
	}
}
