package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"authbroker-go/internal/app"
	"authbroker-go/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	log.SetPrefix("authbroker: ")
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env if present; real environments set variables directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Println("Shutdown signal received, initiating graceful shutdown...")
		if err := application.Stop(ctx); err != nil {
			log.Printf("Error during graceful shutdown: %v", err)
		}
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Application failed to start: %v", err)
	}

	<-ctx.Done()
	log.Println("Application has stopped.")
}
