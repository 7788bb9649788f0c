package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vjuliano/audiodrop/internal/app"
)

func main() {
	configPath := flag.String("config", "./config.json", "path to the config file")
	flag.Parse()

	application, err := app.New(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	application.Start()
	defer application.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Printf("")
	log.Printf("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Printf("Server shutdown complete")
}
