package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LaxmiPrasanna-6/Lan-Chat-Application/internal/chatlog"
	"github.com/LaxmiPrasanna-6/Lan-Chat-Application/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting LAN Chat server...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	recorder, err := chatlog.NewFileRecorder(config.LogDir)
	if err != nil {
		log.Fatalf("Failed to open chat log directory: %v", err)
	}

	chatServer := server.NewServer(recorder)
	httpServer := server.CreateServer(config.HTTPPort, server.SetupRoutes(chatServer))

	go func() {
		if err := chatServer.ListenAndServe(); err != nil {
			log.Fatalf("Chat listener failed: %v", err)
		}
	}()
	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("Shutdown signal received")
	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := chatServer.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Chat shutdown: %v", err)
	}
}
