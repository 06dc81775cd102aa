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

	"github.com/amarareunion/dismaman-pwa/internal/api"
	"github.com/amarareunion/dismaman-pwa/internal/config"
	"github.com/amarareunion/dismaman-pwa/internal/core"
	"github.com/amarareunion/dismaman-pwa/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize LLM service and the generation engine with its model chain
	llmService := core.NewLLMService()
	defer llmService.Close()

	engine := core.NewEngine(
		llmService,
		config.AppConfig.PrimaryModel,
		config.AppConfig.SecondaryModel,
		time.Duration(config.AppConfig.GenerateTimeoutSeconds)*time.Second,
	)

	// Initialize core services
	questionService := core.NewQuestionService(dbStore, dbStore, engine)
	feedbackService := core.NewFeedbackService(dbStore, dbStore, engine)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, questionService, feedbackService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second, // Adjusted for potentially slower LLM handshakes
		WriteTimeout: 90 * time.Second, // Two model attempts can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received
	log.Println("Shutting down server...")

	// Give active connections time to finish before forcing exit.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
