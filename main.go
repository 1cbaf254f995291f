package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nexuspvr/api"
	"nexuspvr/backend"
	"nexuspvr/backend/xtream"
	"nexuspvr/config"
	"nexuspvr/handlers"
	"nexuspvr/services/guide"
	"nexuspvr/services/recordings"

	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	configPath := os.Getenv("NEXUSPVR_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSizeMB,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAgeDays,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	var b backend.Backend
	if settings.Backend.Configured() {
		client, err := xtream.New(xtream.Config{
			Host:               settings.Backend.Host,
			Username:           settings.Backend.Username,
			Password:           settings.Backend.Password,
			Timeout:            time.Duration(settings.Backend.TimeoutSeconds) * time.Second,
			MaxGuidePages:      settings.Guide.MaxGuidePages,
			ListingConcurrency: settings.Guide.LookupConcurrency,
		})
		if err != nil {
			log.Fatalf("backend setup: %v", err)
		}
		b = client
	} else {
		log.Println("[main] no backend configured; guide endpoints will answer 503 until settings are filled in")
	}

	guideService := guide.NewService(guide.Config{
		LookupConcurrency:  settings.Guide.LookupConcurrency,
		NameMatchThreshold: settings.Guide.NameMatchThreshold,
	})
	recordingsService := recordings.NewService()

	guideHandler := handlers.NewGuideHandler(guideService, b)
	recordingsHandler := handlers.NewRecordingsHandler(recordingsService, b)

	// Kick off the initial load; failures stay visible in guide status and
	// are retryable through POST /api/guide/refresh.
	if b != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := guideService.Load(ctx, b); err != nil {
				log.Printf("[main] initial guide load: %v", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(guideHandler, recordingsHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] nexuspvr listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("[main] shutdown signal received, cleaning up")

	guideService.Invalidate()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] server shutdown: %v", err)
	}
}
