package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ent0n29/boardsync/internal/config"
	"github.com/ent0n29/boardsync/internal/genai"
	"github.com/ent0n29/boardsync/internal/httpapi"
	"github.com/ent0n29/boardsync/internal/observability"
	"github.com/ent0n29/boardsync/internal/store"
	"github.com/ent0n29/boardsync/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("store: in-memory (set DATABASE_URL for postgres)")
	} else {
		log.Printf("store: postgres")
	}

	var gen genai.Generator
	if strings.TrimSpace(cfg.GenAPIKey) == "" {
		gen = &genai.Mock{}
		log.Printf("task generation: mock (GENAI_API_KEY not set)")
	} else {
		gen = genai.NewClient(cfg.GenAPIURL, cfg.GenAPIKey, cfg.GenTimeout)
		log.Printf("task generation: remote model")
	}

	svc := tracker.New(st, gen, metrics)

	api := httpapi.New(cfg, st, svc, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
