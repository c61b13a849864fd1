package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rash-identifier/internal/analysis"
	"rash-identifier/internal/api"
	"rash-identifier/internal/config"
	"rash-identifier/internal/db"
	"rash-identifier/internal/inference"
	"rash-identifier/internal/services"
)

func main() {
	cfg := config.Load()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	historyService := services.NewHistoryService(conn)

	client := inference.New(cfg)
	if _, ok := client.(inference.Unavailable); ok {
		log.Printf("no API key for provider %q, analysis requests will fail", client.Name())
	}
	analyzer := analysis.NewOrchestrator(client,
		analysis.WithTimeout(cfg.AnalysisTimeout),
		analysis.WithRecorder(historyService),
	)

	seed := analysis.LoadSeed(cfg.DefaultImage)
	if seed.Err != nil {
		log.Printf("default image unavailable: %v", seed.Err)
	}
	sessions := analysis.NewManager(seed, cfg.MaxSessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.RunSweeper(ctx, time.Minute, cfg.SessionIdleTTL)

	server := api.NewServer(sessions, analyzer, historyService)
	mux := http.NewServeMux()

	imagesFS := http.FileServer(http.Dir(filepath.Join(cfg.WebDir, "images")))
	mux.Handle("/images/", http.StripPrefix("/images/", imagesFS))

	mux.HandleFunc("/", serveFile(filepath.Join(cfg.WebDir, "index.html")))
	mux.Handle("/api/", server.Handler())

	log.Printf("listening on :%s (provider %s, model %s)", cfg.Port, analyzer.Provider(), analyzer.Model())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AnalysisTimeout + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

func serveFile(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.ServeFile(w, r, path)
	}
}
