package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nimbus-labs/llmfailover"
	"github.com/nimbus-labs/llmfailover/internal/logging"
	"github.com/nimbus-labs/llmfailover/internal/probelog"
	"github.com/nimbus-labs/llmfailover/internal/version"
	"github.com/nimbus-labs/llmfailover/providers"
)

func runServe(ctx context.Context, cfg llmfailover.Config) error {
	orch, journal, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJournal(journal)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(orch, journal),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("listening", "addr", cfg.Server.Addr, "version", version.Short(),
		"providers", len(cfg.Providers))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// generateResponse is the body of a successful POST /v1/generate.
type generateResponse struct {
	Text string           `json:"text"`
	Meta llmfailover.Meta `json:"meta"`
}

// newRouter builds the HTTP router.
func newRouter(orch *llmfailover.Orchestrator, journal probelog.Recorder) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware)

	r.Post("/v1/generate", func(w http.ResponseWriter, req *http.Request) {
		var genReq providers.Request
		if err := json.NewDecoder(req.Body).Decode(&genReq); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := genReq.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		text, meta := orch.Generate(req.Context(), genReq)
		writeJSON(w, http.StatusOK, generateResponse{Text: text, Meta: meta})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		health := orch.HealthSnapshot()
		status := http.StatusOK
		if health.Status == llmfailover.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/probe", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, orch.ProbeAll(req.Context()))
		})

		r.Get("/journal", func(w http.ResponseWriter, req *http.Request) {
			reader, ok := journal.(interface {
				Recent(ctx context.Context, n int) ([]probelog.Entry, error)
			})
			if !ok {
				writeError(w, http.StatusNotFound, "journal is not configured")
				return
			}
			n, _ := strconv.Atoi(req.URL.Query().Get("n"))
			entries, err := reader.Recent(req.Context(), n)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, entries)
		})
	})

	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version.String()})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
