package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/filter"
	"github.com/nordscout/prospector/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for queries and enrichment requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/v1/query", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Prompt string                 `json:"prompt"`
				Prior  *filter.CompiledFilter `json:"prior,omitempty"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Prompt == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
				return
			}

			compiled, result, err := env.Compiler.Compile(req.Context(), body.Prompt, body.Prior)
			if err != nil {
				zap.L().Error("query failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"filter": compiled,
				"result": result,
			})
		})

		// In-flight async batches, drained before the environment closes.
		var batches sync.WaitGroup
		r.Post("/v1/enrich", enrichHandler(ctx, &batches, env.Orchestrator.Run))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("server listening", zap.Int("port", port))
		err = srv.ListenAndServe()

		// Wait for running batches before the deferred env.Close tears down
		// the stores they write to.
		batches.Wait()

		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

// enrichHandler accepts an enrichment request and runs the batch in the
// background, tracking it in inflight so shutdown can drain it.
func enrichHandler(ctx context.Context, inflight *sync.WaitGroup, run func(context.Context, []string, bool) (*model.BatchResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			OrgIDs       []string `json:"org_ids"`
			ForceRefresh bool     `json:"force_refresh"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(body.OrgIDs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "org_ids is required"})
			return
		}

		// Results land in the profile stores and the batches table.
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			result, err := run(ctx, body.OrgIDs, body.ForceRefresh)
			if err != nil {
				zap.L().Error("async enrichment failed", zap.Error(err))
				return
			}
			zap.L().Info("async enrichment complete",
				zap.String("batch_id", result.BatchID),
				zap.Int("enriched", len(result.Enriched)),
				zap.Int("failed", len(result.Failed)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":    "accepted",
			"companies": len(body.OrgIDs),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
