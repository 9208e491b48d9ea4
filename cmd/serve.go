package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/judge"
	"github.com/sells-group/callrouter/internal/model"
	"github.com/sells-group/callrouter/internal/router"
	"github.com/sells-group/callrouter/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attribution HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		// The runner is optional: without provider keys the server still
		// routes calls whose spans carry pre-collected judgments.
		var runner *judge.Runner
		if cfg.Anthropic.Key != "" && cfg.OpenAI.Key != "" {
			runner, err = newRunner()
			if err != nil {
				return err
			}
		}

		policy := policyFromConfig()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/route/span", func(w http.ResponseWriter, req *http.Request) {
			var in router.SpanInput
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			writeJSON(w, http.StatusOK, router.RouteSpan(in, policy))
		})

		r.Post("/route/call", func(w http.ResponseWriter, req *http.Request) {
			var call router.CallInput
			if err := json.NewDecoder(req.Body).Decode(&call); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if call.CallID == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "call_id is required"})
				return
			}

			if runner != nil {
				for i := range call.Spans {
					if len(call.Spans[i].Stages) > 0 {
						continue
					}
					pairs, err := runner.Collect(req.Context(), judge.Request{
						CallID:     call.CallID,
						Span:       call.Spans[i].Context,
						Candidates: call.Spans[i].Candidates,
					})
					if err != nil {
						writeJSON(w, http.StatusBadGateway, map[string]string{"error": "judge collection failed"})
						return
					}
					call.Spans[i].Stages = pairs
				}
			}

			outcome := router.RouteCall(call, policy)

			run, err := st.CreateRun(req.Context(), outcome.CallID)
			if err != nil {
				zap.L().Error("create run failed", zap.String("call_id", call.CallID), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "persist failed"})
				return
			}
			if err := st.SaveSpanVerdicts(req.Context(), run.ID, outcome.Verdicts); err != nil {
				zap.L().Error("save verdicts failed", zap.String("run_id", run.ID), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "persist failed"})
				return
			}
			if err := st.UpdateRunResult(req.Context(), run.ID, runResultFrom(outcome)); err != nil {
				zap.L().Error("update run result failed", zap.String("run_id", run.ID), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "persist failed"})
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"run_id":  run.ID,
				"outcome": outcome,
			})
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			filter := store.RunFilter{
				Status: model.RunStatus(req.URL.Query().Get("status")),
				CallID: req.URL.Query().Get("call_id"),
			}
			runs, err := st.ListRuns(req.Context(), filter)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			run, err := st.GetRun(req.Context(), id)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			verdicts, err := st.ListSpanVerdicts(req.Context(), id)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list verdicts failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"run":      run,
				"verdicts": verdicts,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
