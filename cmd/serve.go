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

	"github.com/sells-group/xref-cli/internal/match"
	"github.com/sells-group/xref-cli/internal/model"
	"github.com/sells-group/xref-cli/internal/orchestrator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		cat := initCatalog()
		matcher, err := initMatcher(cat)
		if err != nil {
			return err
		}
		coord, st, err := initCoordinator(ctx, cat)
		if err != nil {
			return err
		}
		defer st.Close()
		defer coord.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/match", handleMatch(matcher))
		r.Post("/api/validate", handleValidateStart(coord))
		r.Get("/api/validate/{sessionID}", handleValidateGet(coord))
		r.Delete("/api/validate/{sessionID}", handleValidateCancel(coord))
		r.Get("/api/sessions", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, coord.Sessions())
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
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func handleMatch(matcher *match.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req match.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.MPN == "" {
			writeError(w, http.StatusBadRequest, "mpn is required")
			return
		}

		recs, err := matcher.Match(r.Context(), req)
		if err != nil {
			zap.L().Error("api match failed", zap.String("mpn", req.MPN), zap.Error(err))
			writeError(w, http.StatusBadGateway, "match failed")
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleValidateStart(coord *orchestrator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ListID string               `json:"listId"`
			Rows   []model.PartsListRow `json:"rows"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ListID == "" || len(req.Rows) == 0 {
			writeError(w, http.StatusBadRequest, "listId and rows are required")
			return
		}

		sess, err := coord.Start(r.Context(), req.ListID, req.Rows)
		if err != nil {
			zap.L().Error("api validate start failed", zap.String("list_id", req.ListID), zap.Error(err))
			writeError(w, http.StatusBadGateway, "validation start failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": sess.ID})
	}
}

func handleValidateGet(coord *orchestrator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := coord.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func handleValidateCancel(coord *orchestrator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := coord.Cancel(chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
