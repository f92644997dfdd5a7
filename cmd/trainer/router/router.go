// Package router configures HTTP routes for the trainer's HTTP API.
//
// The trainer exposes an HTTP server on port 8082 (configurable) that serves
// the latest training report, health checks, and Prometheus metrics.
//
// Routes configured:
//   - GET /report/latest?dataset=<name> - Retrieve latest training report
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Reports older than the stale threshold include an X-Millwright-Stale
// header so dashboards can flag runs that have stopped refreshing.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/millwright/pkg/httpx"
	"github.com/HatiCode/millwright/pkg/storage"
)

var datasetNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SetupRoutes configures HTTP endpoints for the trainer.
func SetupRoutes(store storage.Store, staleAfter time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())

	mux.HandleFunc("/report/latest", handleGetReport(store, staleAfter, logger))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetReport returns a handler for GET /report/latest?dataset=<name>.
func handleGetReport(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dataset := r.URL.Query().Get("dataset")
		if dataset == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "dataset parameter required")
			return
		}

		if !datasetNameRegex.MatchString(dataset) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid dataset name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		report, found, err := store.GetLatest(ctx, dataset)
		if err != nil {
			logger.Error("failed to get report", "dataset", dataset, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("report not found for dataset %q", dataset))
			return
		}

		if staleAfter > 0 && time.Since(report.GeneratedAt) > staleAfter {
			w.Header().Set("X-Millwright-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, report); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
