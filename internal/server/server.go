// Package server exposes the health and metrics HTTP surface named in
// spec.md §6, following the teacher's promhttp + net/http wiring.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/diag"
)

// healthResponse is the JSON shape of spec.md §6's health surface:
// overall status, uptime, and per-dependency reports.
type healthResponse struct {
	Status       diag.Status               `json:"status"`
	UptimeSec    float64                   `json:"uptimeSeconds"`
	Dependencies map[string]dependencyView `json:"dependencies"`
}

type dependencyView struct {
	Status    diag.Status `json:"status"`
	LatencyMS int64       `json:"latencyMs"`
	Error     string      `json:"error,omitempty"`
}

// New builds the HTTP mux serving /healthz and /metrics.
func New(diagnostics *diag.Diagnostics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler(diagnostics))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func healthzHandler(diagnostics *diag.Diagnostics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		reports := diagnostics.Check(ctx)
		deps := make(map[string]dependencyView, len(reports))
		for name, rep := range reports {
			deps[name] = dependencyView{Status: rep.Status, LatencyMS: rep.LatencyMS, Error: rep.Error}
		}

		resp := healthResponse{
			Status:       diag.Overall(reports),
			UptimeSec:    diagnostics.Uptime().Seconds(),
			Dependencies: deps,
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == diag.StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
