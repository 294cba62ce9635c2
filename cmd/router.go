package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/static-server/internal/metrics"
	"github.com/angeloszaimis/static-server/internal/workerpool"
)

type healthResponse struct {
	Status  string `json:"status"`
	Workers int    `json:"workers"`
	Active  int    `json:"active"`
	Pending int    `json:"pending"`
}

func setupRouter(collector *metrics.Collector, pool *workerpool.Pool, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", metrics.PrometheusHandler(gatherer))
	mux.HandleFunc("GET /stats", collector.Handler())
	mux.HandleFunc("GET /health", healthHandler(pool))

	return mux
}

func healthHandler(pool *workerpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{
			Status:  "ok",
			Workers: pool.Size(),
			Active:  pool.Active(),
			Pending: pool.Pending(),
		})
	}
}
