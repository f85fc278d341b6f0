package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/patrickwarner/openbidder/internal/middleware"
)

// NewRouter wires every endpoint of s and instruments the result for tracing.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))
	r.HandleFunc("/catalog", s.CatalogHandler).Methods("POST")
	r.HandleFunc("/capacity", s.CapacityHandler).Methods("POST")
	r.HandleFunc("/reports/auction", s.AuctionReportHandler).Methods("POST")
	r.HandleFunc("/reports/result", s.ResultReportHandler).Methods("POST")
	r.HandleFunc("/tick", s.TickHandler).Methods("POST")
	r.HandleFunc("/finish", s.FinishHandler).Methods("POST")

	r.HandleFunc("/segments", s.SegmentsHandler).Methods("GET")
	r.HandleFunc("/admission", s.AdmissionHandler).Methods("GET")
	r.HandleFunc("/competitors", s.CompetitorsHandler).Methods("GET")
	r.HandleFunc("/competitors/{name}", s.CompetitorHandler).Methods("GET")
	r.HandleFunc("/runs/{id}/bids/{period}", s.RunBidsHandler).Methods("GET")

	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "bidder")
}
