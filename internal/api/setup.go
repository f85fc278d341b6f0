package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/middleware"
	"github.com/patrickwarner/openbidder/internal/models"
)

// CatalogHandler handles POST /catalog.
func (s *Server) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "catalog"
	const method = "POST"

	var catalog models.CatalogSnapshot
	if err := s.decode(r, &catalog); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.observe(endpoint, method, http.StatusBadRequest, start)
		return
	}

	s.mu.Lock()
	err := s.Engine.HandleCatalog(catalog)
	runID := s.Engine.RunID()
	s.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "products": len(catalog.Products)})
	s.observe(endpoint, method, http.StatusOK, start)
}

// CapacityHandler handles POST /capacity.
func (s *Server) CapacityHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "capacity"
	const method = "POST"

	var info models.CapacityInfo
	if err := s.decode(r, &info); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.observe(endpoint, method, http.StatusBadRequest, start)
		return
	}

	s.mu.Lock()
	err := s.Engine.HandleCapacity(info)
	s.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		middleware.LoggerFromRequest(r, s.Logger).Warn("capacity rejected", zap.Error(err))
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	s.observe(endpoint, method, http.StatusNoContent, start)
}

// FinishHandler handles POST /finish. It ends the current run.
func (s *Server) FinishHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "finish"
	const method = "POST"

	s.mu.Lock()
	ended := s.Engine.Finish(r.Context())
	next := s.Engine.RunID()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]string{"finished": ended, "run_id": next})
	s.observe(endpoint, method, http.StatusOK, start)
}
