package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/middleware"
	"github.com/patrickwarner/openbidder/internal/models"
)

// TickHandler handles POST /tick and returns the bid set for the period.
func (s *Server) TickHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "tick"
	const method = "POST"

	s.mu.Lock()
	sub, err := s.Engine.Tick(r.Context())
	s.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	s.writeJSON(w, http.StatusOK, sub)
	s.observe(endpoint, method, http.StatusOK, start)
}

// SegmentsHandler handles GET /segments.
func (s *Server) SegmentsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "segments"
	const method = "GET"

	s.mu.Lock()
	snaps, err := s.Engine.Segments()
	s.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	s.writeJSON(w, http.StatusOK, snaps)
	s.observe(endpoint, method, http.StatusOK, start)
}

// AdmissionHandler handles GET /admission.
func (s *Server) AdmissionHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "admission"
	const method = "GET"

	s.mu.Lock()
	adm, err := s.Engine.Admission()
	s.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	s.writeJSON(w, http.StatusOK, adm)
	s.observe(endpoint, method, http.StatusOK, start)
}

// CompetitorsHandler handles GET /competitors.
func (s *Server) CompetitorsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "competitors"
	const method = "GET"

	s.mu.Lock()
	names := s.Engine.Competitors()
	s.mu.Unlock()
	if names == nil {
		names = []string{}
	}

	s.writeJSON(w, http.StatusOK, names)
	s.observe(endpoint, method, http.StatusOK, start)
}

// CompetitorHandler handles GET /competitors/{name}.
func (s *Server) CompetitorHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "competitor"
	const method = "GET"

	name := mux.Vars(r)["name"]
	s.mu.Lock()
	view, ok := s.Engine.Competitor(name)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown competitor", http.StatusNotFound)
		s.observe(endpoint, method, http.StatusNotFound, start)
		return
	}

	s.writeJSON(w, http.StatusOK, view)
	s.observe(endpoint, method, http.StatusOK, start)
}

// RunBidsHandler handles GET /runs/{id}/bids/{period} where period may be
// "latest". It reads from the run mirror, so it also serves runs of other
// bidder processes sharing the same Redis.
func (s *Server) RunBidsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "run_bids"
	const method = "GET"

	if s.Store == nil {
		http.Error(w, "run mirror disabled", http.StatusServiceUnavailable)
		s.observe(endpoint, method, http.StatusServiceUnavailable, start)
		return
	}

	vars := mux.Vars(r)
	runID, period := vars["id"], vars["period"]

	var (
		sub models.BidSubmission
		err error
	)
	if period == "latest" {
		sub, err = s.Store.Latest(r.Context(), runID)
	} else {
		p, convErr := strconv.Atoi(period)
		if convErr != nil || p < 0 {
			http.Error(w, "invalid period", http.StatusBadRequest)
			s.observe(endpoint, method, http.StatusBadRequest, start)
			return
		}
		sub, err = s.Store.Submission(r.Context(), runID, p)
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			middleware.LoggerFromRequest(r, s.Logger).Error("read run mirror", zap.String("run_id", runID), zap.Error(err))
		}
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	s.writeJSON(w, http.StatusOK, sub)
	s.observe(endpoint, method, http.StatusOK, start)
}
