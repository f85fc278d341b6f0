package api

import (
	"net/http"
	"time"

	"github.com/patrickwarner/openbidder/internal/models"
)

// AuctionReportHandler handles POST /reports/auction.
func (s *Server) AuctionReportHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "reports_auction"
	const method = "POST"

	var report models.AuctionReport
	if err := s.decode(r, &report); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.observe(endpoint, method, http.StatusBadRequest, start)
		return
	}

	s.mu.Lock()
	err := s.Engine.HandleAuctionReport(report)
	s.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	s.observe(endpoint, method, http.StatusAccepted, start)
}

// ResultReportHandler handles POST /reports/result.
func (s *Server) ResultReportHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "reports_result"
	const method = "POST"

	var report models.ResultReport
	if err := s.decode(r, &report); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.observe(endpoint, method, http.StatusBadRequest, start)
		return
	}

	s.mu.Lock()
	err := s.Engine.HandleResultReport(report)
	s.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		s.observe(endpoint, method, status, start)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	s.observe(endpoint, method, http.StatusAccepted, start)
}
