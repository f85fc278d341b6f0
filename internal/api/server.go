package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/db"
	"github.com/patrickwarner/openbidder/internal/engine"
	"github.com/patrickwarner/openbidder/internal/observability"
)

// maxBodyBytes bounds report payloads.
const maxBodyBytes = 4 << 20

// Server groups dependencies for HTTP handlers. Every handler that touches
// the engine holds mu, so the host's calls are applied strictly in order.
type Server struct {
	Logger  *zap.Logger
	Engine  *engine.Engine
	Store   *db.RedisStore
	Metrics observability.MetricsRegistry

	mu sync.Mutex
}

// NewServer constructs a Server. store may be nil when mirroring is disabled.
func NewServer(logger *zap.Logger, eng *engine.Engine, store *db.RedisStore, metrics observability.MetricsRegistry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:  logger,
		Engine:  eng,
		Store:   store,
		Metrics: metrics,
	}
}

func (s *Server) observe(endpoint, method string, status int, start time.Time) {
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// decode reads a JSON body into v.
func (s *Server) decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Body.Close(); closeErr != nil {
			s.Logger.Warn("failed to close request body", zap.Error(closeErr))
		}
	}()
	return json.Unmarshal(body, v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("failed to encode response", zap.Error(err))
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidCapacity):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoCatalog),
		errors.Is(err, engine.ErrNoCapacity),
		errors.Is(err, engine.ErrCatalogLoaded),
		errors.Is(err, engine.ErrCapacityLoaded):
		return http.StatusConflict
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
