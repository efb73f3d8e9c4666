// Package server provides the HTTP REST API for the match engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/logging"
	"github.com/coderheist/rest.ai-sub000/internal/server/middleware"
	"github.com/coderheist/rest.ai-sub000/internal/server/ratelimit"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchService is the matching API the handlers call.
type MatchService interface {
	CalculateMatch(ctx context.Context, tenantID, jobID, resumeID uuid.UUID) (*types.Match, error)
	CalculateJobMatches(ctx context.Context, tenantID, jobID uuid.UUID) ([]types.Match, error)
	UpdateRankings(ctx context.Context, tenantID, jobID uuid.UUID) (int, error)
	UpdateMatchStatus(ctx context.Context, tenantID, matchID uuid.UUID, status string, reviewer *uuid.UUID, notes string) (*types.Match, error)
	GetMatch(ctx context.Context, tenantID, matchID uuid.UUID) (*types.Match, error)
	GetRankedCandidates(ctx context.Context, tenantID, jobID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error)
	GetResumeMatches(ctx context.Context, tenantID, resumeID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error)
	GetJobStats(ctx context.Context, tenantID, jobID uuid.UUID) (*types.JobStats, error)
	GetTopMatches(ctx context.Context, tenantID uuid.UUID, limit int) ([]types.Match, error)
	SearchMatches(ctx context.Context, tenantID uuid.UUID, filter types.MatchSearchFilter) ([]types.Match, error)
	ToggleShortlist(ctx context.Context, tenantID, matchID, userID uuid.UUID) (*types.Match, error)
	GetShortlisted(ctx context.Context, tenantID uuid.UUID, filter types.ShortlistFilter) ([]types.Match, error)
	AssignInterviewer(ctx context.Context, tenantID, matchID, userID, assignedBy uuid.UUID) (*types.Match, error)
	UnassignInterviewer(ctx context.Context, tenantID, matchID, userID uuid.UUID) (*types.Match, error)
	GetCurrentUsage(ctx context.Context, tenantID uuid.UUID) (*types.Usage, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	matches         MatchService
	jwtService      *JWTService
	rateLimiter     *ratelimit.Limiter
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// Config holds server configuration
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// New creates a new server instance. A nil limiter disables rate limiting.
func New(cfg Config, matches MatchService, jwtService *JWTService, limiter *ratelimit.Limiter, logger *zap.Logger) *Server {
	if limiter == nil {
		limiter = ratelimit.NewLimiter(&ratelimit.Config{Enabled: false})
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	s := &Server{
		matches:         matches,
		jwtService:      jwtService,
		rateLimiter:     limiter,
		logger:          logging.OrNop(logger),
		shutdownTimeout: shutdownTimeout,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout, // calculate-all can run for minutes
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	return s.withRateLimit(s.withLogging(s.withCORS(s.routes())))
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth(h))
	}

	// Scoring
	handle("POST /api/matches/calculate", s.handleCalculateMatch)
	handle("POST /api/matches/job/{jobId}/calculate-all", s.handleCalculateJobMatches)
	handle("POST /api/matches/job/{jobId}/update-rankings", s.handleUpdateRankings)

	// Listings
	handle("GET /api/matches/top", s.handleTopMatches)
	handle("GET /api/matches/search", s.handleSearchMatches)
	handle("GET /api/matches/shortlisted", s.handleShortlisted)
	handle("GET /api/matches/job/{jobId}", s.handleJobMatches)
	handle("GET /api/matches/job/{jobId}/stats", s.handleJobStats)
	handle("GET /api/matches/resume/{resumeId}", s.handleResumeMatches)
	handle("GET /api/matches/{matchId}", s.handleGetMatch)

	// Recruiter workflow
	handle("PATCH /api/matches/{matchId}/status", s.handleUpdateStatus)
	handle("PATCH /api/matches/{matchId}/shortlist", s.handleToggleShortlist)
	handle("POST /api/matches/{matchId}/assign-interviewer", s.handleAssignInterviewer)
	handle("DELETE /api/matches/{matchId}/assign-interviewer/{userId}", s.handleUnassignInterviewer)

	handle("GET /api/usage", s.handleUsage)

	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()

	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID),
		zap.Int("limit", info.Limit),
		zap.Duration("retry_after", info.RetryAfter),
	)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
