package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/coderheist/rest.ai-sub000/internal/server/middleware"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// envelope is the success response shape of the /api routes.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) ok(w http.ResponseWriter, status int, data any, message string) {
	s.jsonResponse(w, status, envelope{Success: true, Data: data, Message: message})
}

func (s *Server) list(w http.ResponseWriter, matches []types.Match) {
	if matches == nil {
		matches = []types.Match{}
	}
	count := len(matches)
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: matches, Count: &count})
}

// fail writes err with the status chosen by HTTPStatus. Internal errors are
// logged and hidden from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		s.errorResponse(w, status, "Internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// principal returns the tenant and user of the authenticated request.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (tenantID, userID uuid.UUID, ok bool) {
	tenantID, err := middleware.GetTenantID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	userID, _ = middleware.GetUserID(r)
	return tenantID, userID, true
}

// pathUUID parses a UUID path value.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &ErrInvalidID{Param: name, Value: raw}
	}
	return id, nil
}

// queryUUID parses an optional UUID query parameter.
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &ErrInvalidID{Param: name, Value: raw}
	}
	return &id, nil
}

// parseQueryInt parses a non-negative integer query parameter. Missing or
// malformed values yield defaultValue; maxValue caps the result when positive.
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// parseOptionalQueryInt is parseQueryInt for a bound that has no default:
// it returns nil when the parameter is absent or invalid.
func parseOptionalQueryInt(r *http.Request, key string, maxValue int) *int {
	if r.URL.Query().Get(key) == "" {
		return nil
	}
	val := parseQueryInt(r, key, -1, maxValue)
	if val < 0 {
		return nil
	}
	return &val
}

// decodeBody decodes a JSON body into dst and runs its validator.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &ErrBadRequest{Message: "Invalid request body"}
	}
	return dst.Validate()
}

// handleCalculateMatch scores one resume against one job
func (s *Server) handleCalculateMatch(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req types.CalculateMatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	match, err := s.matches.CalculateMatch(r.Context(), tenantID, uuid.MustParse(req.JobID), uuid.MustParse(req.ResumeID))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusCreated, match, "")
}

// handleCalculateJobMatches scores every completed resume of a job
func (s *Server) handleCalculateJobMatches(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	jobID, err := pathUUID(r, "jobId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	matches, err := s.matches.CalculateJobMatches(r.Context(), tenantID, jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.list(w, matches)
}

// handleUpdateRankings recomputes the ranks of a job's matches
func (s *Server) handleUpdateRankings(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	jobID, err := pathUUID(r, "jobId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	n, err := s.matches.UpdateRankings(r.Context(), tenantID, jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusOK, nil, fmt.Sprintf("Updated rankings for %d candidates", n))
}

// handleTopMatches lists the tenant's best completed matches
func (s *Server) handleTopMatches(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}

	matches, err := s.matches.GetTopMatches(r.Context(), tenantID, parseQueryInt(r, "limit", 0, 0))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.list(w, matches)
}

// handleSearchMatches runs a filtered tenant-wide search
func (s *Server) handleSearchMatches(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	jobID, err := queryUUID(r, "jobId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	matches, err := s.matches.SearchMatches(r.Context(), tenantID, types.MatchSearchFilter{
		JobID:          jobID,
		MinScore:       parseQueryInt(r, "minScore", 0, 100),
		MaxScore:       parseOptionalQueryInt(r, "maxScore", 100),
		Recommendation: types.Recommendation(q.Get("recommendation")),
		Status:         q.Get("status"),
		Limit:          parseQueryInt(r, "limit", 0, 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.list(w, matches)
}

// handleShortlisted lists shortlisted candidates
func (s *Server) handleShortlisted(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	jobID, err := queryUUID(r, "jobId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	matches, err := s.matches.GetShortlisted(r.Context(), tenantID, types.ShortlistFilter{
		JobID:    jobID,
		MinScore: parseQueryInt(r, "minScore", 0, 100),
		Limit:    parseQueryInt(r, "limit", 0, 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.list(w, matches)
}

// handleJobMatches lists a job's ranked candidates
func (s *Server) handleJobMatches(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	jobID, err := pathUUID(r, "jobId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	matches, err := s.matches.GetRankedCandidates(r.Context(), tenantID, jobID, types.MatchListOptions{
		MinScore: parseQueryInt(r, "minScore", 0, 100),
		Status:   r.URL.Query().Get("status"),
		Skip:     parseQueryInt(r, "skip", 0, 0),
		Limit:    parseQueryInt(r, "limit", 0, 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.list(w, matches)
}

// handleJobStats returns the statistics of a job's matches
func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	jobID, err := pathUUID(r, "jobId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	stats, err := s.matches.GetJobStats(r.Context(), tenantID, jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusOK, stats, "")
}

// handleResumeMatches lists the matches of one resume across jobs
func (s *Server) handleResumeMatches(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	resumeID, err := pathUUID(r, "resumeId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	matches, err := s.matches.GetResumeMatches(r.Context(), tenantID, resumeID, types.MatchListOptions{
		MinScore: parseQueryInt(r, "minScore", 0, 100),
		Limit:    parseQueryInt(r, "limit", 0, 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.list(w, matches)
}

// handleGetMatch returns one match
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	matchID, err := pathUUID(r, "matchId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	match, err := s.matches.GetMatch(r.Context(), tenantID, matchID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusOK, match, "")
}

// handleUpdateStatus records a recruiter review of a match
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := s.principal(w, r)
	if !ok {
		return
	}
	matchID, err := pathUUID(r, "matchId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.UpdateStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var reviewer *uuid.UUID
	if userID != uuid.Nil {
		reviewer = &userID
	}

	match, err := s.matches.UpdateMatchStatus(r.Context(), tenantID, matchID, req.Status, reviewer, req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusOK, match, "Match status updated")
}

// handleToggleShortlist flips the shortlist flag of a match
func (s *Server) handleToggleShortlist(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := s.principal(w, r)
	if !ok {
		return
	}
	matchID, err := pathUUID(r, "matchId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	match, err := s.matches.ToggleShortlist(r.Context(), tenantID, matchID, userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	message := "Candidate removed from shortlist"
	if match.IsShortlisted {
		message = "Candidate shortlisted"
	}
	s.ok(w, http.StatusOK, match, message)
}

// handleAssignInterviewer assigns an interviewer to a match
func (s *Server) handleAssignInterviewer(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := s.principal(w, r)
	if !ok {
		return
	}
	matchID, err := pathUUID(r, "matchId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req types.AssignInterviewerRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	match, err := s.matches.AssignInterviewer(r.Context(), tenantID, matchID, uuid.MustParse(req.UserID), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusOK, match, "Interviewer assigned")
}

// handleUnassignInterviewer removes an interviewer from a match
func (s *Server) handleUnassignInterviewer(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}
	matchID, err := pathUUID(r, "matchId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	interviewerID, err := pathUUID(r, "userId")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	match, err := s.matches.UnassignInterviewer(r.Context(), tenantID, matchID, interviewerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusOK, match, "Interviewer unassigned")
}

// handleUsage returns the tenant's usage for the current period
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := s.principal(w, r)
	if !ok {
		return
	}

	usage, err := s.matches.GetCurrentUsage(r.Context(), tenantID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.ok(w, http.StatusOK, usage, "")
}
