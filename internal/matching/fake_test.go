package matching

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/ranking"
	"github.com/coderheist/rest.ai-sub000/internal/scoring"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
)

// memStore is an in-memory Store with the same tenant scoping and key
// uniqueness as the Postgres store.
type memStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]types.Job
	resumes map[uuid.UUID]types.Resume
	matches map[uuid.UUID]*types.Match

	// beforeCreate runs inside CreateMatch before the uniqueness check.
	beforeCreate func(m *types.Match)
	// afterListAll runs after ListAllJobMatches has taken its snapshot.
	afterListAll func()
	lastLimit    int
	reviewCalls  int
	failCreate   error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    map[uuid.UUID]types.Job{},
		resumes: map[uuid.UUID]types.Resume{},
		matches: map[uuid.UUID]*types.Match{},
	}
}

func (s *memStore) addJob(j types.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *memStore) addResume(r types.Resume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes[r.ID] = r
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func clone(m *types.Match) *types.Match {
	c := *m
	c.AssignedInterviewers = slices.Clone(m.AssignedInterviewers)
	if m.Rank != nil {
		r := *m.Rank
		c.Rank = &r
	}
	return &c
}

func (s *memStore) GetJob(_ context.Context, tenantID, jobID uuid.UUID) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.TenantID != tenantID {
		return nil, nil
	}
	return &j, nil
}

func (s *memStore) GetResume(_ context.Context, tenantID, resumeID uuid.UUID) (*types.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resumes[resumeID]
	if !ok || r.TenantID != tenantID {
		return nil, nil
	}
	return &r, nil
}

func (s *memStore) ListCompletedResumes(_ context.Context, tenantID, jobID uuid.UUID) ([]types.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Resume
	for _, r := range s.resumes {
		if r.TenantID == tenantID && r.JobID != nil && *r.JobID == jobID && r.ParsingStatus == types.ParsingCompleted {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) findByKey(tenantID, jobID, resumeID uuid.UUID) *types.Match {
	for _, m := range s.matches {
		if m.TenantID == tenantID && m.JobID == jobID && m.ResumeID == resumeID {
			return m
		}
	}
	return nil
}

func (s *memStore) CreateMatch(_ context.Context, m *types.Match) (*types.Match, bool, error) {
	if s.beforeCreate != nil {
		s.beforeCreate(m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return nil, false, s.failCreate
	}
	if existing := s.findByKey(m.TenantID, m.JobID, m.ResumeID); existing != nil {
		return clone(existing), false, nil
	}
	s.matches[m.ID] = clone(m)
	return clone(m), true, nil
}

func (s *memStore) GetMatchByKey(_ context.Context, tenantID, jobID, resumeID uuid.UUID) (*types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.findByKey(tenantID, jobID, resumeID); m != nil {
		return clone(m), nil
	}
	return nil, nil
}

func (s *memStore) GetMatch(_ context.Context, tenantID, matchID uuid.UUID) (*types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok || m.TenantID != tenantID {
		return nil, nil
	}
	return clone(m), nil
}

func (s *memStore) filter(keep func(m *types.Match) bool) []types.Match {
	out := []types.Match{}
	for _, m := range s.matches {
		if keep(m) {
			out = append(out, *clone(m))
		}
	}
	ranking.SortMatches(out)
	return out
}

func page(matches []types.Match, skip, limit int) []types.Match {
	if skip >= len(matches) {
		return []types.Match{}
	}
	matches = matches[skip:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}

func (s *memStore) ListJobMatches(_ context.Context, tenantID, jobID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = opts.Limit
	out := s.filter(func(m *types.Match) bool {
		return m.TenantID == tenantID && m.JobID == jobID && m.OverallScore >= opts.MinScore &&
			(opts.Status == "" || m.Status == opts.Status)
	})
	return page(out, opts.Skip, opts.Limit), nil
}

func (s *memStore) ListResumeMatches(_ context.Context, tenantID, resumeID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = opts.Limit
	out := s.filter(func(m *types.Match) bool {
		return m.TenantID == tenantID && m.ResumeID == resumeID && m.OverallScore >= opts.MinScore
	})
	return page(out, 0, opts.Limit), nil
}

func (s *memStore) ListAllJobMatches(_ context.Context, tenantID, jobID uuid.UUID) ([]types.Match, error) {
	s.mu.Lock()
	out := s.filter(func(m *types.Match) bool { return m.TenantID == tenantID && m.JobID == jobID })
	hook := s.afterListAll
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (s *memStore) ListTopMatches(_ context.Context, tenantID uuid.UUID, limit int) ([]types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	out := s.filter(func(m *types.Match) bool { return m.TenantID == tenantID && m.Status == types.StatusCompleted })
	return page(out, 0, limit), nil
}

func (s *memStore) SearchMatches(_ context.Context, tenantID uuid.UUID, f types.MatchSearchFilter) ([]types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = f.Limit
	out := s.filter(func(m *types.Match) bool {
		return m.TenantID == tenantID &&
			(f.JobID == nil || m.JobID == *f.JobID) &&
			m.OverallScore >= f.MinScore &&
			(f.MaxScore == nil || m.OverallScore <= *f.MaxScore) &&
			(f.Recommendation == "" || m.Recommendation == f.Recommendation) &&
			(f.Status == "" || m.Status == f.Status)
	})
	return page(out, 0, f.Limit), nil
}

func (s *memStore) ListShortlisted(_ context.Context, tenantID uuid.UUID, f types.ShortlistFilter) ([]types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = f.Limit
	out := s.filter(func(m *types.Match) bool {
		return m.TenantID == tenantID && m.IsShortlisted &&
			(f.JobID == nil || m.JobID == *f.JobID) && m.OverallScore >= f.MinScore
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ShortlistedAt.After(*out[j].ShortlistedAt) })
	return page(out, 0, f.Limit), nil
}

func (s *memStore) mutate(tenantID, matchID uuid.UUID, fn func(m *types.Match)) (*types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok || m.TenantID != tenantID {
		return nil, nil
	}
	fn(m)
	return clone(m), nil
}

func (s *memStore) UpdateMatchReview(_ context.Context, tenantID, matchID uuid.UUID, r Review) (*types.Match, error) {
	s.mu.Lock()
	s.reviewCalls++
	s.mu.Unlock()
	return s.mutate(tenantID, matchID, func(m *types.Match) {
		m.Status = r.Status
		if r.Reviewer != nil {
			m.ReviewedBy = r.Reviewer
			m.ReviewedAt = r.ReviewedAt
		}
		if r.Notes != "" {
			m.ReviewNotes = r.Notes
		}
	})
}

func (s *memStore) SetShortlist(_ context.Context, tenantID, matchID uuid.UUID, on bool, by *uuid.UUID, at *time.Time) (*types.Match, error) {
	return s.mutate(tenantID, matchID, func(m *types.Match) {
		m.IsShortlisted = on
		m.ShortlistedBy = by
		m.ShortlistedAt = at
	})
}

func (s *memStore) AddInterviewer(_ context.Context, tenantID, matchID uuid.UUID, a types.InterviewerAssignment) (*types.Match, error) {
	return s.mutate(tenantID, matchID, func(m *types.Match) {
		for _, existing := range m.AssignedInterviewers {
			if existing.UserID == a.UserID {
				return
			}
		}
		m.AssignedInterviewers = append(m.AssignedInterviewers, a)
	})
}

func (s *memStore) RemoveInterviewer(_ context.Context, tenantID, matchID, userID uuid.UUID) (*types.Match, error) {
	return s.mutate(tenantID, matchID, func(m *types.Match) {
		m.AssignedInterviewers = slices.DeleteFunc(m.AssignedInterviewers, func(a types.InterviewerAssignment) bool {
			return a.UserID == userID
		})
	})
}

func (s *memStore) UpdateRankings(_ context.Context, tenantID, jobID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []ranking.Entry
	for _, m := range s.matches {
		if m.TenantID == tenantID && m.JobID == jobID {
			entries = append(entries, ranking.Entry{ID: m.ID, Score: m.OverallScore, CreatedAt: m.CreatedAt})
		}
	}
	for _, e := range ranking.AssignRanks(entries) {
		rank := e.Rank
		s.matches[e.ID].Rank = &rank
	}
	return len(entries), nil
}

// memUsage counts increments per tenant and counter.
type memUsage struct {
	mu     sync.Mutex
	counts map[uuid.UUID]map[string]int
}

func newMemUsage() *memUsage {
	return &memUsage{counts: map[uuid.UUID]map[string]int{}}
}

func (u *memUsage) IncrementUsage(_ context.Context, tenantID uuid.UUID, counter string, n int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counts[tenantID] == nil {
		u.counts[tenantID] = map[string]int{}
	}
	u.counts[tenantID][counter] += n
	return nil
}

func (u *memUsage) GetOrCreateUsage(_ context.Context, tenantID uuid.UUID, at time.Time) (*types.Usage, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	start, end := types.UsagePeriod(at)
	return &types.Usage{
		TenantID:    tenantID,
		PeriodStart: start,
		PeriodEnd:   end,
		LLMCalls:    u.counts[tenantID][types.CounterLLMCalls],
	}, nil
}

func (u *memUsage) get(tenantID uuid.UUID, counter string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[tenantID][counter]
}

type cacheEntry struct {
	gen   int64
	stats types.JobStats
}

// memCache is a StatsCache backed by a map, with the same generation rules
// as the Redis cache.
type memCache struct {
	mu          sync.Mutex
	entries     map[[2]uuid.UUID]cacheEntry
	gens        map[[2]uuid.UUID]int64
	hits        int
	sets        int
	invalidated int
	getErr      error
}

func newMemCache() *memCache {
	return &memCache{entries: map[[2]uuid.UUID]cacheEntry{}, gens: map[[2]uuid.UUID]int64{}}
}

func (c *memCache) Get(_ context.Context, tenantID, jobID uuid.UUID) (*types.JobStats, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, 0, false, c.getErr
	}
	key := [2]uuid.UUID{tenantID, jobID}
	gen := c.gens[key]
	e, ok := c.entries[key]
	if !ok || e.gen != gen {
		return nil, gen, false, nil
	}
	c.hits++
	return &e.stats, gen, true, nil
}

func (c *memCache) Set(_ context.Context, tenantID, jobID uuid.UUID, gen int64, stats *types.JobStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[[2]uuid.UUID{tenantID, jobID}] = cacheEntry{gen: gen, stats: *stats}
	return nil
}

func (c *memCache) Invalidate(_ context.Context, tenantID, jobID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.gens[[2]uuid.UUID{tenantID, jobID}]++
	return nil
}

// scriptedScorer returns a fixed score per resume and counts calls.
type scriptedScorer struct {
	mu     sync.Mutex
	method string
	scores map[uuid.UUID]int
	fail   map[uuid.UUID]bool
	calls  int
}

var errScripted = errors.New("scripted failure")

func (s *scriptedScorer) Score(_ context.Context, _ *types.Job, resume *types.Resume) (*scoring.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail[resume.ID] {
		return nil, errScripted
	}
	score, ok := s.scores[resume.ID]
	if !ok {
		score = 50
	}
	method := s.method
	if method == "" {
		method = types.MethodRuleBased
	}
	return &scoring.Result{
		OverallScore:   score,
		Recommendation: scoring.Recommend(score),
		Strengths:      []string{},
		Concerns:       []string{},
		Method:         method,
	}, nil
}

func (s *scriptedScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
