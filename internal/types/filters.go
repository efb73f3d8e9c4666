package types

import "github.com/google/uuid"

// Listing defaults and caps.
const (
	DefaultJobMatchLimit    = 100
	DefaultResumeMatchLimit = 50
	DefaultSearchLimit      = 100
	DefaultTopMatchLimit    = 20
	MaxListLimit            = 100
)

// MatchListOptions filters the matches of one job or one resume.
type MatchListOptions struct {
	MinScore int
	Status   string
	Skip     int
	Limit    int
}

// MatchSearchFilter filters a tenant-wide match search. Zero values do not
// filter, except MaxScore, which bounds the search whenever it is set.
type MatchSearchFilter struct {
	JobID          *uuid.UUID
	MinScore       int
	MaxScore       *int
	Recommendation Recommendation
	Status         string
	Limit          int
}

// ShortlistFilter filters shortlisted matches.
type ShortlistFilter struct {
	JobID    *uuid.UUID
	MinScore int
	Limit    int
}

// ClampLimit returns limit, or def when limit is not positive, capped at MaxListLimit.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit
}
