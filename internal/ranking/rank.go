// Package ranking orders the matches of one job and rolls them up into
// statistics. Everything here is pure; persistence lives in internal/db.
package ranking

import (
	"bytes"
	"sort"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
)

// Entry is the part of a match that ranking looks at.
type Entry struct {
	ID        uuid.UUID
	Score     int
	CreatedAt time.Time
	Rank      int
}

// less orders by score descending, then creation time ascending, then id.
func less(scoreA, scoreB int, createdA, createdB time.Time, idA, idB uuid.UUID) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if !createdA.Equal(createdB) {
		return createdA.Before(createdB)
	}
	return bytes.Compare(idA[:], idB[:]) < 0
}

// AssignRanks returns a sorted copy of entries with ranks 1..N assigned.
// Ties on score go to the earlier match, then to the lower id, so the
// result does not depend on input order.
func AssignRanks(entries []Entry) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		return less(a.Score, b.Score, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// SortMatches sorts matches in place into ranking order.
func SortMatches(matches []types.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		return less(a.OverallScore, b.OverallScore, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
}
