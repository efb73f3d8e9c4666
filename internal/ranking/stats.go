package ranking

import (
	"math"

	"github.com/coderheist/rest.ai-sub000/internal/types"
)

// TopCandidateCount is the number of matches reported in JobStats.TopCandidates.
const TopCandidateCount = 5

// ComputeStats rolls up the matches of one job. The input is not modified.
func ComputeStats(matches []types.Match) types.JobStats {
	stats := types.JobStats{
		TotalMatches:  len(matches),
		TopCandidates: []types.Match{},
	}
	if len(matches) == 0 {
		return stats
	}

	sorted := make([]types.Match, len(matches))
	copy(sorted, matches)
	SortMatches(sorted)

	sum := 0
	for _, m := range sorted {
		sum += m.OverallScore
		stats.Distribution.Add(m.OverallScore)
	}
	stats.AverageScore = int(math.Round(float64(sum) / float64(len(sorted))))

	best := sorted[0]
	stats.BestMatch = &best

	n := min(TopCandidateCount, len(sorted))
	stats.TopCandidates = sorted[:n:n]
	return stats
}
