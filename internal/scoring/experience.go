package scoring

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/types"
)

const (
	// unboundedMaxYears stands in for a job that sets no upper experience bound.
	unboundedMaxYears = 999
	yearLength        = 365 * 24 * time.Hour
)

// CandidateYears sums the duration of every dated experience entry, in years
// rounded to one decimal. Open-ended and current entries run until now.
func CandidateYears(entries []types.Experience, now time.Time) float64 {
	var total time.Duration
	for _, exp := range entries {
		if exp.StartDate == nil {
			continue
		}
		end := now
		if !exp.Current && exp.EndDate != nil {
			end = *exp.EndDate
		}
		if d := end.Sub(*exp.StartDate); d > 0 {
			total += d
		}
	}
	years := total.Hours() / yearLength.Hours()
	return math.Round(years*10) / 10
}

// YearsBounds returns the effective minimum and maximum of a range.
func YearsBounds(r types.ExperienceRange) (minYears, maxYears float64) {
	minYears = r.Min
	maxYears = r.Max
	if maxYears == 0 {
		maxYears = unboundedMaxYears
	}
	return minYears, maxYears
}

// RequiredYears renders a range as "min-max".
func RequiredYears(r types.ExperienceRange) string {
	minYears, maxYears := YearsBounds(r)
	return formatYears(minYears) + "-" + formatYears(maxYears)
}

// ScoreExperience compares the candidate's total years against the job range.
func ScoreExperience(r types.ExperienceRange, entries []types.Experience, now time.Time) types.ExperienceMatch {
	minYears, maxYears := YearsBounds(r)
	years := CandidateYears(entries, now)

	m := types.ExperienceMatch{
		RequiredYears:  RequiredYears(r),
		CandidateYears: years,
		Relevant:       true,
	}

	switch {
	case years < minYears:
		m.Score = int(math.Max(0, math.Round(years/minYears*80)))
		m.Relevant = false
		m.Details = fmt.Sprintf("Candidate has %s years, below minimum %s years", formatYears(years), formatYears(minYears))
	case years > maxYears:
		m.Score = 90
		m.Details = fmt.Sprintf("Candidate has %s years, above maximum %s years (overqualified)", formatYears(years), formatYears(maxYears))
	default:
		m.Score = 100
		m.Details = fmt.Sprintf("Candidate has %s years, within required range %s-%s years",
			formatYears(years), formatYears(minYears), formatYears(maxYears))
	}
	return m
}

func formatYears(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
