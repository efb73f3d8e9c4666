package scoring

import (
	"math"
	"strings"

	"github.com/coderheist/rest.ai-sub000/internal/types"
)

// Education detail messages.
const (
	EducationNoRequirement = "No specific education requirement"
	EducationNoInfo        = "No education information provided"
	EducationMeets         = "Candidate meets or exceeds required education level"
	EducationBelow         = "Candidate's education level is below requirement"
)

// educationLevels maps normalized degree keywords to ordinals
var educationLevels = map[string]int{
	"high_school": 1,
	"associate":   2,
	"bachelor":    3,
	"master":      4,
	"doctorate":   5,
}

// EducationLevel returns the ordinal of a degree keyword, or 0 when unknown.
// "High School", "high-school" and "high_school" are equivalent.
func EducationLevel(degree string) int {
	return educationLevels[normalizeDegree(degree)]
}

func normalizeDegree(degree string) string {
	degree = strings.ToLower(strings.TrimSpace(degree))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(degree)
}

// ScoreEducation compares the candidate's highest degree against the required level.
func ScoreEducation(required string, entries []types.Education) types.EducationMatch {
	norm := normalizeDegree(required)
	if norm == "" || norm == "none" {
		return types.EducationMatch{Score: 100, Meets: true, Details: EducationNoRequirement}
	}

	if len(entries) == 0 {
		return types.EducationMatch{Score: 0, Meets: false, Details: EducationNoInfo}
	}

	highest := 0
	for _, edu := range entries {
		if level := EducationLevel(edu.Degree); level > highest {
			highest = level
		}
	}

	requiredLevel := educationLevels[norm]
	if highest >= requiredLevel {
		return types.EducationMatch{Score: 100, Meets: true, Details: EducationMeets}
	}

	return types.EducationMatch{
		Score:   int(math.Round(float64(highest) / float64(requiredLevel) * 80)),
		Meets:   false,
		Details: EducationBelow,
	}
}
