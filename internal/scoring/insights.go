package scoring

import (
	"fmt"

	"github.com/coderheist/rest.ai-sub000/internal/types"
)

// Insights derives the strengths and concerns shown next to a rule-based score.
func Insights(skills types.SkillMatch, exp types.ExperienceMatch, edu types.EducationMatch, overall int) (strengths, concerns []string) {
	strengths = []string{}
	concerns = []string{}

	switch {
	case skills.Score >= 80:
		strengths = append(strengths, fmt.Sprintf("Strong skill match with %d key skills", len(skills.MatchedSkills)))
	case skills.Score >= 60:
		strengths = append(strengths, "Good skill alignment with room for development")
	default:
		concerns = append(concerns, fmt.Sprintf("Missing %d required skills", len(skills.MissingSkills)))
	}

	if len(skills.AdditionalSkills) > 5 {
		strengths = append(strengths, "Brings additional skills beyond requirements")
	}

	if exp.Score >= 90 {
		strengths = append(strengths, exp.Details)
	} else if exp.Score < 70 {
		concerns = append(concerns, exp.Details)
	}

	if edu.Meets {
		strengths = append(strengths, edu.Details)
	} else {
		concerns = append(concerns, edu.Details)
	}

	if overall >= 80 {
		strengths = append(strengths, "Excellent overall candidate profile")
	}

	return strengths, concerns
}
