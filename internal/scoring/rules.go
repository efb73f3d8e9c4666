package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/types"
)

// PlaceholderSimilarity is reported by the rule scorer, which has no semantic signal.
const PlaceholderSimilarity = 0.75

// RuleScorer is the deterministic scorer. It never fails.
type RuleScorer struct {
	Weights Weights
	// Now is the clock used for open-ended experience entries.
	Now func() time.Time
}

// NewRuleScorer returns a RuleScorer using weights and the wall clock.
func NewRuleScorer(weights Weights) *RuleScorer {
	return &RuleScorer{Weights: weights, Now: time.Now}
}

// Score implements Scorer.
func (s *RuleScorer) Score(_ context.Context, job *types.Job, resume *types.Resume) (*Result, error) {
	return s.Evaluate(job, resume), nil
}

// Evaluate scores a pair without a context. Nil records score as empty ones.
func (s *RuleScorer) Evaluate(job *types.Job, resume *types.Resume) *Result {
	if job == nil {
		job = &types.Job{}
	}
	if resume == nil {
		resume = &types.Resume{}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	weights := s.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}

	skill := ScoreSkills(job.RequiredSkills, resume.Skills)
	exp := ScoreExperience(job.ExperienceYears, resume.Experience, now())
	edu := ScoreEducation(job.EducationLevel, resume.Education)

	overall := weights.Aggregate(skill.Score, exp.Score, edu.Score)
	strengths, concerns := Insights(skill, exp, edu, overall)

	return &Result{
		OverallScore:       overall,
		SkillMatch:         skill,
		ExperienceMatch:    exp,
		EducationMatch:     edu,
		SemanticSimilarity: PlaceholderSimilarity,
		Strengths:          strengths,
		Concerns:           concerns,
		Recommendation:     Recommend(overall),
		Reasoning: fmt.Sprintf("Match calculated based on skills (%d%%), experience (%d%%), and education (%d%%).",
			skill.Score, exp.Score, edu.Score),
		Method: types.MethodRuleBased,
	}
}
