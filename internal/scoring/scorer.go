// Package scoring computes the fit between one job and one resume.
//
// Two scorers implement Scorer: AIScorer asks an LLM oracle for a structured
// assessment, RuleScorer applies deterministic skill, experience and
// education rules. WithFallback composes them so a failed oracle call
// degrades to the rules instead of failing the match.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/coderheist/rest.ai-sub000/internal/logging"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoResult is returned by a scorer that could not produce an assessment.
var ErrNoResult = errors.New("scorer produced no result")

// Scorer scores a job/resume pair.
type Scorer interface {
	Score(ctx context.Context, job *types.Job, resume *types.Resume) (*Result, error)
}

// Result is a complete assessment, ready to be persisted as a match.
type Result struct {
	OverallScore       int                   `json:"overallScore"`
	SkillMatch         types.SkillMatch      `json:"skillMatch"`
	ExperienceMatch    types.ExperienceMatch `json:"experienceMatch"`
	EducationMatch     types.EducationMatch  `json:"educationMatch"`
	SemanticSimilarity float64               `json:"semanticSimilarity"`
	Strengths          []string              `json:"strengths"`
	Concerns           []string              `json:"concerns"`
	Recommendation     types.Recommendation  `json:"recommendation"`
	Reasoning          string                `json:"reasoning,omitempty"`
	Method             string                `json:"scoringMethod"`
}

// Weights are the aggregate weights of the three components.
type Weights struct {
	Skills     float64 `mapstructure:"skills"`
	Experience float64 `mapstructure:"experience"`
	Education  float64 `mapstructure:"education"`
}

// DefaultWeights returns the 50/30/20 split.
func DefaultWeights() Weights {
	return Weights{Skills: 0.5, Experience: 0.3, Education: 0.2}
}

// Validate checks that the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Skills < 0 || w.Experience < 0 || w.Education < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	if sum := w.Skills + w.Experience + w.Education; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %.6f", sum)
	}
	return nil
}

// Percentages returns the weights as whole percentages, for prompts.
func (w Weights) Percentages() (skills, experience, education int) {
	return int(math.Round(w.Skills * 100)), int(math.Round(w.Experience * 100)), int(math.Round(w.Education * 100))
}

// Aggregate returns the weighted overall score.
func (w Weights) Aggregate(skills, experience, education int) int {
	return int(math.Round(float64(skills)*w.Skills + float64(experience)*w.Experience + float64(education)*w.Education))
}

// Recommend maps an overall score to its recommendation tier.
func Recommend(score int) types.Recommendation {
	switch {
	case score >= 85:
		return types.StrongMatch
	case score >= 70:
		return types.GoodMatch
	case score >= 55:
		return types.PotentialMatch
	case score >= 40:
		return types.WeakMatch
	default:
		return types.NotRecommended
	}
}

type fallbackScorer struct {
	primary  Scorer
	fallback Scorer
	logger   *zap.Logger
}

// WithFallback returns a Scorer that tries primary and, on any error, scores
// with fallback instead. A nil primary yields fallback itself.
func WithFallback(primary, fallback Scorer, logger *zap.Logger) Scorer {
	if primary == nil {
		return fallback
	}
	return &fallbackScorer{primary: primary, fallback: fallback, logger: logging.OrNop(logger)}
}

func (s *fallbackScorer) Score(ctx context.Context, job *types.Job, resume *types.Resume) (*Result, error) {
	result, err := s.primary.Score(ctx, job, resume)
	if err == nil {
		return result, nil
	}

	s.logger.Warn("primary scorer failed, using rule-based scoring",
		logging.Job(jobID(job)),
		logging.Resume(resumeID(resume)),
		zap.Error(err),
	)
	return s.fallback.Score(ctx, job, resume)
}

func jobID(job *types.Job) uuid.UUID {
	if job == nil {
		return uuid.Nil
	}
	return job.ID
}

func resumeID(resume *types.Resume) uuid.UUID {
	if resume == nil {
		return uuid.Nil
	}
	return resume.ID
}
