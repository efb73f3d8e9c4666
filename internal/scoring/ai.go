package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/llm"
	"github.com/coderheist/rest.ai-sub000/internal/logging"
	"github.com/coderheist/rest.ai-sub000/internal/prompts"
	"github.com/coderheist/rest.ai-sub000/internal/schemas"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// DefaultAITimeout bounds a single oracle call.
	DefaultAITimeout = 30 * time.Second

	promptFile      = "matching.json"
	promptKey       = "score-match"
	rawTextLimit    = 3000
	responsePreview = 300
)

// AIOptions configures an AIScorer.
type AIOptions struct {
	Tier     llm.ModelTier
	Timeout  time.Duration
	Weights  Weights
	Provider string
}

// AIScorer asks an LLM for a structured match assessment.
// Every failure is reported as ErrNoResult; no partial result is returned.
type AIScorer struct {
	client  llm.Client
	opts    AIOptions
	logger  *zap.Logger
	timeout time.Duration
}

// NewAIScorer returns a scorer backed by client.
func NewAIScorer(client llm.Client, opts AIOptions, logger *zap.Logger) *AIScorer {
	if opts.Tier == "" {
		opts.Tier = llm.TierStandard
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}

	model := ""
	if client != nil {
		model = client.GetModel(opts.Tier)
	}

	return &AIScorer{
		client:  client,
		opts:    opts,
		logger:  logging.WithAI(logger, opts.Provider, model),
		timeout: timeout,
	}
}

// Score implements Scorer.
func (s *AIScorer) Score(ctx context.Context, job *types.Job, resume *types.Resume) (*Result, error) {
	ctx, span := otel.Tracer("matchengine/scoring").Start(ctx, "scoring.ai")
	defer span.End()

	result, err := s.score(ctx, job, resume)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("match.overall_score", result.OverallScore))
	return result, nil
}

func (s *AIScorer) score(ctx context.Context, job *types.Job, resume *types.Resume) (*Result, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("%w: oracle not configured", ErrNoResult)
	}
	if job == nil || resume == nil {
		return nil, fmt.Errorf("%w: job and resume are required", ErrNoResult)
	}

	prompt, err := s.buildPrompt(job, resume)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResult, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.client.GenerateJSON(callCtx, prompt, s.opts.Tier)
	if err != nil {
		s.logger.Warn("oracle call failed",
			logging.Job(job.ID), logging.Resume(resume.ID),
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrNoResult, err)
	}

	s.logger.Debug("oracle response",
		logging.Job(job.ID), logging.Resume(resume.ID),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("preview", logging.TruncateForLog(raw, responsePreview)))

	result, err := ParseAIResponse(raw)
	if err != nil {
		s.logger.Warn("oracle response rejected",
			logging.Job(job.ID), logging.Resume(resume.ID),
			zap.String("preview", logging.TruncateForLog(raw, responsePreview)), zap.Error(err))
		return nil, err
	}
	return result, nil
}

type promptWeights struct {
	Skills, Experience, Education int
}

type promptData struct {
	Job           *types.Job
	Resume        *types.Resume
	RequiredYears string
	Experience    string
	Education     string
	RawText       string
	Weights       promptWeights
}

func (s *AIScorer) buildPrompt(job *types.Job, resume *types.Resume) (string, error) {
	sk, ex, ed := s.opts.Weights.Percentages()
	rawText := strings.TrimSpace(resume.RawText)
	if r := []rune(rawText); len(r) > rawTextLimit {
		rawText = string(r[:rawTextLimit])
	}
	return prompts.Render(promptFile, promptKey, promptData{
		Job:           job,
		Resume:        resume,
		RequiredYears: promptYears(job.ExperienceYears),
		Experience:    formatExperience(resume.Experience),
		Education:     formatEducation(resume.Education),
		RawText:       rawText,
		Weights:       promptWeights{Skills: sk, Experience: ex, Education: ed},
	})
}

// promptYears renders "min-max", or "min+" when the job sets no maximum.
func promptYears(r types.ExperienceRange) string {
	if r.Max == 0 {
		return formatYears(r.Min) + "+"
	}
	return formatYears(r.Min) + "-" + formatYears(r.Max)
}

func formatExperience(entries []types.Experience) string {
	if len(entries) == 0 {
		return "No experience listed"
	}
	lines := make([]string, 0, len(entries))
	for _, exp := range entries {
		end := "Present"
		if !exp.Current {
			end = formatDate(exp.EndDate)
		}
		desc := exp.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("- %s at %s (%s - %s)\n  %s",
			exp.Position, exp.Company, formatDate(exp.StartDate), end, desc))
	}
	return strings.Join(lines, "\n")
}

func formatEducation(entries []types.Education) string {
	if len(entries) == 0 {
		return "No education listed"
	}
	lines := make([]string, 0, len(entries))
	for _, edu := range entries {
		year := "In progress"
		if edu.GraduationYear > 0 {
			year = strconv.Itoa(edu.GraduationYear)
		}
		lines = append(lines, fmt.Sprintf("- %s in %s from %s (%s)", edu.Degree, edu.Field, edu.Institution, year))
	}
	return strings.Join(lines, "\n")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01")
}

// aiPayload mirrors the oracle response after schema validation.
type aiPayload struct {
	OverallScore float64 `json:"overallScore"`
	SkillMatch   struct {
		Score         float64 `json:"score"`
		MatchedSkills []struct {
			Skill      string   `json:"skill"`
			Confidence *float64 `json:"confidence"`
			Source     string   `json:"source"`
		} `json:"matchedSkills"`
		MissingSkills    []string `json:"missingSkills"`
		AdditionalSkills []string `json:"additionalSkills"`
	} `json:"skillMatch"`
	ExperienceMatch struct {
		Score          float64     `json:"score"`
		RequiredYears  flexibleStr `json:"requiredYears"`
		CandidateYears float64     `json:"candidateYears"`
		Relevant       bool        `json:"relevant"`
		Details        string      `json:"details"`
	} `json:"experienceMatch"`
	EducationMatch struct {
		Score   float64 `json:"score"`
		Meets   bool    `json:"meets"`
		Details string  `json:"details"`
	} `json:"educationMatch"`
	SemanticSimilarity float64  `json:"semanticSimilarity"`
	Strengths          []string `json:"strengths"`
	Concerns           []string `json:"concerns"`
	Recommendation     string   `json:"recommendation"`
	Reasoning          string   `json:"reasoning"`
}

// flexibleStr accepts a JSON string or number.
type flexibleStr string

func (f *flexibleStr) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleStr(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleStr(n.String())
	return nil
}

// ParseAIResponse turns raw oracle text into a Result. Markdown fences and
// surrounding chatter are stripped, the object is validated against the
// match_result schema and then normalized.
func ParseAIResponse(raw string) (*Result, error) {
	text := llm.ExtractJSONObject(llm.CleanJSONBlock(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrNoResult)
	}

	if err := schemas.Validate(schemas.MatchResult, []byte(text)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResult, err)
	}

	var p aiPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrNoResult, err)
	}

	return p.toResult(), nil
}

func (p *aiPayload) toResult() *Result {
	overall := clampScore(p.OverallScore)

	matched := make([]types.MatchedSkill, 0, len(p.SkillMatch.MatchedSkills))
	for _, m := range p.SkillMatch.MatchedSkills {
		confidence := 1.0
		if m.Confidence != nil {
			confidence = clamp(*m.Confidence, 0, 1)
		}
		matched = append(matched, types.MatchedSkill{
			Skill:      m.Skill,
			Confidence: confidence,
			Source:     normalizeSource(m.Source),
		})
	}

	rec := types.Recommendation(p.Recommendation)
	if !rec.Valid() {
		rec = Recommend(overall)
	}

	return &Result{
		OverallScore: overall,
		SkillMatch: types.SkillMatch{
			Score:            clampScore(p.SkillMatch.Score),
			MatchedSkills:    matched,
			MissingSkills:    nonNil(p.SkillMatch.MissingSkills),
			AdditionalSkills: nonNil(p.SkillMatch.AdditionalSkills),
		},
		ExperienceMatch: types.ExperienceMatch{
			Score:          clampScore(p.ExperienceMatch.Score),
			RequiredYears:  string(p.ExperienceMatch.RequiredYears),
			CandidateYears: math.Round(math.Max(0, p.ExperienceMatch.CandidateYears)*10) / 10,
			Relevant:       p.ExperienceMatch.Relevant,
			Details:        p.ExperienceMatch.Details,
		},
		EducationMatch: types.EducationMatch{
			Score:   clampScore(p.EducationMatch.Score),
			Meets:   p.EducationMatch.Meets,
			Details: p.EducationMatch.Details,
		},
		SemanticSimilarity: clamp(p.SemanticSimilarity, 0, 1),
		Strengths:          nonNil(p.Strengths),
		Concerns:           nonNil(p.Concerns),
		Recommendation:     rec,
		Reasoning:          p.Reasoning,
		Method:             types.MethodAI,
	}
}

func normalizeSource(src string) string {
	switch src = strings.ToLower(strings.TrimSpace(src)); src {
	case types.SourceExact, types.SourceSemantic, types.SourceInferred:
		return src
	default:
		return types.SourceInferred
	}
}

func clampScore(v float64) int {
	return int(math.Round(clamp(v, 0, 100)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
