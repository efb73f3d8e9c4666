package scoring

import (
	"math"
	"strings"

	"github.com/coderheist/rest.ai-sub000/internal/types"
)

// ScoreSkills compares the required skills of a job against every skill the
// candidate lists. Matching is case-insensitive substring containment in
// either direction, so "java" also matches "javascript".
func ScoreSkills(required []string, skills types.Skills) types.SkillMatch {
	candidate := skills.Flatten()
	req := normalizeSkills(required)

	if len(req) == 0 {
		return types.SkillMatch{
			Score:            100,
			MatchedSkills:    []types.MatchedSkill{},
			MissingSkills:    []string{},
			AdditionalSkills: candidate,
		}
	}

	matched := make([]types.MatchedSkill, 0, len(req))
	missing := make([]string, 0)
	for _, r := range req {
		if overlapsAny(r, candidate) {
			matched = append(matched, types.MatchedSkill{Skill: r, Confidence: 1.0, Source: types.SourceExact})
		} else {
			missing = append(missing, r)
		}
	}

	additional := make([]string, 0)
	for _, c := range candidate {
		if !overlapsAny(c, req) {
			additional = append(additional, c)
		}
	}

	return types.SkillMatch{
		Score:            int(math.Round(float64(len(matched)) / float64(len(req)) * 100)),
		MatchedSkills:    matched,
		MissingSkills:    missing,
		AdditionalSkills: additional,
	}
}

func normalizeSkills(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func overlapsAny(skill string, others []string) bool {
	for _, o := range others {
		if strings.Contains(o, skill) || strings.Contains(skill, o) {
			return true
		}
	}
	return false
}
