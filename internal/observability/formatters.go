// Package observability provides tracing setup and formatted output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/coderheist/rest.ai-sub000/internal/scoring"
	"github.com/coderheist/rest.ai-sub000/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func writeList(sb *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
	sb.WriteString("\n")
}

// PrintResult outputs the component breakdown of one assessment.
func (p *Printer) PrintResult(r *scoring.Result) {
	if r == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall:     %d (%s)\n", r.OverallScore, types.QualityLabel(r.OverallScore)))
	sb.WriteString(fmt.Sprintf("Verdict:     %s\n", r.Recommendation))
	sb.WriteString(fmt.Sprintf("Method:      %s\n", r.Method))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Skills:      %d\n", r.SkillMatch.Score))
	sb.WriteString(fmt.Sprintf("Experience:  %d (%.1f yrs, needs %s)\n",
		r.ExperienceMatch.Score, r.ExperienceMatch.CandidateYears, r.ExperienceMatch.RequiredYears))
	sb.WriteString(fmt.Sprintf("Education:   %d\n", r.EducationMatch.Score))
	sb.WriteString("\n")

	matched := make([]string, 0, len(r.SkillMatch.MatchedSkills))
	for _, s := range r.SkillMatch.MatchedSkills {
		matched = append(matched, s.Skill)
	}
	writeList(&sb, "Matched", matched, maxItemsToShow)
	writeList(&sb, "Missing", r.SkillMatch.MissingSkills, maxItemsToShow)
	writeList(&sb, "Strengths", r.Strengths, 3)
	writeList(&sb, "Concerns", r.Concerns, 3)

	p.printBox("MATCH SCORE", strings.TrimSuffix(sb.String(), "\n\n"))
}

func candidateName(m types.Match) string {
	if m.Resume != nil {
		if m.Resume.CandidateName != "" {
			return m.Resume.CandidateName
		}
		if m.Resume.FileName != "" {
			return m.Resume.FileName
		}
	}
	return m.ResumeID.String()
}

// PrintRanking outputs the top ranked candidates of a job.
func (p *Printer) PrintRanking(matches []types.Match) {
	if len(matches) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total candidates ranked: %d\n\n", len(matches)))

	count := min(len(matches), maxItemsToShow)
	for i := 0; i < count; i++ {
		m := matches[i]
		rank := i + 1
		if m.Rank != nil {
			rank = *m.Rank
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", rank, candidateName(m)))
		sb.WriteString(fmt.Sprintf("    Score: %d  %s\n", m.OverallScore, m.Recommendation))
	}

	if len(matches) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more candidates", len(matches)-maxItemsToShow))
	}

	p.printBox("RANKED CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStats outputs the statistics of one job.
func (p *Printer) PrintStats(stats *types.JobStats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Matches:  %d\n", stats.TotalMatches))
	sb.WriteString(fmt.Sprintf("Average:  %d\n", stats.AverageScore))
	sb.WriteString("\n")

	d := stats.Distribution
	for _, bucket := range []struct {
		label string
		n     int
	}{
		{types.QualityExcellent, d.Excellent},
		{types.QualityVeryGood, d.VeryGood},
		{types.QualityGood, d.Good},
		{types.QualityFair, d.Fair},
		{types.QualityPoor, d.Poor},
	} {
		sb.WriteString(fmt.Sprintf("%-10s %3d %s\n", bucket.label, bucket.n, strings.Repeat("█", min(bucket.n, 30))))
	}

	if stats.BestMatch != nil {
		sb.WriteString(fmt.Sprintf("\nBest:     %s (%d)\n", candidateName(*stats.BestMatch), stats.BestMatch.OverallScore))
	}

	p.printBox("JOB STATISTICS", strings.TrimSuffix(sb.String(), "\n"))
}
