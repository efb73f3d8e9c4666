package types

// JobStats is the statistical rollup over all matches of one job.
type JobStats struct {
	TotalMatches  int          `json:"totalMatches"`
	AverageScore  int          `json:"averageScore"`
	Distribution  Distribution `json:"distribution"`
	BestMatch     *Match       `json:"bestMatch,omitempty"`
	TopCandidates []Match      `json:"topCandidates"`
}

// Distribution counts matches per quality bucket.
type Distribution struct {
	Excellent int `json:"excellent"`
	VeryGood  int `json:"veryGood"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`
}

// Add counts one score into its bucket.
func (d *Distribution) Add(score int) {
	switch QualityLabel(score) {
	case QualityExcellent:
		d.Excellent++
	case QualityVeryGood:
		d.VeryGood++
	case QualityGood:
		d.Good++
	case QualityFair:
		d.Fair++
	default:
		d.Poor++
	}
}
