// Package scoring estimates how demanding a query is. The score is the sum of
// independent named signals, each an explicit piece of routing policy:
//
//   - length: tiered character thresholds, first exceeded tier wins
//   - keyword: flag-based — any high keyword +2 once, any medium keyword +1
//     once, an exact low-keyword query ("hi", "thanks") zeroes the keyword score
//   - structure: code +2, multiple questions +1, numbered list +1, additive
//     with no interaction rule and no cap
//
// Scoring is deterministic and pure; the score is recomputed per request and
// never persisted on its own.
package scoring

import (
	"regexp"
	"strings"

	"github.com/modelzoo/backend/internal/models"
)

// Signal is one named contributor to the complexity score
type Signal interface {
	Name() string
	// Evaluate returns the points contributed and the human-readable factors
	// explaining them.
	Evaluate(query string) (points int, factors []string)
}

// Analysis is the full scoring breakdown for one query
type Analysis struct {
	TotalScore int            `json:"total_score"`
	Signals    map[string]int `json:"signals"`
	Factors    []string       `json:"factors"`
}

// Scorer runs an ordered set of signals over query text
type Scorer struct {
	signals  []Signal
	maxScore int
}

// NewScorer builds the default signal set from config
func NewScorer(cfg models.ScoringConfig) *Scorer {
	return &Scorer{
		signals: []Signal{
			&lengthSignal{tiers: cfg.LengthTiers},
			&keywordSignal{
				high:   lower(cfg.HighKeywords),
				medium: lower(cfg.MediumKeywords),
				low:    lower(cfg.LowKeywords),
			},
			&structureSignal{},
		},
		maxScore: cfg.MaxScore,
	}
}

// NewScorerWithSignals builds a scorer from an explicit signal list, so new
// signals can be added without touching control flow.
func NewScorerWithSignals(signals []Signal, maxScore int) *Scorer {
	return &Scorer{signals: signals, maxScore: maxScore}
}

// Score returns the total complexity score for the query
func (s *Scorer) Score(query string) int {
	return s.Analyze(query).TotalScore
}

// Analyze returns the total score plus the per-signal breakdown
func (s *Scorer) Analyze(query string) Analysis {
	analysis := Analysis{Signals: make(map[string]int, len(s.signals))}

	for _, sig := range s.signals {
		points, factors := sig.Evaluate(query)
		analysis.Signals[sig.Name()] = points
		analysis.TotalScore += points
		analysis.Factors = append(analysis.Factors, factors...)
	}

	if s.maxScore > 0 && analysis.TotalScore > s.maxScore {
		analysis.TotalScore = s.maxScore
	}
	return analysis
}

func lower(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

// lengthSignal awards points from a tiered character-count table
type lengthSignal struct {
	tiers []models.LengthTier // sorted longest-first by config loading
}

func (s *lengthSignal) Name() string { return "length" }

func (s *lengthSignal) Evaluate(query string) (int, []string) {
	n := len(query)
	for _, tier := range s.tiers {
		if n > tier.MinChars {
			return tier.Points, []string{lengthFactor(tier.MinChars)}
		}
	}
	return 0, nil
}

func lengthFactor(minChars int) string {
	switch {
	case minChars >= 1000:
		return "Very long query (>1000 chars)"
	case minChars >= 500:
		return "Long query (>500 chars)"
	default:
		return "Medium length query"
	}
}

// keywordSignal is flag-based: each keyword class contributes once no matter
// how many of its terms match. Counting per keyword would change routing
// materially, so the once-per-class rule is fixed policy here.
type keywordSignal struct {
	high   []string
	medium []string
	low    []string
}

func (s *keywordSignal) Name() string { return "keyword" }

func (s *keywordSignal) Evaluate(query string) (int, []string) {
	queryLower := strings.ToLower(query)

	// Exact low-complexity queries ("hi", "thanks") never earn keyword points
	trimmed := strings.TrimSpace(queryLower)
	for _, kw := range s.low {
		if trimmed == kw {
			return 0, []string{"Simple greeting/response"}
		}
	}

	points := 0
	var factors []string

	var highMatches []string
	for _, kw := range s.high {
		if strings.Contains(queryLower, kw) {
			highMatches = append(highMatches, kw)
		}
	}
	if len(highMatches) > 0 {
		points += 2
		if len(highMatches) > 3 {
			highMatches = highMatches[:3]
		}
		factors = append(factors, "High complexity keywords: "+strings.Join(highMatches, ", "))
	}

	for _, kw := range s.medium {
		if strings.Contains(queryLower, kw) {
			points++
			factors = append(factors, "Medium complexity keywords detected")
			break
		}
	}

	return points, factors
}

var (
	codePatterns = []*regexp.Regexp{
		regexp.MustCompile("```"),
		regexp.MustCompile(`def\s+\w+`),
		regexp.MustCompile(`function\s+\w+`),
		regexp.MustCompile(`class\s+\w+`),
		regexp.MustCompile(`import\s+`),
		regexp.MustCompile(`from\s+\w+\s+import`),
		regexp.MustCompile(`=>`),
		regexp.MustCompile(`\bconst\b`),
		regexp.MustCompile(`\blet\b`),
	}
	numberedListPattern = regexp.MustCompile(`\d+\.\s+`)
)

// structureSignal inspects the shape of the query. Its three checks are
// independent and additive.
type structureSignal struct{}

func (s *structureSignal) Name() string { return "structure" }

func (s *structureSignal) Evaluate(query string) (int, []string) {
	points := 0
	var factors []string

	for _, pattern := range codePatterns {
		if pattern.MatchString(query) {
			points += 2
			factors = append(factors, "Contains code or technical content")
			break
		}
	}

	if strings.Count(strings.ToLower(query), "?") > 2 {
		points++
		factors = append(factors, "Multiple questions detected")
	}

	if numberedListPattern.MatchString(query) {
		points++
		factors = append(factors, "Structured list/steps detected")
	}

	return points, factors
}
