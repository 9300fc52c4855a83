package crawl

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Scorer rates a card against a query. Scores are clamped to [0, 1] by
// the engine's default implementation; custom scorers should do the same.
type Scorer func(query string, r Result) float64

const (
	termWeight = 0.65
	voteWeight = 0.35
	// log10 of one million, the vote count at which popularity saturates.
	voteLogCeiling = 6
)

// DefaultScorer blends query-term coverage with vote popularity.
//
// Term coverage: each query term found in the title counts full, found
// only in the summary counts half. Popularity: log-scaled vote count so
// a thousand-vote answer beats a ten-vote one without drowning out the
// text match. Monotonic in both inputs.
func DefaultScorer(query string, r Result) float64 {
	s := termWeight*termCoverage(query, r.Title, r.Summary) + voteWeight*voteScale(r.VoteCount)
	return math.Min(1, math.Max(0, s))
}

func termCoverage(query, title, summary string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	title = strings.ToLower(title)
	summary = strings.ToLower(summary)

	var hit float64
	for _, t := range terms {
		switch {
		case strings.Contains(title, t):
			hit += 1
		case strings.Contains(summary, t):
			hit += 0.5
		}
	}
	return hit / float64(len(terms))
}

func voteScale(votes int) float64 {
	if votes <= 0 {
		return 0
	}
	return math.Min(1, math.Log10(float64(votes)+1)/voteLogCeiling)
}

var countPattern = regexp.MustCompile(`([0-9]+(?:[.,][0-9]+)*)\s*(万|[wW]|[kK])?`)

// ParseCount reads a human-formatted count as displayed on result cards:
// "3,456", "1.2万" (and its "w" transliteration), "2.1k". Unparseable
// text yields zero.
func ParseCount(s string) int {
	m := countPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	// Commas are thousands separators, dots are decimals.
	num := strings.ReplaceAll(m[1], ",", "")
	mult := 1.0
	switch m[2] {
	case "万", "w", "W":
		mult = 10000
	case "k", "K":
		mult = 1000
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return int(v * mult)
}
