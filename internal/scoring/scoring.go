// Package scoring turns dream content into a bounded composite score.
//
// Evaluate is pure: the same Content always produces the same Result.
package scoring

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Content is the scorable part of a dream or cocoon.
type Content struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Score          int            `json:"score"`
	Raw            int            `json:"raw"`
	CategoryScores map[string]int `json:"category_scores"`
	Bonus          int            `json:"bonus,omitempty"`
	Diversity      int            `json:"diversity,omitempty"`
	Detail         int            `json:"detail,omitempty"`
	Penalty        int            `json:"penalty,omitempty"`
	Rationale      []string       `json:"rationale"`
}

// NoSignal is the only rationale line when nothing contributed.
const NoSignal = "no significant signal"

// Scorer evaluates content.
type Scorer interface {
	Evaluate(c Content) Result
}

// Engine is the default Scorer.
type Engine struct{}

// Evaluate implements Scorer.
func (Engine) Evaluate(c Content) Result { return Evaluate(c) }

// Evaluate scores c.
func Evaluate(c Content) Result {
	corpus := strings.ToLower(strings.Join(append([]string{c.Title, c.Description}, c.Tags...), " "))
	words := tokenize(corpus)
	text := " " + strings.Join(words, " ") + " "

	res := Result{CategoryScores: map[string]int{}}
	total := 0

	for _, cat := range Categories {
		n := countMatches(text, cat.Keywords)
		sub := min(n*PointsPerMatch, CategoryCap)
		if sub == 0 {
			continue
		}
		res.CategoryScores[cat.Name] = sub
		total += sub
		res.Rationale = append(res.Rationale, fmt.Sprintf("%s: %d keyword %s (+%d)", cat.Name, n, plural(n, "match", "matches"), sub))
	}

	if hits := matchedKeywords(text, BonusKeywords); len(hits) > 0 {
		res.Bonus = len(hits) * BonusPoints
		total += res.Bonus
		res.Rationale = append(res.Rationale, fmt.Sprintf("bonus keywords: %s (+%d)", strings.Join(hits, ", "), res.Bonus))
	}

	if n := distinctTags(c.Tags); n >= MinDiverseTags {
		res.Diversity = min(n*PointsPerTag, DiversityCap)
		total += res.Diversity
		res.Rationale = append(res.Rationale, fmt.Sprintf("tag diversity: %d distinct tags (+%d)", n, res.Diversity))
	}

	if n := utf8.RuneCountInString(c.Description); n > DetailMinLength {
		res.Detail = min(n/DetailCharsPerPoint, DetailCap)
		total += res.Detail
		res.Rationale = append(res.Rationale, fmt.Sprintf("detailed description: %d characters (+%d)", n, res.Detail))
	}

	// The penalty is not capped and may push the total below zero before the
	// final clamp.
	generic := 0
	for _, w := range words {
		if GenericWords[w] {
			generic++
		}
	}
	if generic > GenericThreshold {
		res.Penalty = generic * PointsPerGenericWord
		total -= res.Penalty
		res.Rationale = append(res.Rationale, fmt.Sprintf("generic language: %d generic words (-%d)", generic, res.Penalty))
	}

	res.Raw = total
	res.Score = max(0, min(total, MaxScore))
	if len(res.Rationale) == 0 {
		res.Rationale = []string{NoSignal}
	}
	return res
}

// tokenize splits on anything that is not a letter, digit or inner hyphen.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	words := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, " "+kw+" ") {
			n++
		}
	}
	return n
}

func matchedKeywords(text string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(text, " "+kw+" ") {
			hits = append(hits, kw)
		}
	}
	return hits
}

func distinctTags(tags []string) int {
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			seen[t] = true
		}
	}
	return len(seen)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
