// Package patterns derives behavioral metrics from decisions and
// reflections: prediction accuracy, recurring principles, weekly category
// balance and principle retention.
//
// Everything here is a pure function of its inputs.
package patterns

import (
	"math"
	"regexp"
	"strings"
)

// NeutralScore is returned when there is nothing to compare.
const NeutralScore = 50

// wordRe matches word runs, Unicode letters and digits included.
var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// WordSet returns the distinct lowercase words of text.
func WordSet(text string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Overlap returns the fraction of expected's words found in actual, and
// false when either set is empty.
func Overlap(expected, actual string) (float64, bool) {
	exp, act := WordSet(expected), WordSet(actual)
	if len(exp) == 0 || len(act) == 0 {
		return 0, false
	}
	shared := 0
	for w := range exp {
		if _, ok := act[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(exp)), true
}

// AccuracyScore rates how well actual matched expected on a 0-100 scale.
// Full overlap is reached at two thirds of the expected words.
func AccuracyScore(expected, actual string) int {
	overlap, ok := Overlap(expected, actual)
	if !ok {
		return NeutralScore
	}
	return ClampScore(int(math.Round(150 * overlap)))
}

// ClampScore bounds a score to [0,100].
func ClampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
