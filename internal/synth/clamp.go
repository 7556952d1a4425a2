package synth

import (
	"math"
	"regexp"
	"strconv"
)

const (
	scoreMin = 1
	scoreMax = 10
)

var digitsRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ClampScore sanitizes a model-produced score to an integer in [1, 10].
// Numbers are rounded and clamped; numeric text ("8/10", "score: 12") has
// its first number extracted; anything else bottoms out at 1. Out-of-range
// output is clamped, not rejected.
func ClampScore(v any) int {
	switch n := v.(type) {
	case float64:
		return clampInt(int(math.Round(n)))
	case int:
		return clampInt(n)
	case string:
		if m := digitsRe.FindString(n); m != "" {
			f, err := strconv.ParseFloat(m, 64)
			if err == nil {
				return clampInt(int(math.Round(f)))
			}
		}
	}
	return scoreMin
}

func clampInt(n int) int {
	if n < scoreMin {
		return scoreMin
	}
	if n > scoreMax {
		return scoreMax
	}
	return n
}
