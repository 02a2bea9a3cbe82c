package deepsearch

import (
	"math"
	"strings"
)

// Score rates how well content matches a keyword set, in [0,1]. With
// no keywords every document scores 1.0 so ranking is a no-op. Each
// keyword contributes min(1.0, 0.1 + 0.1*count), capped so that
// high-frequency terms cannot dominate, and the sum is averaged over
// the keyword count.
func Score(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1.0
	}

	lower := strings.ToLower(content)
	score := 0.0
	for _, keyword := range keywords {
		count := strings.Count(lower, strings.ToLower(keyword))
		if count > 0 {
			score += math.Min(1.0, 0.1+0.1*float64(count))
		}
	}
	return score / float64(len(keywords))
}
