package canonical

import (
	"math"

	"golang.org/x/text/cases"
)

// Ratio scores two strings 0..100 by normalised insertion/deletion distance,
// ignoring case: 100·2·LCS / (len(a)+len(b)), rounded half away from zero.
func Ratio(a, b string) int {
	fold := cases.Fold()
	return ratioRunes([]rune(fold.String(a)), []rune(fold.String(b)))
}

func ratioRunes(a, b []rune) int {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(200*lcsLength(a, b)) / float64(total)))
}

// lcsLength is the classic two-row dynamic program.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
