package scoring

import (
	"fmt"
	"strings"
)

// TextSimilarity rates a normalised submission against one normalised acceptable answer.
// Results are clamped to [0, 1] by the scorer.
type TextSimilarity func(submitted, accepted string) float64

// Similarity strategy names accepted by ParseSimilarity.
const (
	SimilarityKeyword      = "keyword"
	SimilarityEditDistance = "edit_distance"
)

// KeywordOverlap is the share of the accepted answer's distinct whitespace tokens that also
// appear in the submission.
func KeywordOverlap(submitted, accepted string) float64 {
	want := tokenSet(accepted)
	if len(want) == 0 {
		return 0
	}
	got := tokenSet(submitted)
	common := 0
	for tok := range want {
		if _, ok := got[tok]; ok {
			common++
		}
	}
	return float64(common) / float64(len(want))
}

// EditDistanceSimilarity tolerates up to maxEdits character edits (typos) on top of keyword
// overlap. A submission within the edit budget scores 1 - edits/len(accepted).
func EditDistanceSimilarity(maxEdits int) TextSimilarity {
	return func(submitted, accepted string) float64 {
		best := KeywordOverlap(submitted, accepted)
		if maxEdits <= 0 {
			return best
		}
		length := len([]rune(accepted))
		if length == 0 {
			return best
		}
		d := levenshtein(submitted, accepted)
		if d <= maxEdits {
			if s := 1 - float64(d)/float64(length); s > best {
				best = s
			}
		}
		return best
	}
}

// ParseSimilarity maps a configured strategy name to its implementation.
func ParseSimilarity(name string, maxEdits int) (TextSimilarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SimilarityKeyword:
		return KeywordOverlap, nil
	case SimilarityEditDistance:
		return EditDistanceSimilarity(maxEdits), nil
	default:
		return nil, fmt.Errorf("unknown text similarity strategy %q", name)
	}
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// levenshtein computes edit distance (insertion, deletion, substitution cost 1).
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}
