package collective

import (
	"sort"
	"strings"

	"github.com/conclave-ai/conclave/pkg/models"
)

// groupingThreshold is the minimum pairwise similarity for two responses
// to land in the same vote group.
const groupingThreshold = 0.7

// wordSet lowercases and splits a response into its set of words.
func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// responseSimilarity computes the Jaccard similarity of two responses'
// word sets. An empty response is similar to nothing.
func responseSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// meanSimilarity is the mean pairwise similarity across all responses.
// A single response trivially agrees with itself.
func meanSimilarity(results []models.IndividualResult) float64 {
	if len(results) < 2 {
		return 1
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			sum += responseSimilarity(results[i].Response, results[j].Response)
			pairs++
		}
	}
	return sum / float64(pairs)
}

// confidenceVariance is the population variance of result confidences.
func confidenceVariance(results []models.IndividualResult) float64 {
	if len(results) < 2 {
		return 0
	}

	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	mean := sum / float64(len(results))

	var variance float64
	for _, r := range results {
		variance += (r.Confidence - mean) * (r.Confidence - mean)
	}
	return variance / float64(len(results))
}

// groupBySimilarity clusters results whose responses exceed the grouping
// threshold. Results are sorted by agent id first so grouping is
// deterministic regardless of arrival order.
func groupBySimilarity(results []models.IndividualResult) [][]models.IndividualResult {
	sorted := append([]models.IndividualResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AgentID < sorted[j].AgentID })

	var groups [][]models.IndividualResult
	for _, r := range sorted {
		placed := false
		for i, group := range groups {
			if responseSimilarity(r.Response, group[0].Response) >= groupingThreshold {
				groups[i] = append(groups[i], r)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []models.IndividualResult{r})
		}
	}
	return groups
}

// bestInGroup returns the highest-confidence result of a group.
func bestInGroup(group []models.IndividualResult) models.IndividualResult {
	best := group[0]
	for _, r := range group[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best
}
