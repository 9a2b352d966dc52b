package view

import (
	"context"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sentientrolodex/backend/pkg/store"
)

// SearchResult is one matching space with its relevance score.
type SearchResult struct {
	Space store.ContractSpace `json:"space"`
	Score float64             `json:"score"`
}

const minSearchScore = 0.3

// SearchSpaces scans all spaces and ranks them against the keyword.
// Matching covers the space name and its contract identifiers.
func (a *Aggregator) SearchSpaces(ctx context.Context, keyword string, limit int) ([]SearchResult, error) {
	spaces, err := a.store.ListSpaces(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	query := strings.ToLower(strings.TrimSpace(keyword))
	results := make([]SearchResult, 0)
	for _, sp := range spaces {
		score := matchScore(query, strings.ToLower(sp.Name))
		for _, cid := range sp.Contracts {
			if s := matchScore(query, strings.ToLower(cid)); s > score {
				score = s
			}
		}
		if score >= minSearchScore {
			results = append(results, SearchResult{Space: sp, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// matchScore ranks candidate against query: exact match 1.0, substring
// 0.95, otherwise normalized Levenshtein similarity.
func matchScore(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	if query == candidate {
		return 1.0
	}
	if strings.Contains(candidate, query) {
		return 0.95
	}

	dist := levenshtein.Distance(query, candidate, nil)
	maxLen := float64(len(query))
	if len(candidate) > int(maxLen) {
		maxLen = float64(len(candidate))
	}
	score := 1.0 - float64(dist)/maxLen
	if score < 0 {
		return 0
	}
	return score
}
