package search

import "github.com/mesh-intelligence/cypress/pkg/types"

// Filter drops the searching user and anyone already in existing.
func Filter(results []types.User, self string, existing []types.User) []types.User {
	skip := make(map[string]bool, len(existing)+1)
	skip[self] = true
	for _, u := range existing {
		skip[u.ID] = true
	}
	out := make([]types.User, 0, len(results))
	for _, u := range results {
		if !skip[u.ID] {
			out = append(out, u)
		}
	}
	return out
}
