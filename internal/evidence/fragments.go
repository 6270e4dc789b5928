package evidence

import (
	"sort"

	"github.com/ppiankov/citecheck/internal/model"
)

// Combine merges keyword and semantic fragments. The first fragment seen
// for a line_start wins, so keyword hits take precedence. The result is
// sorted by line_start.
func Combine(keyword, semantic []model.Fragment) []model.Fragment {
	return dedupFragments(keyword, semantic)
}

func dedupFragments(groups ...[]model.Fragment) []model.Fragment {
	seen := make(map[int]bool)
	out := make([]model.Fragment, 0)
	for _, group := range groups {
		for _, f := range group {
			if seen[f.LineStart] {
				continue
			}
			seen[f.LineStart] = true
			out = append(out, f)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LineStart < out[j].LineStart
	})
	return out
}
