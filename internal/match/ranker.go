package match

import (
	"sort"

	"github.com/sells-group/xref-cli/internal/model"
)

// Rank orders recommendations best-first: match percentage descending, then
// fewer failing attributes, then Active parts before Obsolete, then MPN for
// a deterministic total order.
func Rank(recs []model.XrefRecommendation) []model.XrefRecommendation {
	out := make([]model.XrefRecommendation, len(recs))
	copy(out, recs)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.MatchPercentage != b.MatchPercentage {
			return a.MatchPercentage > b.MatchPercentage
		}
		af, bf := a.FailCount(), b.FailCount()
		if af != bf {
			return af < bf
		}
		ar, br := statusRank(a.Part.Status), statusRank(b.Part.Status)
		if ar != br {
			return ar < br
		}
		return a.Part.MPN < b.Part.MPN
	})
	return out
}

// statusRank orders part lifecycle statuses for tie-breaking: active parts
// first, obsolete last.
func statusRank(s model.PartStatus) int {
	switch s {
	case model.StatusActive:
		return 0
	case model.StatusNRND:
		return 1
	case model.StatusEOL:
		return 2
	case model.StatusObsolete:
		return 3
	default:
		return 4
	}
}

// FilterObsolete optionally hides obsolete parts from a ranked list. This is
// presentation policy: the caller reapplies it per view and never bakes the
// filtered order into storage.
func FilterObsolete(recs []model.XrefRecommendation, hide bool) []model.XrefRecommendation {
	if !hide {
		return recs
	}
	out := make([]model.XrefRecommendation, 0, len(recs))
	for _, r := range recs {
		if r.Part.Status != model.StatusObsolete {
			out = append(out, r)
		}
	}
	return out
}
