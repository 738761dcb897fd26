package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xref-cli/internal/model"
)

func rec(mpn string, pct float64, status model.PartStatus, fails int) model.XrefRecommendation {
	r := model.XrefRecommendation{
		Part:            model.PartAttributes{MPN: mpn, Status: status},
		MatchPercentage: pct,
	}
	for range fails {
		r.MatchDetails = append(r.MatchDetails, model.MatchDetail{RuleResult: model.ResultFail})
	}
	return r
}

func TestRankByPercentage(t *testing.T) {
	ranked := Rank([]model.XrefRecommendation{
		rec("B", 80, model.StatusActive, 0),
		rec("A", 95, model.StatusActive, 0),
		rec("C", 60, model.StatusActive, 0),
	})

	assert.Equal(t, "A", ranked[0].Part.MPN)
	assert.Equal(t, "B", ranked[1].Part.MPN)
	assert.Equal(t, "C", ranked[2].Part.MPN)
}

func TestRankTieBreakFailCount(t *testing.T) {
	ranked := Rank([]model.XrefRecommendation{
		rec("MANY-FAILS", 80, model.StatusActive, 3),
		rec("FEW-FAILS", 80, model.StatusActive, 1),
	})

	assert.Equal(t, "FEW-FAILS", ranked[0].Part.MPN)
}

func TestRankTieBreakStatus(t *testing.T) {
	ranked := Rank([]model.XrefRecommendation{
		rec("OBS", 80, model.StatusObsolete, 0),
		rec("EOL", 80, model.StatusEOL, 0),
		rec("ACT", 80, model.StatusActive, 0),
		rec("NRD", 80, model.StatusNRND, 0),
	})

	got := []string{ranked[0].Part.MPN, ranked[1].Part.MPN, ranked[2].Part.MPN, ranked[3].Part.MPN}
	assert.Equal(t, []string{"ACT", "NRD", "EOL", "OBS"}, got)
}

func TestRankTieBreakMPN(t *testing.T) {
	ranked := Rank([]model.XrefRecommendation{
		rec("ZZZ", 80, model.StatusActive, 0),
		rec("AAA", 80, model.StatusActive, 0),
	})

	assert.Equal(t, "AAA", ranked[0].Part.MPN)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := []model.XrefRecommendation{
		rec("B", 10, model.StatusActive, 0),
		rec("A", 90, model.StatusActive, 0),
	}
	_ = Rank(in)
	assert.Equal(t, "B", in[0].Part.MPN)
}

func TestFilterObsolete(t *testing.T) {
	recs := []model.XrefRecommendation{
		rec("A", 90, model.StatusActive, 0),
		rec("B", 85, model.StatusObsolete, 0),
		rec("C", 80, model.StatusEOL, 0),
	}

	kept := FilterObsolete(recs, true)
	require.Len(t, kept, 2)
	assert.Equal(t, "A", kept[0].Part.MPN)
	assert.Equal(t, "C", kept[1].Part.MPN)

	// hide=false is a pass-through; the caller reapplies per view.
	assert.Len(t, FilterObsolete(recs, false), 3)
}
