package model

// MatchStatus is the raw value comparison between source and candidate for
// one attribute. It is display-only and never feeds the score.
type MatchStatus string

const (
	MatchExact      MatchStatus = "exact"
	MatchBetter     MatchStatus = "better"
	MatchWorse      MatchStatus = "worse"
	MatchCompatible MatchStatus = "compatible"
	MatchDifferent  MatchStatus = "different"
)

// RuleResult is the policy verdict for one attribute under the effective
// rule table.
type RuleResult string

const (
	ResultPass    RuleResult = "pass"
	ResultUpgrade RuleResult = "upgrade"
	ResultReview  RuleResult = "review"
	ResultFail    RuleResult = "fail"
	ResultInfo    RuleResult = "info"
)

// Score returns the weight multiplier for a rule result. Info results are
// excluded from the weighted sum before this is applied.
func (r RuleResult) Score() float64 {
	switch r {
	case ResultPass, ResultUpgrade:
		return 1.0
	case ResultReview:
		return 0.5
	default:
		return 0.0
	}
}

// MatchDetail is the per-attribute outcome for one candidate.
type MatchDetail struct {
	ParameterID string      `json:"parameterId"`
	MatchStatus MatchStatus `json:"matchStatus"`
	RuleResult  RuleResult  `json:"ruleResult"`
	Note        string      `json:"note,omitempty"`
}

// XrefRecommendation is one candidate's scored verdict.
type XrefRecommendation struct {
	Part            PartAttributes `json:"part"`
	MatchDetails    []MatchDetail  `json:"matchDetails"`
	MatchPercentage float64        `json:"matchPercentage"`
	Notes           string         `json:"notes,omitempty"`
}

// FailCount returns the number of attributes with a fail verdict. Used by
// the ranker as a tie-break.
func (r *XrefRecommendation) FailCount() int {
	n := 0
	for _, d := range r.MatchDetails {
		if d.RuleResult == ResultFail {
			n++
		}
	}
	return n
}
