// Package match implements the parametric cross-reference evaluator: it
// compares a source part against candidates under an effective rule table
// and produces scored, ranked recommendations.
package match

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/xref-cli/internal/model"
)

// Evaluate scores one candidate against the source part under the given
// effective rule table. The boolean is false when the candidate is rejected
// by a mandatory-tier fail; rejection is an expected business outcome, not
// an error.
func Evaluate(table model.EffectiveRuleTable, source, candidate *model.PartAttributes) (*model.XrefRecommendation, bool) {
	attrIDs := make([]string, 0, len(table))
	for id := range table {
		attrIDs = append(attrIDs, id)
	}
	sort.Strings(attrIDs)

	var (
		details     []model.MatchDetail
		weightSum   float64
		weightedSum float64
		rejected    bool
	)

	for _, id := range attrIDs {
		er := table[id]
		if er.Tier == model.TierNotApplicable {
			continue
		}

		srcParam := source.Parameter(id)
		candParam := candidate.Parameter(id)

		detail := model.MatchDetail{ParameterID: id}

		switch {
		case candParam == nil || candParam.Value == "":
			if er.Blocking {
				// Absent data on a blocking attribute is never a silent
				// skip: it surfaces as a review with a visible reason. On a
				// mandatory tier this replaces outright rejection so the
				// candidate stays reviewable instead of vanishing.
				detail.RuleResult = model.ResultReview
				detail.MatchStatus = model.MatchDifferent
				if er.Tier == model.TierMandatory {
					detail.Note = fmt.Sprintf("mandatory review: no data for %s on candidate", id)
				} else {
					detail.Note = fmt.Sprintf("no data for %s on candidate", id)
				}
			} else {
				detail.RuleResult = model.ResultInfo
				detail.MatchStatus = model.MatchDifferent
				detail.Note = fmt.Sprintf("no data for %s on candidate", id)
			}
		case srcParam == nil || srcParam.Value == "":
			// Nothing to compare against on the source side.
			detail.RuleResult = model.ResultInfo
			detail.MatchStatus = model.MatchDifferent
			detail.Note = fmt.Sprintf("no data for %s on source part", id)
		default:
			detail.RuleResult, detail.Note = compareValues(er.Rule, srcParam.Value, candParam.Value)
			detail.MatchStatus = rawStatus(er.Rule, srcParam.Value, candParam.Value)
		}

		if detail.RuleResult == model.ResultReview {
			for _, flag := range er.ReviewFlags {
				if detail.Note != "" {
					detail.Note += "; "
				}
				detail.Note += flag
			}
		}

		if detail.RuleResult == model.ResultFail && er.Tier == model.TierMandatory {
			rejected = true
		}

		if detail.RuleResult != model.ResultInfo {
			weightSum += er.Weight
			weightedSum += er.Weight * detail.RuleResult.Score()
		}

		details = append(details, detail)
	}

	if rejected {
		return nil, false
	}

	pct := 100.0
	if weightSum > 0 {
		pct = 100 * weightedSum / weightSum
	}
	pct = math.Round(pct*100) / 100

	return &model.XrefRecommendation{
		Part:            *candidate,
		MatchDetails:    details,
		MatchPercentage: pct,
		Notes:           synthesizeNotes(details),
	}, true
}

// compareValues applies the rule's comparison logic and returns the policy
// verdict plus a note for anything below a clean pass.
func compareValues(rule model.AttributeRule, srcVal, candVal string) (model.RuleResult, string) {
	switch rule.LogicType {
	case model.LogicIdentity:
		if normalizeCategory(srcVal) == normalizeCategory(candVal) {
			return model.ResultPass, ""
		}
		return model.ResultFail, fmt.Sprintf("%s differs: %s vs %s", rule.AttributeID, srcVal, candVal)

	case model.LogicIdentityUpgrade:
		return compareUpgrade(rule, srcVal, candVal)

	case model.LogicIdentityFlag:
		srcFlag, srcOK := parseFlag(srcVal)
		candFlag, candOK := parseFlag(candVal)
		if !srcOK || !candOK {
			return model.ResultReview, fmt.Sprintf("%s has an unrecognized flag value", rule.AttributeID)
		}
		if srcFlag == candFlag {
			return model.ResultPass, ""
		}
		return model.ResultFail, fmt.Sprintf("%s differs: %s vs %s", rule.AttributeID, srcVal, candVal)

	case model.LogicThreshold:
		return compareThreshold(rule, srcVal, candVal)

	case model.LogicFit:
		return compareFit(rule, srcVal, candVal)

	default:
		return model.ResultInfo, fmt.Sprintf("%s: unsupported logic %s", rule.AttributeID, rule.LogicType)
	}
}

func compareUpgrade(rule model.AttributeRule, srcVal, candVal string) (model.RuleResult, string) {
	srcRank := upgradeRank(rule.UpgradeOrder, srcVal)
	candRank := upgradeRank(rule.UpgradeOrder, candVal)

	if normalizeCategory(srcVal) == normalizeCategory(candVal) {
		return model.ResultPass, ""
	}
	if srcRank >= 0 && candRank > srcRank {
		return model.ResultUpgrade, fmt.Sprintf("%s upgraded: %s replaces %s", rule.AttributeID, candVal, srcVal)
	}
	return model.ResultFail, fmt.Sprintf("%s differs: %s vs %s", rule.AttributeID, srcVal, candVal)
}

func upgradeRank(order []string, val string) int {
	norm := normalizeCategory(val)
	for i, v := range order {
		if normalizeCategory(v) == norm {
			return i
		}
	}
	return -1
}

func compareThreshold(rule model.AttributeRule, srcVal, candVal string) (model.RuleResult, string) {
	src, srcOK := ParseQuantity(srcVal)
	cand, candOK := ParseQuantity(candVal)
	if !srcOK || !candOK {
		return model.ResultReview, fmt.Sprintf("%s could not be parsed for comparison", rule.AttributeID)
	}

	band := math.Abs(src) * rule.ReviewTolerancePct / 100

	if rule.Direction == model.DirectionMax {
		switch {
		case cand <= src:
			return model.ResultPass, ""
		case cand <= src+band:
			return model.ResultReview, fmt.Sprintf("%s slightly above limit: %s vs %s", rule.AttributeID, candVal, srcVal)
		default:
			return model.ResultFail, fmt.Sprintf("%s exceeds limit: %s vs %s", rule.AttributeID, candVal, srcVal)
		}
	}

	switch {
	case cand >= src:
		return model.ResultPass, ""
	case cand >= src-band:
		return model.ResultReview, fmt.Sprintf("%s slightly below requirement: %s vs %s", rule.AttributeID, candVal, srcVal)
	default:
		return model.ResultFail, fmt.Sprintf("%s below requirement: %s vs %s", rule.AttributeID, candVal, srcVal)
	}
}

func compareFit(rule model.AttributeRule, srcVal, candVal string) (model.RuleResult, string) {
	src, srcOK := ParseQuantity(srcVal)
	cand, candOK := ParseQuantity(candVal)
	if !srcOK || !candOK {
		return model.ResultReview, fmt.Sprintf("%s could not be parsed for comparison", rule.AttributeID)
	}
	if src == 0 {
		if cand == 0 {
			return model.ResultPass, ""
		}
		return model.ResultFail, fmt.Sprintf("%s differs: %s vs %s", rule.AttributeID, candVal, srcVal)
	}

	deviationPct := math.Abs(cand-src) / math.Abs(src) * 100
	switch {
	case deviationPct <= rule.FitTolerancePct:
		return model.ResultPass, ""
	case deviationPct <= rule.FitReviewTolerancePct:
		return model.ResultReview, fmt.Sprintf("%s off nominal by %.0f%%: %s vs %s", rule.AttributeID, deviationPct, candVal, srcVal)
	default:
		return model.ResultFail, fmt.Sprintf("%s off nominal by %.0f%%: %s vs %s", rule.AttributeID, deviationPct, candVal, srcVal)
	}
}

// rawStatus derives the display-only magnitude comparison. It never feeds
// the score.
func rawStatus(rule model.AttributeRule, srcVal, candVal string) model.MatchStatus {
	switch rule.LogicType {
	case model.LogicIdentity, model.LogicIdentityFlag:
		if normalizeCategory(srcVal) == normalizeCategory(candVal) {
			return model.MatchExact
		}
		return model.MatchDifferent

	case model.LogicIdentityUpgrade:
		srcRank := upgradeRank(rule.UpgradeOrder, srcVal)
		candRank := upgradeRank(rule.UpgradeOrder, candVal)
		switch {
		case normalizeCategory(srcVal) == normalizeCategory(candVal):
			return model.MatchExact
		case srcRank >= 0 && candRank > srcRank:
			return model.MatchBetter
		case candRank >= 0 && candRank < srcRank:
			return model.MatchWorse
		default:
			return model.MatchDifferent
		}

	case model.LogicThreshold:
		src, srcOK := ParseQuantity(srcVal)
		cand, candOK := ParseQuantity(candVal)
		if !srcOK || !candOK {
			return model.MatchDifferent
		}
		switch {
		case cand == src:
			return model.MatchExact
		case (rule.Direction == model.DirectionMin) == (cand > src):
			return model.MatchBetter
		default:
			return model.MatchWorse
		}

	case model.LogicFit:
		src, srcOK := ParseQuantity(srcVal)
		cand, candOK := ParseQuantity(candVal)
		if !srcOK || !candOK {
			return model.MatchDifferent
		}
		if cand == src {
			return model.MatchExact
		}
		if src != 0 && math.Abs(cand-src)/math.Abs(src)*100 <= rule.FitTolerancePct {
			return model.MatchCompatible
		}
		return model.MatchDifferent
	}
	return model.MatchDifferent
}

// synthesizeNotes picks the note of the worst-offending attribute: fails
// before reviews before info, in detail order for determinism.
func synthesizeNotes(details []model.MatchDetail) string {
	byResult := func(want model.RuleResult) string {
		for _, d := range details {
			if d.RuleResult == want && d.Note != "" {
				return d.Note
			}
		}
		return ""
	}
	for _, want := range []model.RuleResult{model.ResultFail, model.ResultReview, model.ResultInfo} {
		if note := byResult(want); note != "" {
			return note
		}
	}
	return ""
}
