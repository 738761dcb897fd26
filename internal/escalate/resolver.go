// Package escalate folds answered context questions over a family's base
// rule table, producing the effective rule table for one matching run.
package escalate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/xref-cli/internal/model"
)

// Resolve builds the effective rule table for one search. It is pure and
// deterministic: identical inputs always produce an identical table.
//
// Questions are processed in ascending priority order; only visible,
// answered questions contribute effects. Unanswered visible questions are
// treated as skip/unknown — no default answer is ever assumed.
func Resolve(base []model.AttributeRule, questions []model.ContextQuestion, answers map[string]string) model.EffectiveRuleTable {
	table := make(model.EffectiveRuleTable, len(base))
	for _, rule := range base {
		table[rule.AttributeID] = model.EffectiveRule{
			Rule:   rule,
			Tier:   rule.BaseTier,
			Weight: rule.BaseWeight,
		}
	}

	visible := model.VisibleQuestions(questions, answers)
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Priority < visible[j].Priority
	})

	for _, q := range visible {
		answer, answered := answers[q.QuestionID]
		if !answered {
			continue
		}
		opt := q.Option(answer)
		if opt == nil {
			// Free text or an unknown value: contributes no effects.
			continue
		}
		for _, eff := range opt.Effects {
			applyEffect(table, q.QuestionID, eff)
		}
	}

	return table
}

// applyEffect mutates the working table with one effect, preserving the
// ordering rules: escalation is max() and never downgrades, a later
// escalation overrides an earlier not_applicable, and not_applicable clears
// a previously set blocking mark.
func applyEffect(table model.EffectiveRuleTable, questionID string, eff model.AttributeEffect) {
	er, ok := table[eff.AttributeID]
	if !ok {
		// A question set may reference attributes a simplified rule table
		// does not carry yet. Non-fatal.
		zap.L().Warn("escalate: effect references unknown attribute",
			zap.String("question_id", questionID),
			zap.String("attribute_id", eff.AttributeID),
			zap.String("effect", string(eff.Effect)),
		)
		return
	}

	switch eff.Effect {
	case model.EffectEscalateToPrimary, model.EffectEscalateToMandatory:
		er.Tier = model.MaxTier(er.Tier, eff.Effect.TargetTier())
	case model.EffectNotApplicable:
		er.Tier = model.TierNotApplicable
		er.Blocking = false
	case model.EffectAddReviewFlag:
		if eff.Note != "" {
			er.ReviewFlags = append(er.ReviewFlags, eff.Note)
		}
	}

	if eff.BlockOnMissing && eff.Effect != model.EffectNotApplicable {
		er.Blocking = true
	}

	table[eff.AttributeID] = er
}
