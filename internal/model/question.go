package model

// EffectType is the kind of mutation a context answer applies to a rule.
type EffectType string

const (
	EffectEscalateToPrimary   EffectType = "escalate_to_primary"
	EffectEscalateToMandatory EffectType = "escalate_to_mandatory"
	EffectNotApplicable       EffectType = "not_applicable"
	EffectAddReviewFlag       EffectType = "add_review_flag"
)

// TargetTier returns the tier an escalation effect raises to, or
// TierNotApplicable for non-escalating effects.
func (e EffectType) TargetTier() Tier {
	switch e {
	case EffectEscalateToPrimary:
		return TierPrimary
	case EffectEscalateToMandatory:
		return TierMandatory
	default:
		return TierNotApplicable
	}
}

// AttributeEffect is one rule mutation attached to a context option.
type AttributeEffect struct {
	AttributeID    string     `json:"attributeId" yaml:"attribute_id"`
	Effect         EffectType `json:"effect" yaml:"effect"`
	Note           string     `json:"note" yaml:"note"`
	BlockOnMissing bool       `json:"blockOnMissing,omitempty" yaml:"block_on_missing"`
}

// ContextOption is one selectable answer to a context question.
type ContextOption struct {
	Value   string            `json:"value" yaml:"value"`
	Label   string            `json:"label" yaml:"label"`
	Effects []AttributeEffect `json:"attributeEffects" yaml:"effects"`
}

// QuestionCondition gates a question's visibility on a prior answer.
type QuestionCondition struct {
	DependsOn     string   `json:"dependsOnQuestionId" yaml:"depends_on"`
	AllowedValues []string `json:"allowedValues" yaml:"allowed_values"`
}

// Allows reports whether the given answer satisfies the condition.
func (c *QuestionCondition) Allows(answer string) bool {
	for _, v := range c.AllowedValues {
		if v == answer {
			return true
		}
	}
	return false
}

// ContextQuestion is one entry in a family's question tree. Priority is the
// evaluation and display order; lower values are processed first.
type ContextQuestion struct {
	QuestionID    string             `json:"questionId" yaml:"id"`
	Text          string             `json:"questionText" yaml:"text"`
	Priority      int                `json:"priority" yaml:"priority"`
	Condition     *QuestionCondition `json:"condition,omitempty" yaml:"condition"`
	AllowFreeText bool               `json:"allowFreeText,omitempty" yaml:"allow_free_text"`
	Options       []ContextOption    `json:"options" yaml:"options"`
}

// Option returns the option with the given value, or nil. Free-text answers
// that match no option select nothing.
func (q *ContextQuestion) Option(value string) *ContextOption {
	for i := range q.Options {
		if q.Options[i].Value == value {
			return &q.Options[i]
		}
	}
	return nil
}

// VisibleQuestions filters questions to those whose condition is satisfied
// by the given answers. A question with no condition is always visible.
func VisibleQuestions(questions []ContextQuestion, answers map[string]string) []ContextQuestion {
	var visible []ContextQuestion
	for _, q := range questions {
		if q.Condition == nil {
			visible = append(visible, q)
			continue
		}
		answer, answered := answers[q.Condition.DependsOn]
		if answered && q.Condition.Allows(answer) {
			visible = append(visible, q)
		}
	}
	return visible
}
