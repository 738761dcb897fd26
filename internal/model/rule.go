package model

import "github.com/rotisserie/eris"

// Tier is the importance class of an attribute rule. Tiers are ordered:
// escalation raises a tier and never lowers it, so NotApplicable < Secondary
// < Primary < Mandatory.
type Tier int

const (
	TierNotApplicable Tier = iota
	TierSecondary
	TierPrimary
	TierMandatory
)

func (t Tier) String() string {
	switch t {
	case TierNotApplicable:
		return "not_applicable"
	case TierSecondary:
		return "secondary"
	case TierPrimary:
		return "primary"
	case TierMandatory:
		return "mandatory"
	default:
		return "unknown"
	}
}

// ParseTier converts a rule-table string to a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "not_applicable":
		return TierNotApplicable, nil
	case "secondary":
		return TierSecondary, nil
	case "primary":
		return TierPrimary, nil
	case "mandatory":
		return TierMandatory, nil
	default:
		return TierNotApplicable, eris.Errorf("unknown tier %q", s)
	}
}

// MaxTier returns the higher of two tiers.
func MaxTier(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}

// LogicType selects the comparison applied to an attribute.
type LogicType string

const (
	LogicIdentity        LogicType = "identity"
	LogicIdentityUpgrade LogicType = "identity_upgrade"
	LogicIdentityFlag    LogicType = "identity_flag"
	LogicThreshold       LogicType = "threshold"
	LogicFit             LogicType = "fit"
)

// ThresholdDirection is the required direction for a threshold rule: "min"
// means the candidate must be >= the source, "max" means <=.
type ThresholdDirection string

const (
	DirectionMin ThresholdDirection = "min"
	DirectionMax ThresholdDirection = "max"
)

// AttributeRule is one entry in a family's base rule table. Rule tables are
// read-only reference data keyed by family.
type AttributeRule struct {
	AttributeID string             `json:"attributeId" yaml:"attribute_id"`
	LogicType   LogicType          `json:"logicType" yaml:"logic"`
	BaseTier    Tier               `json:"baseTier" yaml:"-"`
	BaseWeight  float64            `json:"baseWeight" yaml:"weight"`
	Direction   ThresholdDirection `json:"direction,omitempty" yaml:"direction"`

	// ReviewTolerancePct is the threshold-rule band on the wrong side of the
	// limit that yields review instead of fail (percent of the source value).
	ReviewTolerancePct float64 `json:"reviewTolerancePct,omitempty" yaml:"review_tolerance_pct"`

	// FitTolerancePct / FitReviewTolerancePct are the symmetric pass and
	// review windows for fit rules (percent of the source value).
	FitTolerancePct       float64 `json:"fitTolerancePct,omitempty" yaml:"fit_tolerance_pct"`
	FitReviewTolerancePct float64 `json:"fitReviewTolerancePct,omitempty" yaml:"fit_review_tolerance_pct"`

	// UpgradeOrder ranks category values for identity_upgrade rules, worst
	// to best. A candidate strictly later in the order than the source is an
	// upgrade.
	UpgradeOrder []string `json:"upgradeOrder,omitempty" yaml:"upgrade_order"`
}

// EffectiveRule is the per-match resolution of one attribute after context
// escalation has been folded over the base rule.
type EffectiveRule struct {
	Rule        AttributeRule
	Tier        Tier
	Weight      float64
	ReviewFlags []string
	Blocking    bool
}

// EffectiveRuleTable maps attribute id to its effective rule for one matching
// run. Derived and ephemeral: recomputed per search, never persisted.
type EffectiveRuleTable map[string]EffectiveRule
