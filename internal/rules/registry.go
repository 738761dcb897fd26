// Package rules holds the declarative per-family rule tables and context
// question trees. The data is pure configuration, embedded as YAML and keyed
// by family id; nothing in here executes engineering logic.
package rules

import (
	"embed"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/xref-cli/internal/model"
)

//go:embed families/*.yaml
var familyFS embed.FS

// Family is one component family's reference data.
type Family struct {
	ID          string
	DisplayName string
	Rules       []model.AttributeRule
	Questions   []model.ContextQuestion
}

// Registry holds all loaded families.
type Registry struct {
	families map[string]*Family
}

type familyFile struct {
	Family      string                  `yaml:"family"`
	DisplayName string                  `yaml:"display_name"`
	Rules       []ruleEntry             `yaml:"rules"`
	Questions   []model.ContextQuestion `yaml:"questions"`
}

type ruleEntry struct {
	model.AttributeRule `yaml:",inline"`
	Tier                string `yaml:"tier"`
}

// Load parses every embedded family file and validates it.
func Load() (*Registry, error) {
	entries, err := familyFS.ReadDir("families")
	if err != nil {
		return nil, eris.Wrap(err, "rules: read embedded families")
	}

	reg := &Registry{families: make(map[string]*Family, len(entries))}
	for _, entry := range entries {
		data, err := familyFS.ReadFile("families/" + entry.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "rules: read %s", entry.Name())
		}

		var ff familyFile
		if err := yaml.Unmarshal(data, &ff); err != nil {
			return nil, eris.Wrapf(err, "rules: parse %s", entry.Name())
		}

		fam, err := buildFamily(&ff)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: validate %s", entry.Name())
		}
		if _, dup := reg.families[fam.ID]; dup {
			return nil, eris.Errorf("rules: duplicate family %q", fam.ID)
		}
		reg.families[fam.ID] = fam
	}
	return reg, nil
}

func buildFamily(ff *familyFile) (*Family, error) {
	if ff.Family == "" {
		return nil, eris.New("missing family id")
	}

	fam := &Family{ID: ff.Family, DisplayName: ff.DisplayName}

	seen := make(map[string]bool, len(ff.Rules))
	for _, re := range ff.Rules {
		rule := re.AttributeRule
		if rule.AttributeID == "" {
			return nil, eris.New("rule missing attribute_id")
		}
		if seen[rule.AttributeID] {
			return nil, eris.Errorf("duplicate rule for attribute %q", rule.AttributeID)
		}
		seen[rule.AttributeID] = true

		tier, err := model.ParseTier(re.Tier)
		if err != nil {
			return nil, eris.Wrapf(err, "attribute %q", rule.AttributeID)
		}
		rule.BaseTier = tier

		switch rule.LogicType {
		case model.LogicIdentity, model.LogicIdentityFlag:
		case model.LogicIdentityUpgrade:
			if len(rule.UpgradeOrder) == 0 {
				return nil, eris.Errorf("attribute %q: identity_upgrade needs upgrade_order", rule.AttributeID)
			}
		case model.LogicThreshold:
			if rule.Direction != model.DirectionMin && rule.Direction != model.DirectionMax {
				return nil, eris.Errorf("attribute %q: threshold needs direction min or max", rule.AttributeID)
			}
		case model.LogicFit:
			if rule.FitTolerancePct <= 0 {
				rule.FitTolerancePct = 10
			}
			if rule.FitReviewTolerancePct <= 0 {
				rule.FitReviewTolerancePct = rule.FitTolerancePct * 2
			}
		default:
			return nil, eris.Errorf("attribute %q: unknown logic %q", rule.AttributeID, rule.LogicType)
		}

		if rule.BaseWeight < 0 || rule.BaseWeight > 10 {
			return nil, eris.Errorf("attribute %q: weight %.1f out of range 0-10", rule.AttributeID, rule.BaseWeight)
		}
		fam.Rules = append(fam.Rules, rule)
	}

	priorities := make(map[int]string, len(ff.Questions))
	for _, q := range ff.Questions {
		if q.QuestionID == "" {
			return nil, eris.New("question missing id")
		}
		if prev, dup := priorities[q.Priority]; dup {
			return nil, eris.Errorf("questions %q and %q share priority %d", prev, q.QuestionID, q.Priority)
		}
		priorities[q.Priority] = q.QuestionID
		if len(q.Options) == 0 && !q.AllowFreeText {
			return nil, eris.Errorf("question %q has no options and no free text", q.QuestionID)
		}
		for _, opt := range q.Options {
			for _, eff := range opt.Effects {
				switch eff.Effect {
				case model.EffectEscalateToPrimary, model.EffectEscalateToMandatory,
					model.EffectNotApplicable, model.EffectAddReviewFlag:
				default:
					return nil, eris.Errorf("question %q option %q: unknown effect %q",
						q.QuestionID, opt.Value, eff.Effect)
				}
			}
		}
		fam.Questions = append(fam.Questions, q)
	}

	return fam, nil
}

// Families returns all loaded family ids, sorted.
func (r *Registry) Families() []string {
	ids := make([]string, 0, len(r.families))
	for id := range r.families {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Family returns a family's reference data by id.
func (r *Registry) Family(id string) (*Family, error) {
	fam, ok := r.families[id]
	if !ok {
		return nil, eris.Errorf("rules: unknown family %q", id)
	}
	return fam, nil
}

// RuleTable returns the base rule table for a family.
func (r *Registry) RuleTable(id string) ([]model.AttributeRule, error) {
	fam, err := r.Family(id)
	if err != nil {
		return nil, err
	}
	return fam.Rules, nil
}

// Questions returns the context question tree for a family.
func (r *Registry) Questions(id string) ([]model.ContextQuestion, error) {
	fam, err := r.Family(id)
	if err != nil {
		return nil, err
	}
	return fam.Questions, nil
}
