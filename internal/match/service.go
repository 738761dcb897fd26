package match

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/xref-cli/internal/escalate"
	"github.com/sells-group/xref-cli/internal/model"
	"github.com/sells-group/xref-cli/internal/rules"
)

// CatalogSource provides part data from the component catalog.
type CatalogSource interface {
	GetPart(ctx context.Context, mpn string) (*model.PartAttributes, error)
	GetCandidates(ctx context.Context, family, mpn string) ([]model.PartAttributes, error)
}

// Request describes one synchronous matching run.
type Request struct {
	MPN                string            `json:"mpn"`
	Overrides          map[string]string `json:"overrides,omitempty"`
	ApplicationContext map[string]string `json:"applicationContext,omitempty"`
	HideObsolete       bool              `json:"hideObsolete,omitempty"`
}

// Service runs the full matching flow: fetch source part and candidate
// pool, resolve the effective rule table, evaluate, rank.
type Service struct {
	catalog     CatalogSource
	registry    *rules.Registry
	concurrency int
}

// NewService creates a matching service. concurrency bounds candidate
// evaluation fan-out; values below 1 are treated as 1.
func NewService(catalog CatalogSource, registry *rules.Registry, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{catalog: catalog, registry: registry, concurrency: concurrency}
}

// Match returns the ranked recommendation list for a source MPN. A valid
// run with no surviving candidates returns an empty list, not an error.
func (s *Service) Match(ctx context.Context, req Request) ([]model.XrefRecommendation, error) {
	source, err := s.catalog.GetPart(ctx, req.MPN)
	if err != nil {
		return nil, eris.Wrapf(err, "match: fetch source part %s", req.MPN)
	}
	if len(req.Overrides) > 0 {
		overridden := source.WithOverrides(req.Overrides)
		source = &overridden
	}

	family := source.Subcategory
	base, err := s.registry.RuleTable(family)
	if err != nil {
		return nil, eris.Wrapf(err, "match: rule table for %s", req.MPN)
	}
	questions, err := s.registry.Questions(family)
	if err != nil {
		return nil, eris.Wrapf(err, "match: questions for %s", req.MPN)
	}

	table := escalate.Resolve(base, questions, req.ApplicationContext)

	candidates, err := s.catalog.GetCandidates(ctx, family, req.MPN)
	if err != nil {
		return nil, eris.Wrapf(err, "match: fetch candidates for %s", req.MPN)
	}

	recs := s.evaluatePool(ctx, table, source, candidates)
	ranked := Rank(recs)

	zap.L().Info("match: scored candidates",
		zap.String("mpn", req.MPN),
		zap.String("family", family),
		zap.Int("candidates", len(candidates)),
		zap.Int("recommended", len(ranked)),
	)

	return FilterObsolete(ranked, req.HideObsolete), nil
}

// evaluatePool fans candidate evaluation out over a bounded errgroup.
// Results are collected by index so concurrency never changes the output.
func (s *Service) evaluatePool(ctx context.Context, table model.EffectiveRuleTable, source *model.PartAttributes, candidates []model.PartAttributes) []model.XrefRecommendation {
	results := make([]*model.XrefRecommendation, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var mu sync.Mutex
	for i := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if candidates[i].MPN == source.MPN {
				return nil // the source part is not its own replacement
			}
			rec, ok := Evaluate(table, source, &candidates[i])
			if ok {
				mu.Lock()
				results[i] = rec
				mu.Unlock()
			}
			return nil
		})
	}
	// Evaluation is pure; the only group error is context cancellation,
	// which leaves a partial result set that the caller discards anyway.
	_ = g.Wait()

	recs := make([]model.XrefRecommendation, 0, len(results))
	for _, r := range results {
		if r != nil {
			recs = append(recs, *r)
		}
	}
	return recs
}
