package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/xref-cli/internal/match"
	"github.com/sells-group/xref-cli/internal/orchestrator"
	"github.com/sells-group/xref-cli/internal/rules"
	"github.com/sells-group/xref-cli/internal/store"
	"github.com/sells-group/xref-cli/pkg/catalog"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCatalog() catalog.Client {
	return catalog.NewClient(cfg.Catalog.Key,
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithRateLimit(cfg.Catalog.RateLimit, cfg.Catalog.RateBurst),
		catalog.WithMaxRetries(cfg.Catalog.MaxRetries),
	)
}

func initMatcher(cat catalog.Client) (*match.Service, error) {
	reg, err := rules.Load()
	if err != nil {
		return nil, eris.Wrap(err, "load rule registry")
	}
	return match.NewService(cat, reg, cfg.Matching.Concurrency), nil
}

func initCoordinator(ctx context.Context, cat catalog.Client) (*orchestrator.Coordinator, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}
	coord := orchestrator.NewCoordinator(cat, st, cfg.Validation.Currency, cfg.Validation.CheckpointQueue)
	return coord, st, nil
}

// parseKV parses repeated key=value flags.
func parseKV(pairs []string, flag string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, eris.Errorf("invalid --%s value %q, want key=value", flag, p)
		}
		out[k] = v
	}
	return out, nil
}
