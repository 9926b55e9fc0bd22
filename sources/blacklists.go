package sources

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"risk-vetting-engine/metrics"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
)

// Named attaches a name to a blacklist source for logs and metrics.
type Named struct {
	Name   string
	Source ports.BlacklistSource
}

// Blacklists queries every member in parallel and concatenates results in member order.
// A failing member contributes nothing.
type Blacklists struct {
	members []Named
	logger  *zap.SugaredLogger
}

func NewBlacklists(logger *zap.SugaredLogger, members ...Named) *Blacklists {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Blacklists{members: members, logger: logger}
}

func (b *Blacklists) Len() int { return len(b.members) }

func (b *Blacklists) FindMatches(ctx context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error) {
	results := make([][]ports.ExternalMatch, len(b.members))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range b.members {
		g.Go(func() error {
			found, err := m.Source.FindMatches(gctx, kind, value)
			if err != nil {
				metrics.SourceErrors.WithLabelValues(m.Name).Inc()
				b.logger.Warnw("[Blacklist] source failed", "source", m.Name, "kind", kind, "error", err)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []ports.ExternalMatch
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
