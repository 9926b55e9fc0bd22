package aggregate

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"risk-vetting-engine/metrics"
	"risk-vetting-engine/normalize"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
)

const DefaultLookupTimeout = 8 * time.Second

const (
	reasonPrefix      = "Scam database: "
	reportLabelPrefix = "User report: "
)

// Result is the database-only view of an artifact.
type Result struct {
	Level   risk.Level
	Reasons []risk.Reason
	Matches []ports.ExternalMatch
}

// Found reports whether any source had a record.
func (r Result) Found() bool { return len(r.Matches) > 0 }

// Aggregator queries blacklist and report sources and folds their matches into one result.
type Aggregator struct {
	blacklist ports.BlacklistSource
	reports   ports.ReportSource
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

// New builds an Aggregator. reports may be nil.
func New(blacklist ports.BlacklistSource, reports ports.ReportSource, timeout time.Duration, logger *zap.SugaredLogger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{blacklist: blacklist, reports: reports, timeout: timeout, logger: logger}
}

// Scan looks input up under kind. Source failures count as no matches; only a
// cancelled ctx is returned as an error.
func (a *Aggregator) Scan(ctx context.Context, kind risk.Kind, input string) (Result, error) {
	raw := strings.TrimSpace(input)
	lookup := kind.LookupKind()
	value := normalize.ForKind(lookup, raw)

	var blacklisted []ports.ExternalMatch
	var reported []ports.Report

	g, gctx := errgroup.WithContext(ctx)
	if a.blacklist != nil && value != "" {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()
			m, err := a.blacklist.FindMatches(cctx, lookup, value)
			if err != nil {
				a.sourceFailed("blacklist", lookup, err)
				return nil
			}
			blacklisted = m
			return nil
		})
	}
	if a.reports != nil && raw != "" {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()
			r, err := a.reports.FindReports(cctx, lookup, raw)
			if err != nil {
				a.sourceFailed("reports", lookup, err)
				return nil
			}
			reported = r
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	matches := make([]ports.ExternalMatch, 0, len(blacklisted)+len(reported))
	matches = append(matches, blacklisted...)
	for _, r := range reported {
		matches = append(matches, ports.ExternalMatch{
			Kind:  lookup,
			Value: raw,
			Label: reportLabelPrefix + r.ExtraLabel,
			Note:  r.Note,
		})
	}
	return Fold(matches), nil
}

// Fold turns matches into a level and reasons. No matches yields Low with only the
// no-data sentinel.
func Fold(matches []ports.ExternalMatch) Result {
	if len(matches) == 0 {
		return Result{Level: risk.Low, Reasons: []risk.Reason{risk.NoDataReason}}
	}

	level := risk.Low
	reasons := make([]risk.Reason, 0, len(matches))
	for _, m := range matches {
		level = risk.Max(level, risk.LevelFromLabel(m.Label))
		text := reasonPrefix + m.Label
		if note := strings.TrimSpace(m.Note); note != "" {
			text += " - " + note
		}
		reasons = append(reasons, risk.Finding(text))
	}
	return Result{Level: level, Reasons: risk.Dedup(reasons), Matches: matches}
}

func (a *Aggregator) sourceFailed(source string, kind risk.Kind, err error) {
	metrics.SourceErrors.WithLabelValues(source).Inc()
	a.logger.Warnw("[Aggregate] lookup failed, treating as no evidence", "source", source, "kind", kind, "error", err)
}
