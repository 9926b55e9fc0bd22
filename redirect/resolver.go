package redirect

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxHops      = 8
	DefaultHopTimeout   = 8 * time.Second
	DefaultTotalTimeout = 20 * time.Second
)

// StopReason records why resolution ended.
type StopReason string

const (
	StopFinal   StopReason = "final"
	StopCycle   StopReason = "cycle"
	StopBudget  StopReason = "budget"
	StopNotHTTP StopReason = "not_http"
)

// Resolution is the outcome of following a redirect chain.
// Chain[0] is the start URL and never holds duplicates.
type Resolution struct {
	FinalURL string
	Chain    []string
	Stop     StopReason
}

// Hops is the number of redirects followed.
func (r Resolution) Hops() int { return len(r.Chain) - 1 }

type Resolver struct {
	probe   Prober
	maxHops int
	total   time.Duration
	logger  *zap.SugaredLogger
}

type ResolverOption func(*Resolver)

// WithTotalTimeout bounds a whole resolution, across all hops.
func WithTotalTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.total = d
		}
	}
}

func NewResolver(probe Prober, maxHops int, logger *zap.SugaredLogger, opts ...ResolverOption) *Resolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &Resolver{probe: probe, maxHops: maxHops, total: DefaultTotalTimeout, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// TotalTimeout is the longest a single Resolve call runs before it gives up on further hops.
func (r *Resolver) TotalTimeout() time.Duration { return r.total }

// Resolve follows redirects from start one hop at a time.
// Probe failures end the chain at the current URL. Running out of hops or of the
// total time budget ends it with StopBudget and keeps the chain walked so far.
// Only a cancelled caller ctx returns an error, with no partial resolution.
func (r *Resolver) Resolve(ctx context.Context, start string) (Resolution, error) {
	res := Resolution{FinalURL: start, Chain: []string{start}, Stop: StopFinal}
	if !isHTTP(start) {
		res.Stop = StopNotHTTP
		return res, nil
	}

	bctx, cancel := context.WithTimeout(ctx, r.total)
	defer cancel()

	visited := map[string]struct{}{start: {}}
	current := start

	for budget := r.maxHops; ; budget-- {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		if budget == 0 || bctx.Err() != nil {
			res.Stop = StopBudget
			break
		}

		next, ok := r.nextHop(bctx, current)
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		if !ok {
			res.Stop = StopFinal
			if bctx.Err() != nil {
				r.logger.Debugw("[Redirect] time budget spent", "url", current, "hops", len(res.Chain)-1)
				res.Stop = StopBudget
			}
			break
		}
		if _, seen := visited[next]; seen {
			r.logger.Debugw("[Redirect] cycle detected", "from", current, "to", next)
			current = next
			res.Stop = StopCycle
			break
		}

		visited[next] = struct{}{}
		res.Chain = append(res.Chain, next)
		current = next
	}

	res.FinalURL = current
	return res, nil
}

// nextHop asks HEAD first and falls back to GET for servers that only redirect on GET.
func (r *Resolver) nextHop(ctx context.Context, current string) (string, bool) {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		pr, err := r.probe.Probe(ctx, method, current)
		if err != nil {
			r.logger.Debugw("[Redirect] probe failed", "method", method, "url", current, "error", err)
			continue
		}
		if next, ok := redirectTarget(current, pr); ok {
			return next, true
		}
	}
	return "", false
}

func redirectTarget(current string, pr ProbeResult) (string, bool) {
	if pr.StatusCode < 300 || pr.StatusCode > 399 {
		return "", false
	}
	loc := strings.TrimSpace(pr.Location)
	if loc == "" {
		return "", false
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", false
	}
	target := base.ResolveReference(ref)
	if !target.IsAbs() || target.Host == "" {
		return "", false
	}
	return target.String(), true
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return (s == "http" || s == "https") && u.Host != ""
}
