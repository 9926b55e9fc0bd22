package vetting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"risk-vetting-engine/aggregate"
	"risk-vetting-engine/metrics"
	"risk-vetting-engine/normalize"
	"risk-vetting-engine/phone"
	"risk-vetting-engine/redirect"
	"risk-vetting-engine/risk"
	"risk-vetting-engine/textscan"
	"risk-vetting-engine/urlscore"
)

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrPhoneTooShort = errors.New("phone number too short")
)

const (
	minPhoneDigits    = 9
	maxTextEntities   = 5
	newDomainWeight   = 20
	shortAccountLimit = 8

	trustedPrefix   = "Trusted site: "
	linkFoundPrefix = "Link found: "
)

// Resolver follows redirect chains.
type Resolver interface {
	Resolve(ctx context.Context, start string) (redirect.Resolution, error)
}

// SafeList answers whether a host is confirmed safe.
type SafeList interface {
	Lookup(host string) (string, bool)
	LoadIfNeeded(ctx context.Context) error
}

// DomainAger reports how many days ago a host's domain was registered.
type DomainAger interface {
	AgeDays(ctx context.Context, host string) (int, error)
}

// Engine produces verdicts for every artifact kind. It is safe for concurrent use.
type Engine struct {
	resolver Resolver
	safe     SafeList
	db       *aggregate.Aggregator
	urls     *urlscore.Scorer
	texts    *textscan.Scorer

	ager          DomainAger
	newDomainDays int

	clock  func() time.Time
	logger *zap.SugaredLogger
}

type Option func(*Engine)

// WithDomainAger adds a "recently registered" signal for domains younger than days.
func WithDomainAger(a DomainAger, days int) Option {
	return func(e *Engine) {
		e.ager = a
		e.newDomainDays = days
	}
}

func WithURLScorer(s *urlscore.Scorer) Option { return func(e *Engine) { e.urls = s } }

func WithTextScorer(s *textscan.Scorer) Option { return func(e *Engine) { e.texts = s } }

func WithClock(clock func() time.Time) Option { return func(e *Engine) { e.clock = clock } }

func WithLogger(l *zap.SugaredLogger) Option { return func(e *Engine) { e.logger = l } }

func NewEngine(resolver Resolver, safe SafeList, db *aggregate.Aggregator, opts ...Option) *Engine {
	e := &Engine{
		resolver:      resolver,
		safe:          safe,
		db:            db,
		newDomainDays: 60,
		clock:         time.Now,
		logger:        zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.urls == nil {
		e.urls = urlscore.New(nil, urlscore.DefaultThresholds())
	}
	if e.texts == nil {
		e.texts = textscan.New(nil, textscan.DefaultThresholds())
	}
	return e
}

func (e *Engine) ScanURL(ctx context.Context, input string) (risk.Verdict, error) {
	return e.scanLink(ctx, risk.KindURL, input)
}

func (e *Engine) ScanQR(ctx context.Context, payload string) (risk.Verdict, error) {
	return e.scanLink(ctx, risk.KindQRPayload, payload)
}

func (e *Engine) scanLink(ctx context.Context, kind risk.Kind, input string) (risk.Verdict, error) {
	normalized := normalize.URL(input)
	if normalized == "" {
		return risk.Verdict{}, ErrEmptyInput
	}
	v, _, err := e.linkVerdict(ctx, kind, normalized)
	if err != nil {
		return risk.Verdict{}, err
	}
	e.done(v)
	return v, nil
}

// linkVerdict runs the full URL path. found reports whether any database had a record.
func (e *Engine) linkVerdict(ctx context.Context, kind risk.Kind, normalized string) (risk.Verdict, bool, error) {
	v := risk.NewVerdict(kind, normalized, e.clock())

	res, err := e.resolver.Resolve(ctx, normalized)
	if err != nil {
		return risk.Verdict{}, false, err
	}
	metrics.RedirectHops.Observe(float64(res.Hops()))
	v.FinalURL = res.FinalURL
	v.RedirectChain = res.Chain

	host := normalize.Host(res.FinalURL)
	label, trusted := e.lookupSafe(ctx, host)

	db, err := e.lookupLink(ctx, kind, normalized, res.FinalURL)
	if err != nil {
		return risk.Verdict{}, false, err
	}

	var extra []risk.Signal
	if host != "" && !trusted {
		sig, ok, err := e.domainAge(ctx, host)
		if err != nil {
			return risk.Verdict{}, false, err
		}
		if ok {
			extra = append(extra, sig)
		}
	}

	score := e.urls.Score(res.FinalURL, res.Chain, extra...)

	var reasons []risk.Reason
	level := score.Level
	if db.Found() {
		level = risk.Max(db.Level, score.Level)
		reasons = append(reasons, db.Reasons...)
	} else {
		reasons = append(reasons, risk.NoDataReason)
		if trusted {
			level = risk.Low
		}
	}
	if trusted {
		reasons = append(reasons, risk.Reason{Text: trustedPrefix + label, Tag: risk.TagSafeListed})
	}
	reasons = append(reasons, scoreReasons(score)...)
	if score.Unparseable {
		level = risk.High
	}

	v.Level = level
	v.Reasons = risk.Dedup(reasons)
	return v, db.Found(), nil
}

func (e *Engine) lookupSafe(ctx context.Context, host string) (string, bool) {
	if host == "" || e.safe == nil {
		return "", false
	}
	if err := e.safe.LoadIfNeeded(ctx); err != nil && ctx.Err() == nil {
		e.logger.Warnw("[Vetting] safe-list unavailable, using last loaded list", "error", err)
	}
	return e.safe.Lookup(host)
}

// lookupLink queries the database for the submitted URL and, when redirects moved
// it, for the final URL too.
func (e *Engine) lookupLink(ctx context.Context, kind risk.Kind, normalized, final string) (aggregate.Result, error) {
	var start, end aggregate.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.db.Scan(gctx, kind, normalized)
		start = r
		return err
	})
	if final != normalized {
		g.Go(func() error {
			r, err := e.db.Scan(gctx, risk.KindURL, final)
			end = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return aggregate.Result{}, err
	}
	if !end.Found() {
		return start, nil
	}
	return aggregate.Fold(append(start.Matches, end.Matches...)), nil
}

// domainAge returns a signal when the host's domain is younger than the configured age.
// Lookup failures are not evidence; only cancellation is returned.
func (e *Engine) domainAge(ctx context.Context, host string) (risk.Signal, bool, error) {
	if e.ager == nil {
		return risk.Signal{}, false, nil
	}
	days, err := e.ager.AgeDays(ctx, host)
	if err != nil {
		if ctx.Err() != nil {
			return risk.Signal{}, false, ctx.Err()
		}
		metrics.SourceErrors.WithLabelValues("whois").Inc()
		e.logger.Debugw("[Vetting] domain age unavailable", "host", host, "error", err)
		return risk.Signal{}, false, nil
	}
	if days < 0 || days >= e.newDomainDays {
		return risk.Signal{}, false, nil
	}
	return risk.Signal{
		Description: fmt.Sprintf("Domain registered %d days ago", days),
		Weight:      newDomainWeight,
	}, true, nil
}

// scoreReasons tags the scorer's header, bullets and score line.
func scoreReasons(res urlscore.Result) []risk.Reason {
	out := make([]risk.Reason, 0, len(res.Messages))
	for i, m := range res.Messages {
		switch {
		case i == 0 && m == urlscore.HeaderLine:
			out = append(out, risk.Reason{Text: m, Tag: risk.TagHeading})
		case m == risk.UnverifiableReason.Text:
			out = append(out, risk.UnverifiableReason)
		case i == len(res.Messages)-1 && !res.Unparseable:
			out = append(out, risk.Reason{Text: m, Tag: risk.TagScore})
		default:
			out = append(out, risk.Finding(m))
		}
	}
	return out
}

func (e *Engine) ScanText(ctx context.Context, input string) (risk.Verdict, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return risk.Verdict{}, ErrEmptyInput
	}
	v := risk.NewVerdict(risk.KindSMSText, trimmed, e.clock())

	text := e.texts.Scan(trimmed)
	entities := text.Entities
	v.Entities = &entities

	phones := firstN(entities.Phones, maxTextEntities)
	accounts := firstN(entities.BankAccounts, maxTextEntities)
	matched := make([]aggregate.Result, len(phones)+len(accounts))

	var (
		link      risk.Verdict
		linkFound bool
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(entities.URLs) > 0 {
		g.Go(func() error {
			var err error
			link, linkFound, err = e.linkVerdict(gctx, risk.KindURL, normalize.URL(entities.URLs[0]))
			return err
		})
	}
	for i, p := range phones {
		g.Go(func() error {
			r, err := e.db.Scan(gctx, risk.KindPhone, p)
			matched[i] = r
			return err
		})
	}
	for i, a := range accounts {
		g.Go(func() error {
			r, err := e.db.Scan(gctx, risk.KindBankAccount, a)
			matched[len(phones)+i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return risk.Verdict{}, err
	}

	found := linkFound
	for _, m := range matched {
		found = found || m.Found()
	}

	level := text.Level
	var reasons []risk.Reason
	if !found {
		reasons = append(reasons, risk.NoDataReason)
	}
	reasons = append(reasons, text.Reasons...)

	if len(entities.URLs) > 0 {
		level = risk.Max(level, link.Level)
		v.FinalURL = link.FinalURL
		v.RedirectChain = link.RedirectChain
		reasons = append(reasons, risk.Finding(linkFoundPrefix+link.NormalizedInput))
		for _, r := range link.Reasons {
			if r.Tag != risk.TagNoData {
				reasons = append(reasons, r)
			}
		}
	}
	for _, m := range matched {
		if m.Found() {
			level = risk.Max(level, m.Level)
			reasons = append(reasons, m.Reasons...)
		}
	}

	v.Level = level
	v.Reasons = risk.Dedup(reasons)
	e.done(v)
	return v, nil
}

func (e *Engine) ScanPhone(ctx context.Context, input string) (risk.Verdict, error) {
	cleaned := normalize.PhoneDigits(input)
	if cleaned == "" {
		return risk.Verdict{}, ErrEmptyInput
	}
	digits := normalize.Digits(cleaned)
	if len(digits) < minPhoneDigits {
		return risk.Verdict{}, ErrPhoneTooShort
	}

	db, err := e.db.Scan(ctx, risk.KindPhone, cleaned)
	if err != nil {
		return risk.Verdict{}, err
	}

	v := risk.NewVerdict(risk.KindPhone, cleaned, e.clock())
	meta, _ := phone.Analyze(cleaned)
	v.Phone = &meta
	v.Level = db.Level

	reasons := append([]risk.Reason{}, db.Reasons...)
	reasons = append(reasons, risk.Reason{Text: "Heuristic: phone number pattern", Tag: risk.TagHeading})
	reasons = append(reasons, risk.Findingf("• Digit count: %d", len(digits)))
	if distinctDigits(digits) <= 2 {
		reasons = append(reasons, risk.Finding("• Repeated digits or unusual pattern (suspicious)"))
	}
	reasons = append(reasons,
		risk.Finding("• Type: "+meta.NumberTypeLabel),
		risk.Finding("• Carrier: "+meta.CarrierLabel),
		risk.Finding("• Area: "+meta.OriginLabel),
	)
	if meta.IsAnomalous {
		reasons = append(reasons, risk.Finding("• Looks like a fabricated number"))
	}
	if meta.IsVerifiedService {
		reasons = append(reasons, risk.Finding("• Listed as a verified public service"))
	}

	v.Reasons = risk.Dedup(reasons)
	e.done(v)
	return v, nil
}

func (e *Engine) ScanBankAccount(ctx context.Context, input string) (risk.Verdict, error) {
	digits := normalize.Digits(input)
	if digits == "" {
		return risk.Verdict{}, ErrEmptyInput
	}

	db, err := e.db.Scan(ctx, risk.KindBankAccount, digits)
	if err != nil {
		return risk.Verdict{}, err
	}

	v := risk.NewVerdict(risk.KindBankAccount, digits, e.clock())
	v.Level = db.Level

	reasons := append([]risk.Reason{}, db.Reasons...)
	reasons = append(reasons, risk.Reason{Text: "Heuristic: account number pattern", Tag: risk.TagHeading})
	reasons = append(reasons, risk.Findingf("• Length: %d digits", len(digits)))
	if len(digits) < shortAccountLimit {
		reasons = append(reasons, risk.Finding("• Unusually short"))
	}
	if distinctDigits(digits) <= 2 {
		reasons = append(reasons, risk.Finding("• Repeated digits or unusual pattern (suspicious)"))
	}

	v.Reasons = risk.Dedup(reasons)
	e.done(v)
	return v, nil
}

// Scan dispatches on kind.
func (e *Engine) Scan(ctx context.Context, kind risk.Kind, input string) (risk.Verdict, error) {
	switch kind {
	case risk.KindURL:
		return e.ScanURL(ctx, input)
	case risk.KindQRPayload:
		return e.ScanQR(ctx, input)
	case risk.KindSMSText:
		return e.ScanText(ctx, input)
	case risk.KindPhone:
		return e.ScanPhone(ctx, input)
	case risk.KindBankAccount:
		return e.ScanBankAccount(ctx, input)
	}
	return risk.Verdict{}, fmt.Errorf("unknown artifact kind %q", kind)
}

func (e *Engine) done(v risk.Verdict) {
	metrics.ScansTotal.WithLabelValues(string(v.Kind), v.Level.String()).Inc()
	e.logger.Infow("[Vetting] scan complete", "id", v.ID, "kind", v.Kind, "level", v.Level, "reasons", len(v.Reasons))
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func distinctDigits(s string) int {
	seen := map[rune]struct{}{}
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
