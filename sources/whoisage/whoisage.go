// Package whoisage looks up how long ago a domain was registered.
package whoisage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

var ErrNoCreationDate = errors.New("no creation date in whois record")

var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"02/01/2006",
}

// Lookup returns the raw WHOIS text for a domain.
type Lookup func(domain string) (string, error)

// Ager implements vetting.DomainAger.
type Ager struct {
	lookup Lookup
	clock  func() time.Time
	logger *zap.SugaredLogger
}

type Option func(*Ager)

func WithLookup(l Lookup) Option { return func(a *Ager) { a.lookup = l } }

func WithClock(clock func() time.Time) Option { return func(a *Ager) { a.clock = clock } }

func New(timeout time.Duration, logger *zap.SugaredLogger, opts ...Option) *Ager {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := whois.NewClient().SetTimeout(timeout)
	a := &Ager{
		lookup: func(domain string) (string, error) { return client.Whois(domain) },
		clock:  time.Now,
		logger: logger,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AgeDays returns the age in whole days of host's registrable domain.
// The WHOIS query cannot be cancelled; ctx only bounds how long the caller waits.
func (a *Ager) AgeDays(ctx context.Context, host string) (int, error) {
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimSuffix(strings.ToLower(host), "."))
	if err != nil {
		return 0, fmt.Errorf("registrable domain of %q: %w", host, err)
	}

	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := a.lookup(domain)
		done <- result{raw, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return 0, fmt.Errorf("whois %s: %w", domain, res.err)
	}

	created, err := CreatedAt(res.raw)
	if err != nil {
		return 0, fmt.Errorf("whois %s: %w", domain, err)
	}
	days := int(a.clock().Sub(created).Hours() / 24)
	a.logger.Debugw("[WHOIS] domain age", "domain", domain, "created", created.Format("2006-01-02"), "days", days)
	return days, nil
}

// CreatedAt parses the creation date out of a raw WHOIS response.
func CreatedAt(raw string) (time.Time, error) {
	info, err := whoisparser.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	if info.Domain == nil {
		return time.Time{}, ErrNoCreationDate
	}
	s := strings.TrimSpace(info.Domain.CreatedDate)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrNoCreationDate
}
