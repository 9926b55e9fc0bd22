// Package dnsbl checks link hosts against DNS blocklists.
package dnsbl

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"risk-vetting-engine/normalize"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
)

var DefaultDomainZones = []string{
	"multi.surbl.org",
	"dbl.spamhaus.org",
	"multi.uribl.com",
}

var DefaultIPZones = []string{
	"zen.spamhaus.org",
	"bl.spamcop.net",
	"b.barracudacentral.org",
}

// Checker implements ports.BlacklistSource for links. Other kinds never match.
type Checker struct {
	resolver    string
	domainZones []string
	ipZones     []string
	client      *dns.Client
	logger      *zap.SugaredLogger
}

// New builds a Checker that sends queries to resolver ("host:port").
// Nil zone slices fall back to the defaults; empty ones disable that check.
func New(resolver string, domainZones, ipZones []string, timeout time.Duration, logger *zap.SugaredLogger) *Checker {
	if domainZones == nil {
		domainZones = DefaultDomainZones
	}
	if ipZones == nil {
		ipZones = DefaultIPZones
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Checker{
		resolver:    resolver,
		domainZones: domainZones,
		ipZones:     ipZones,
		client:      &dns.Client{Net: "udp", Timeout: timeout},
		logger:      logger,
	}
}

func (c *Checker) FindMatches(ctx context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error) {
	if kind.LookupKind() != risk.KindURL {
		return []ports.ExternalMatch{}, nil
	}
	host := normalize.Host(value)
	if host == "" {
		return []ports.ExternalMatch{}, nil
	}

	var (
		mu      sync.Mutex
		matches = map[string]ports.ExternalMatch{}
	)
	listed := func(zone, query string, codes []string) {
		mu.Lock()
		defer mu.Unlock()
		matches[zone] = ports.ExternalMatch{
			Kind:  risk.KindURL,
			Value: value,
			Label: fmt.Sprintf("dnsbl:%s (high)", zone),
			Note:  fmt.Sprintf("%s listed (%s)", query, strings.Join(codes, ", ")),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if domain := registrable(host); domain != "" {
		for _, zone := range c.domainZones {
			g.Go(func() error {
				c.check(gctx, zone, domain+"."+zone, listed)
				return nil
			})
		}
	}
	if len(c.ipZones) > 0 {
		g.Go(func() error {
			ip, ok := c.hostIPv4(gctx, host)
			if !ok {
				c.logger.Debugw("[RBL] no IPv4 address, skipping IP zones", "host", host)
				return nil
			}
			rev := reverse(ip)
			var ig errgroup.Group
			for _, zone := range c.ipZones {
				ig.Go(func() error {
					c.check(gctx, zone, rev+"."+zone, listed)
					return nil
				})
			}
			return ig.Wait()
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]ports.ExternalMatch, 0, len(matches))
	for _, zone := range append(append([]string{}, c.domainZones...), c.ipZones...) {
		if m, ok := matches[zone]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// check records a listing when the zone answers inside its listing range.
// Refusal codes and resolver errors count as not listed.
func (c *Checker) check(ctx context.Context, zone, query string, listed func(zone, query string, codes []string)) {
	addrs, err := c.lookupA(ctx, query)
	if err != nil {
		c.logger.Debugw("[RBL] query failed", "zone", zone, "query", query, "error", err)
		return
	}
	accept := listingRange(zone)
	var codes []string
	for _, a := range addrs {
		switch {
		case refusal(a):
			c.logger.Warnw("[RBL] zone refused the query, check DNSBL_RESOLVER", "zone", zone, "answer", a)
			return
		case accept.contains(a):
			codes = append(codes, a)
		}
	}
	if len(codes) == 0 {
		if len(addrs) > 0 {
			c.logger.Debugw("[RBL] ignoring non-listing response", "zone", zone, "answers", addrs)
		}
		return
	}
	c.logger.Infow("[RBL] listed", "zone", zone, "query", query, "codes", codes)
	listed(zone, query, codes)
}

// codeRange is the inclusive span of answers a zone uses for real listings.
type codeRange struct{ lo, hi netip.Addr }

var (
	// Spamhaus DBL lists domains in 127.0.1.0/24; 127.0.1.255 and above are errors.
	domainBlocklistCodes = codeRange{netip.MustParseAddr("127.0.1.2"), netip.MustParseAddr("127.0.1.99")}
	// SURBL, URIBL, ZEN, SpamCop and Barracuda list in 127.0.0.2 and up.
	defaultListingCodes = codeRange{netip.MustParseAddr("127.0.0.2"), netip.MustParseAddr("127.0.0.255")}
)

func listingRange(zone string) codeRange {
	if strings.HasPrefix(zone, "dbl.") {
		return domainBlocklistCodes
	}
	return defaultListingCodes
}

func (r codeRange) contains(s string) bool {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return a.Compare(r.lo) >= 0 && a.Compare(r.hi) <= 0
}

// refusal reports answers that mean "query blocked" rather than "listed":
// 127.0.0.1 from URIBL and SURBL, 127.255.255.x from Spamhaus.
func refusal(s string) bool {
	return s == "127.0.0.1" || strings.HasPrefix(s, "127.255.255.")
}

func (c *Checker) hostIPv4(ctx context.Context, host string) (string, bool) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String(), addr.Is4()
	}
	addrs, err := c.lookupA(ctx, host)
	if err != nil || len(addrs) == 0 {
		return "", false
	}
	return addrs[0], true
}

// lookupA returns the A records for name. NXDOMAIN is an empty answer, not an error.
func (c *Checker) lookupA(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)
	msg.RecursionDesired = true

	r, _, err := c.client.ExchangeContext(ctx, msg, c.resolver)
	if err == nil && r.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: c.client.Timeout}
		r, _, err = tcp.ExchangeContext(ctx, msg, c.resolver)
	}
	if err != nil {
		return nil, err
	}
	if r.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	if r.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("rcode %s", dns.RcodeToString[r.Rcode])
	}

	var out []string
	for _, rr := range r.Answer {
		if a, ok := rr.(*dns.A); ok {
			out = append(out, a.A.String())
		}
	}
	return out, nil
}

func registrable(host string) string {
	if _, err := netip.ParseAddr(host); err == nil {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return d
}

func reverse(ip string) string {
	parts := strings.Split(ip, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// ParseZones splits a comma-separated zone list. An empty string yields nil.
func ParseZones(s string) []string {
	var out []string
	for _, z := range strings.Split(s, ",") {
		if z = strings.TrimSpace(strings.TrimSuffix(z, ".")); z != "" {
			out = append(out, z)
		}
	}
	return out
}

// ResolverAddr adds the DNS port to a bare resolver address.
func ResolverAddr(s string) string {
	if _, _, err := net.SplitHostPort(s); err == nil {
		return s
	}
	return net.JoinHostPort(s, "53")
}
