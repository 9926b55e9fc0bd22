package urlscore

import (
	"fmt"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/net/idna"

	"risk-vetting-engine/normalize"
	"risk-vetting-engine/risk"
)

const (
	weightManyRedirects   = 10
	weightShortener       = 20
	weightPlainHTTP       = 25
	weightOddScheme       = 10
	weightUserInfo        = 35
	weightIPv4Host        = 30
	weightPunycode        = 25
	weightNonASCIIHost    = 12
	weightMixedScript     = 10
	weightExplicitPort    = 15
	weightDeepSubdomain   = 10
	weightLongHost        = 10
	weightManyHyphens     = 10
	weightRiskyTLD        = 10
	weightDigitsInHost    = 8
	weightRandomLabel     = 10
	weightKeywordOne      = 7
	weightKeywordTwo      = 12
	weightKeywordMany     = 18
	weightLongQuery       = 10
	weightEncodedQuery    = 8
	weightParamFlood      = 6
	weightRiskyExtension  = 20
	weightDoubleSlashPath = 6
)

const (
	HeaderLine = "Structural analysis (heuristic)"
	bullet     = "• "
)

// Thresholds are inclusive lower bounds of the medium and high tiers.
type Thresholds struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{High: 65, Medium: 30}
}

func (t Thresholds) Level(score int) risk.Level {
	switch {
	case score >= t.High:
		return risk.High
	case score >= t.Medium:
		return risk.Medium
	}
	return risk.Low
}

// Result is one scoring run. Messages is header, one line per signal, then the score.
type Result struct {
	Level       risk.Level    `json:"level"`
	Score       int           `json:"score"`
	Signals     []risk.Signal `json:"signals"`
	Messages    []string      `json:"messages"`
	Unparseable bool          `json:"unparseable,omitempty"`
}

type Scorer struct {
	rules      *Rules
	thresholds Thresholds
}

func New(rules *Rules, thresholds Thresholds) *Scorer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Scorer{rules: rules, thresholds: thresholds}
}

// Score evaluates the final URL of a redirect chain. Extra signals from enrichment
// lookups are added after the structural ones.
func (s *Scorer) Score(finalURL string, chain []string, extra ...risk.Signal) Result {
	u, err := url.Parse(finalURL)
	if err != nil || u.Hostname() == "" {
		return Result{
			Level:       risk.High,
			Messages:    []string{HeaderLine, risk.UnverifiableReason.Text},
			Unparseable: true,
		}
	}

	host := strings.ToLower(u.Hostname())
	scheme := strings.ToLower(u.Scheme)
	var sig signals

	if hops := len(chain) - 1; hops >= 3 {
		sig.add(weightManyRedirects, "Redirected %d times before reaching the destination", hops)
	}
	start := finalURL
	if len(chain) > 0 {
		start = chain[0]
	}
	if h := normalize.Host(start); s.rules.isShortener(h) {
		sig.add(weightShortener, "Starts at link shortener %s, which hides the real destination", h)
	}

	switch scheme {
	case "https":
		sig.add(0, "Uses HTTPS")
	case "http":
		sig.add(weightPlainHTTP, "Does not use HTTPS")
	default:
		sig.add(weightOddScheme, "Unusual scheme %q", scheme)
	}

	if strings.Contains(finalURL, "@") {
		sig.add(weightUserInfo, "Contains '@', often used to disguise the real host")
	}

	s.scoreHost(&sig, host, scheme, u.Port())
	s.scorePathAndQuery(&sig, u)

	for _, e := range extra {
		sig.add(e.Weight, "%s", e.Description)
	}

	level := s.thresholds.Level(sig.total)
	msgs := make([]string, 0, len(sig.list)+2)
	msgs = append(msgs, HeaderLine)
	for _, x := range sig.list {
		msgs = append(msgs, bullet+x.Description)
	}
	msgs = append(msgs, fmt.Sprintf("Risk score: %d", sig.total))

	return Result{Level: level, Score: sig.total, Signals: sig.list, Messages: msgs}
}

func (s *Scorer) scoreHost(sig *signals, host, scheme, port string) {
	if addr, err := netip.ParseAddr(host); err == nil && addr.Is4() {
		sig.add(weightIPv4Host, "Uses an IP address instead of a domain name")
	}
	if strings.Contains(host, "xn--") {
		sig.add(weightPunycode, "Host uses punycode (xn--), which can imitate other domains")
	}
	if hasNonASCII(host) {
		sig.add(weightNonASCIIHost, "Host contains non-ASCII characters")
	}
	if mixedScriptLabel(host) {
		sig.add(weightMixedScript, "Host mixes Latin letters with other scripts in one label")
	}
	if port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		sig.add(weightExplicitPort, "Uses a non-standard port %s", port)
	}
	if n := strings.Count(host, "."); n >= 3 {
		sig.add(weightDeepSubdomain, "Host has many subdomain levels (%d dots)", n)
	}
	if len(host) >= 35 {
		sig.add(weightLongHost, "Host name is unusually long (%d characters)", len(host))
	}
	if n := strings.Count(host, "-"); n >= 4 {
		sig.add(weightManyHyphens, "Host contains many hyphens (%d)", n)
	}

	labels := strings.Split(host, ".")
	if tld := labels[len(labels)-1]; s.rules.isRiskyTLD(tld) {
		sig.add(weightRiskyTLD, "Top-level domain .%s is common in scam sites", tld)
	}
	if n := countDigits(host); n >= 3 {
		sig.add(weightDigitsInHost, "Host contains many digits (%d)", n)
	}
	if looksRandom(labels[0]) {
		sig.add(weightRandomLabel, "Domain label %q looks randomly generated", labels[0])
	}
}

func (s *Scorer) scorePathAndQuery(sig *signals, u *url.URL) {
	target := strings.ToLower(u.Path + "?" + u.RawQuery)
	hits := 0
	for _, k := range s.rules.Keywords {
		if strings.Contains(target, k) {
			hits++
		}
	}
	switch {
	case hits >= 3:
		sig.add(weightKeywordMany, "Path or query contains %d lure keywords", hits)
	case hits == 2:
		sig.add(weightKeywordTwo, "Path or query contains 2 lure keywords")
	case hits == 1:
		sig.add(weightKeywordOne, "Path or query contains a lure keyword")
	}

	q := u.RawQuery
	if len(q) >= 80 {
		sig.add(weightLongQuery, "Query string is unusually long (%d characters)", len(q))
	}
	if q != "" && float64(3*countEscapes(q))/float64(len(q)) > 0.25 {
		sig.add(weightEncodedQuery, "Query is heavily percent-encoded")
	}
	if n := strings.Count(q, "="); n >= 8 {
		sig.add(weightParamFlood, "Query carries many parameters (%d)", n)
	}

	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), ".")); ext != "" && s.rules.isRiskyExt(ext) {
		sig.add(weightRiskyExtension, "Link downloads a .%s file", ext)
	}
	if strings.Contains(u.Path, "//") {
		sig.add(weightDoubleSlashPath, "Path contains '//'")
	}
}

type signals struct {
	list  []risk.Signal
	total int
}

func (s *signals) add(weight int, format string, args ...any) {
	s.list = append(s.list, risk.Signal{Description: fmt.Sprintf(format, args...), Weight: weight})
	s.total += weight
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

// mixedScriptLabel decodes punycode first so xn-- labels are judged by what they display.
func mixedScriptLabel(host string) bool {
	display := host
	if u, err := idna.Lookup.ToUnicode(host); err == nil {
		display = u
	}
	for _, label := range strings.Split(display, ".") {
		var ascii, other bool
		for _, r := range label {
			switch {
			case r <= unicode.MaxASCII && unicode.IsLetter(r):
				ascii = true
			case r > unicode.MaxASCII:
				other = true
			}
		}
		if ascii && other {
			return true
		}
	}
	return false
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func countEscapes(q string) int {
	n := 0
	for i := 0; i+2 < len(q); i++ {
		if q[i] == '%' && isHex(q[i+1]) && isHex(q[i+2]) {
			n++
			i += 2
		}
	}
	return n
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// looksRandom only judges labels of 12+ characters.
func looksRandom(label string) bool {
	runes := []rune(label)
	if len(runes) < 12 {
		return false
	}

	letters, vowels, digits := 0, 0, 0
	run, longest := 1, 1
	for i, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case unicode.IsLetter(r):
			letters++
			if strings.ContainsRune("aeiou", unicode.ToLower(r)) {
				vowels++
			}
		}
		if i > 0 && runes[i-1] == r {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}

	lowVowels := letters > 0 && float64(vowels)/float64(letters) < 0.2
	return lowVowels || digits >= 5 || longest >= 4
}
