package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"risk-vetting-engine/risk"
)

// URL canonicalises raw user input into a schemed URL when it looks host-like.
// Control characters are dropped. Input that is not host-like comes back trimmed;
// empty stays empty.
func URL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	if strings.Contains(s, ".") && !strings.ContainsFunc(s, unicode.IsSpace) {
		return "https://" + s
	}
	return s
}

// StripWWW lowercases a host and drops leading "www." labels and trailing dots.
func StripWWW(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimRight(h, ".")
	for strings.HasPrefix(h, "www.") {
		h = h[len("www."):]
	}
	return h
}

// Host returns the www-stripped host of rawURL, or "" when none can be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(URL(rawURL))
	if err != nil {
		return ""
	}
	return StripWWW(u.Hostname())
}

// Digits keeps ASCII digits only.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneDigits keeps digits and a leading '+'.
func PhoneDigits(raw string) string {
	s := strings.TrimSpace(raw)
	d := Digits(s)
	if strings.HasPrefix(s, "+") && d != "" {
		return "+" + d
	}
	return d
}

// ForKind is the canonical value stored and looked up for kind.
// QR payloads are treated as URLs.
func ForKind(kind risk.Kind, raw string) string {
	switch kind.LookupKind() {
	case risk.KindPhone:
		return PhoneDigits(raw)
	case risk.KindBankAccount:
		return Digits(raw)
	case risk.KindURL:
		return URL(raw)
	}
	return strings.TrimSpace(raw)
}
