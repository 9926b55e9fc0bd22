package textscan

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"risk-vetting-engine/risk"
)

var (
	schemedURL = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+`)
	bareURL    = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}(?:/[^\s<>"']*)?`)
)

const trailingPunct = `.,;:!?)]}'"`

// Extract pulls candidate URLs, phone numbers and account numbers out of text.
// Each list is deduplicated and sorted.
func Extract(text string) risk.Entities {
	return risk.Entities{
		URLs:         extractURLs(text),
		Phones:       digitRuns(text, 9, 15),
		BankAccounts: digitRuns(text, 10, 15),
	}
}

func extractURLs(text string) []string {
	var found []string
	schemed := schemedURL.FindAllStringIndex(text, -1)
	for _, loc := range schemed {
		if u := strings.TrimRight(text[loc[0]:loc[1]], trailingPunct); u != "" {
			found = append(found, u)
		}
	}

	for _, loc := range bareURL.FindAllStringIndex(text, -1) {
		if overlaps(loc, schemed) {
			continue
		}
		u := strings.TrimRight(text[loc[0]:loc[1]], trailingPunct)
		if hasICANNSuffix(u) {
			found = append(found, u)
		}
	}
	return dedupSorted(found)
}

func overlaps(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}

// hasICANNSuffix drops tokens like "report.pdf" whose last label is not a real TLD.
func hasICANNSuffix(token string) bool {
	host, _, _ := strings.Cut(token, "/")
	host = strings.ToLower(host)
	if !strings.Contains(host, ".") {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	return icann && suffix != host
}

// digitRuns splits on every non-digit and keeps runs within the length bounds.
func digitRuns(text string, minLen, maxLen int) []string {
	runs := strings.FieldsFunc(text, func(r rune) bool { return r < '0' || r > '9' })
	var out []string
	for _, r := range runs {
		if len(r) >= minLen && len(r) <= maxLen {
			out = append(out, r)
		}
	}
	return dedupSorted(out)
}

func dedupSorted(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}
