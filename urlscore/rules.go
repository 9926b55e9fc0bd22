package urlscore

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules holds the word lists the scorer matches against.
type Rules struct {
	Shorteners      []string `yaml:"shorteners"`
	RiskyTLDs       []string `yaml:"risky_tlds"`
	Keywords        []string `yaml:"keywords"`
	RiskyExtensions []string `yaml:"risky_extensions"`

	shorteners map[string]struct{}
	tlds       map[string]struct{}
	exts       map[string]struct{}
}

// ParseRules decodes a rules document and indexes it for lookup.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal url rules: %w", err)
	}
	if len(r.Keywords) == 0 {
		return nil, fmt.Errorf("url rules: keyword list is empty")
	}
	r.shorteners = toSet(r.Shorteners, "")
	r.tlds = toSet(r.RiskyTLDs, ".")
	r.exts = toSet(r.RiskyExtensions, ".")
	for i, k := range r.Keywords {
		r.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return &r, nil
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic("embedded url rules are invalid: " + err.Error())
	}
	return r
}

func toSet(items []string, trimPrefix string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if trimPrefix != "" {
			it = strings.TrimPrefix(it, trimPrefix)
		}
		if it != "" {
			out[it] = struct{}{}
		}
	}
	return out
}

func (r *Rules) isShortener(host string) bool {
	_, ok := r.shorteners[host]
	return ok
}

func (r *Rules) isRiskyTLD(tld string) bool {
	_, ok := r.tlds[tld]
	return ok
}

func (r *Rules) isRiskyExt(ext string) bool {
	_, ok := r.exts[ext]
	return ok
}
