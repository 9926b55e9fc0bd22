package textscan

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"risk-vetting-engine/risk"
)

//go:embed keywords.yaml
var defaultKeywords []byte

const (
	weightURLPresent   = 10
	weightLinkAndCode  = 20
	secretCategoryName = "secret"
)

// Category is one group of phrases scored together.
type Category struct {
	Name    string   `yaml:"name"`
	Reason  string   `yaml:"reason"`
	Weight  int      `yaml:"weight"`
	Phrases []string `yaml:"phrases"`
}

type keywordFile struct {
	Categories []Category `yaml:"categories"`
}

// ParseCategories decodes and validates a keyword document.
func ParseCategories(data []byte) ([]Category, error) {
	var f keywordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keyword file: %w", err)
	}
	for i := range f.Categories {
		c := &f.Categories[i]
		if c.Name == "" || c.Weight <= 0 || len(c.Phrases) == 0 {
			return nil, fmt.Errorf("keyword category %d (%q) needs a name, a positive weight and phrases", i, c.Name)
		}
		for j, p := range c.Phrases {
			c.Phrases[j] = strings.ToLower(p)
		}
	}
	return f.Categories, nil
}

func DefaultCategories() []Category {
	cats, err := ParseCategories(defaultKeywords)
	if err != nil {
		panic("embedded keyword file is invalid: " + err.Error())
	}
	return cats
}

// Thresholds for text are independent of the URL scorer's.
type Thresholds struct {
	High   int
	Medium int
}

func DefaultThresholds() Thresholds {
	return Thresholds{High: 55, Medium: 25}
}

// Result is the outcome of scanning one message.
type Result struct {
	Level    risk.Level
	Score    int
	Reasons  []risk.Reason
	Entities risk.Entities
}

type Scorer struct {
	categories []Category
	thresholds Thresholds
}

func New(categories []Category, thresholds Thresholds) *Scorer {
	if categories == nil {
		categories = DefaultCategories()
	}
	return &Scorer{categories: categories, thresholds: thresholds}
}

func (s *Scorer) Scan(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{
			Level:    risk.Low,
			Reasons:  []risk.Reason{risk.EmptyInputReason},
			Entities: risk.Entities{URLs: []string{}, Phones: []string{}, BankAccounts: []string{}},
		}
	}

	entities := Extract(trimmed)
	lower := strings.ToLower(trimmed)

	score := 0
	var reasons []risk.Reason
	asksSecret := false
	for _, c := range s.categories {
		if !containsAny(lower, c.Phrases) {
			continue
		}
		score += c.Weight
		reasons = append(reasons, risk.Finding(c.Reason))
		if c.Name == secretCategoryName {
			asksSecret = true
		}
	}

	if len(entities.URLs) > 0 {
		score += weightURLPresent
		reasons = append(reasons, risk.Finding("Contains a link"))
		if asksSecret {
			score += weightLinkAndCode
			reasons = append(reasons, risk.Finding("Link combined with a request for secret codes"))
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, risk.Finding("No prominent risk pattern found"))
	}
	reasons = append(reasons, risk.Reason{Text: fmt.Sprintf("Text risk score: %d", score), Tag: risk.TagScore})

	return Result{
		Level:    s.level(score),
		Score:    score,
		Reasons:  reasons,
		Entities: entities,
	}
}

func (s *Scorer) level(score int) risk.Level {
	switch {
	case score >= s.thresholds.High:
		return risk.High
	case score >= s.thresholds.Medium:
		return risk.Medium
	}
	return risk.Low
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
