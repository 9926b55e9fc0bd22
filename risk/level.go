package risk

import (
	"fmt"
	"strings"
)

// Level is the verdict tier. Low < Medium < High.
type Level int

const (
	Low Level = iota
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l Level) MarshalText() ([]byte, error) {
	if l < Low || l > High {
		return nil, fmt.Errorf("invalid risk level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	lvl, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

// ParseLevel accepts exactly "low", "medium" or "high" (any case).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	}
	return Low, fmt.Errorf("unknown risk level %q", s)
}

// LevelFromLabel reads the level implied by a free-text blacklist label.
// Labels carrying no recognisable level are treated as High.
func LevelFromLabel(label string) Level {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "high"):
		return High
	case strings.Contains(l, "medium"):
		return Medium
	case strings.Contains(l, "low"):
		return Low
	}
	return High
}

// Max returns the highest of levels, or Low when called with none.
func Max(levels ...Level) Level {
	out := Low
	for _, l := range levels {
		if l > out {
			out = l
		}
	}
	return out
}
