package risk

import "fmt"

// ReasonTag classifies a reason line so presentation code never has to match on text.
type ReasonTag string

const (
	TagFinding      ReasonTag = "finding"
	TagNoData       ReasonTag = "no_data"
	TagUnverifiable ReasonTag = "unverifiable"
	TagSafeListed   ReasonTag = "safe_listed"
	TagHeading      ReasonTag = "heading"
	TagScore        ReasonTag = "score"
)

// Reason is one explanatory line of a verdict.
type Reason struct {
	Text string    `json:"text"`
	Tag  ReasonTag `json:"tag"`
}

func Finding(text string) Reason { return Reason{Text: text, Tag: TagFinding} }

func Findingf(format string, args ...any) Reason {
	return Finding(fmt.Sprintf(format, args...))
}

// Sentinel reasons.
var (
	NoDataReason       = Reason{Text: "No record in the database", Tag: TagNoData}
	UnverifiableReason = Reason{Text: "Cannot verify: no website host found in the link", Tag: TagUnverifiable}
	EmptyInputReason   = Reason{Text: "Empty input", Tag: TagNoData}
)

// Dedup drops reasons whose text was already seen, keeping the first occurrence.
func Dedup(reasons []Reason) []Reason {
	seen := make(map[string]struct{}, len(reasons))
	out := make([]Reason, 0, len(reasons))
	for _, r := range reasons {
		if _, ok := seen[r.Text]; ok {
			continue
		}
		seen[r.Text] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Texts flattens reasons to their text, in order.
func Texts(reasons []Reason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = r.Text
	}
	return out
}

// Signal is one weighted heuristic observation.
type Signal struct {
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}
