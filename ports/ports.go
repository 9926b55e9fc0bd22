package ports

import (
	"context"

	"risk-vetting-engine/risk"
)

// TrustedLink is one confirmed-safe record as stored by the trust collaborator.
type TrustedLink struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url" yaml:"url"`
}

// ExternalMatch is one blacklist hit.
type ExternalMatch struct {
	Kind  risk.Kind `json:"kind"`
	Value string    `json:"value"`
	Label string    `json:"label"`
	Note  string    `json:"note,omitempty"`
}

// Report is a user-submitted report about an artifact.
type Report struct {
	Note       string `json:"note,omitempty"`
	ExtraLabel string `json:"extraLabel"`
}

type TrustSource interface {
	LoadAll(ctx context.Context) ([]TrustedLink, error)
}

// BlacklistSource must return an empty slice, not an error, when nothing matches.
type BlacklistSource interface {
	FindMatches(ctx context.Context, kind risk.Kind, value string) ([]ExternalMatch, error)
}

type ReportSource interface {
	FindReports(ctx context.Context, kind risk.Kind, raw string) ([]Report, error)
}
