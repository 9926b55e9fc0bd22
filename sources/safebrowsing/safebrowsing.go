// Package safebrowsing checks links against the Google Safe Browsing v4 lookup API.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"risk-vetting-engine/normalize"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
)

const (
	DefaultEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	Label           = "Google Safe Browsing (high)"
)

var threatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type threatMatch struct {
	ThreatType   string      `json:"threatType"`
	PlatformType string      `json:"platformType"`
	Threat       threatEntry `json:"threat"`
}

type findResponse struct {
	Matches []threatMatch `json:"matches"`
}

// Client implements ports.BlacklistSource for links.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

type Option func(*Client)

func WithEndpoint(u string) Option { return func(c *Client) { c.endpoint = u } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: 6 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) FindMatches(ctx context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error) {
	if kind.LookupKind() != risk.KindURL {
		return []ports.ExternalMatch{}, nil
	}
	target := normalize.URL(value)
	if target == "" {
		return []ports.ExternalMatch{}, nil
	}

	body, err := json.Marshal(findRequest{
		Client: clientInfo{ClientID: "risk-vetting-engine", ClientVersion: "1.0"},
		ThreatInfo: threatInfo{
			ThreatTypes:      threatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: target}},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("safe browsing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("safe browsing: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out findResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode safe browsing response: %w", err)
	}

	seen := map[string]bool{}
	matches := make([]ports.ExternalMatch, 0, len(out.Matches))
	for _, m := range out.Matches {
		if seen[m.ThreatType] {
			continue
		}
		seen[m.ThreatType] = true
		matches = append(matches, ports.ExternalMatch{
			Kind:  risk.KindURL,
			Value: target,
			Label: Label,
			Note:  m.ThreatType,
		})
	}
	return matches, nil
}
