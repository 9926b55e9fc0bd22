// Package memory serves trust, blacklist and report lookups from a YAML seed held in memory.
package memory

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"risk-vetting-engine/normalize"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
)

//go:embed seed.yaml
var defaultSeed []byte

var ErrInvalidRecord = ports.ErrInvalidRecord

// Seed is the on-disk layout.
type Seed struct {
	Trusted   []ports.TrustedLink     `yaml:"trusted"`
	Blacklist []ports.BlacklistRecord `yaml:"blacklist"`
	Reports   []ports.ReportRecord    `yaml:"reports"`
}

type key struct {
	kind  risk.Kind
	value string
}

// Store implements ports.TrustSource, ports.BlacklistSource and ports.ReportSource.
type Store struct {
	mu        sync.RWMutex
	trusted   []ports.TrustedLink
	blacklist map[key][]ports.BlacklistRecord
	reports   map[key][]ports.ReportRecord
}

// Default returns a store built from the embedded seed.
func Default() *Store {
	s, err := Parse(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("memory: embedded seed: %v", err))
	}
	return s
}

func Load(path string) (*Store, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return nil, err
	}
	return FromSeed(seed)
}

// ReadSeed decodes a seed file without validating it.
func ReadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return decode(data)
}

// Parse decodes and validates a seed. Any bad record rejects the whole seed.
func Parse(data []byte) (*Store, error) {
	seed, err := decode(data)
	if err != nil {
		return nil, err
	}
	return FromSeed(seed)
}

func decode(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

func FromSeed(seed Seed) (*Store, error) {
	s := &Store{
		blacklist: make(map[key][]ports.BlacklistRecord),
		reports:   make(map[key][]ports.ReportRecord),
	}
	for i, t := range seed.Trusted {
		if err := s.AddTrusted(t); err != nil {
			return nil, fmt.Errorf("trusted[%d]: %w", i, err)
		}
	}
	for i, r := range seed.Blacklist {
		if err := s.AddBlacklist(r); err != nil {
			return nil, fmt.Errorf("blacklist[%d]: %w", i, err)
		}
	}
	for i, r := range seed.Reports {
		if err := s.AddReport(r); err != nil {
			return nil, fmt.Errorf("reports[%d]: %w", i, err)
		}
	}
	return s, nil
}

// AddTrusted appends a trusted link; it shows up on the next safe-list reload.
func (s *Store) AddTrusted(link ports.TrustedLink) error {
	if strings.TrimSpace(link.URL) == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted = append(s.trusted, link)
	return nil
}

func (s *Store) AddBlacklist(r ports.BlacklistRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	k := keyFor(r.Kind, r.Value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[k] = append(s.blacklist[k], r)
	return nil
}

func (s *Store) AddReport(r ports.ReportRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	k := keyFor(r.Kind, r.Value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[k] = append(s.reports[k], r)
	return nil
}

func (s *Store) LoadAll(ctx context.Context) ([]ports.TrustedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.TrustedLink, len(s.trusted))
	copy(out, s.trusted)
	return out, nil
}

func (s *Store) FindMatches(ctx context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.blacklist[keyFor(kind, value)]
	out := make([]ports.ExternalMatch, 0, len(records))
	for _, r := range records {
		out = append(out, r.Match())
	}
	return out, nil
}

func (s *Store) FindReports(ctx context.Context, kind risk.Kind, raw string) ([]ports.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.reports[keyFor(kind, raw)]
	out := make([]ports.Report, 0, len(records))
	for _, r := range records {
		out = append(out, r.Report())
	}
	return out, nil
}

// keyFor indexes records by the same canonical value the aggregator looks up with.
func keyFor(kind risk.Kind, value string) key {
	kind = kind.LookupKind()
	v := normalize.ForKind(kind, value)
	if kind == risk.KindURL {
		v = strings.ToLower(v)
	}
	return key{kind: kind, value: v}
}
