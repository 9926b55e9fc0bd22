package risk

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the serialisable outcome of one scan.
type Verdict struct {
	ID              uuid.UUID      `json:"id"`
	Kind            Kind           `json:"kind"`
	Level           Level          `json:"level"`
	Reasons         []Reason       `json:"reasons"`
	NormalizedInput string         `json:"normalizedInput"`
	FinalURL        string         `json:"finalUrl,omitempty"`
	RedirectChain   []string       `json:"redirectChain,omitempty"`
	Phone           *PhoneMetadata `json:"phone,omitempty"`
	Entities        *Entities      `json:"entities,omitempty"`
	ScannedAt       time.Time      `json:"scannedAt"`
}

// PhoneMetadata is what can be told about a number from its digits alone.
type PhoneMetadata struct {
	CleanedDigits     string `json:"cleanedDigits"`
	OriginLabel       string `json:"originLabel"`
	CarrierLabel      string `json:"carrierLabel"`
	NumberTypeLabel   string `json:"numberTypeLabel"`
	IsAnomalous       bool   `json:"isAnomalous"`
	IsVerifiedService bool   `json:"isVerifiedService"`
}

// Entities lists artifacts pulled out of free text.
type Entities struct {
	URLs         []string `json:"urls"`
	Phones       []string `json:"phones"`
	BankAccounts []string `json:"bankAccounts"`
}

func NewVerdict(kind Kind, normalized string, now time.Time) Verdict {
	return Verdict{
		ID:              uuid.New(),
		Kind:            kind,
		Level:           Low,
		NormalizedInput: normalized,
		ScannedAt:       now.UTC(),
	}
}

func (v Verdict) HasTag(tag ReasonTag) bool {
	for _, r := range v.Reasons {
		if r.Tag == tag {
			return true
		}
	}
	return false
}

// NoData reports whether the verdict should be shown in the neutral state.
func (v Verdict) NoData() bool { return v.HasTag(TagNoData) }

func (v Verdict) Unverifiable() bool { return v.HasTag(TagUnverifiable) }
