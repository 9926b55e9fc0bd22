package ports

import (
	"errors"
	"fmt"
	"strings"

	"risk-vetting-engine/risk"
)

var ErrInvalidRecord = errors.New("invalid record")

// BlacklistRecord is a stored blacklist document. Optional fields may be empty.
type BlacklistRecord struct {
	Kind      risk.Kind `yaml:"kind" json:"kind"`
	Value     string    `yaml:"value" json:"value"`
	Level     string    `yaml:"level" json:"level,omitempty"`
	Reasons   []string  `yaml:"reasons" json:"reasons,omitempty"`
	BankName  string    `yaml:"bank_name" json:"bank_name,omitempty"`
	OwnerName string    `yaml:"owner_name" json:"owner_name,omitempty"`
}

func (r BlacklistRecord) Validate() error {
	if _, err := risk.ParseKind(string(r.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if strings.TrimSpace(r.Value) == "" {
		return fmt.Errorf("%w: %s record without value", ErrInvalidRecord, r.Kind)
	}
	if r.Level != "" {
		if _, err := risk.ParseLevel(r.Level); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	return nil
}

// Match renders the record the way the aggregator expects: a label naming the
// collection and level, and a note joining the stored reasons.
func (r BlacklistRecord) Match() ExternalMatch {
	level := strings.ToLower(strings.TrimSpace(r.Level))
	if level == "" {
		level = "high"
	}

	var parts []string
	for _, reason := range r.Reasons {
		if s := strings.TrimSpace(reason); s != "" {
			parts = append(parts, s)
		}
	}
	if r.BankName != "" {
		parts = append(parts, "Bank: "+r.BankName)
	}
	if r.OwnerName != "" {
		parts = append(parts, "Account name: "+r.OwnerName)
	}
	note := "listed in blacklist"
	if len(parts) > 0 {
		note = strings.Join(parts, " / ")
	}

	return ExternalMatch{
		Kind:  r.Kind.LookupKind(),
		Value: r.Value,
		Label: fmt.Sprintf("%s_blacklist (%s)", Collection(r.Kind), level),
		Note:  note,
	}
}

// ReportRecord is a stored user report.
type ReportRecord struct {
	Kind     risk.Kind `yaml:"kind" json:"kind"`
	Value    string    `yaml:"value" json:"value"`
	Reason   string    `yaml:"reason" json:"reason,omitempty"`
	Note     string    `yaml:"note" json:"note,omitempty"`
	BankName string    `yaml:"bank_name" json:"bank_name,omitempty"`
}

func (r ReportRecord) Validate() error {
	if _, err := risk.ParseKind(string(r.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if strings.TrimSpace(r.Value) == "" {
		return fmt.Errorf("%w: %s report without value", ErrInvalidRecord, r.Kind)
	}
	return nil
}

// Report keeps the label fixed to the collection so free text never reaches the
// label-to-level rule. Reason, note and bank name go into the note.
func (r ReportRecord) Report() Report {
	var parts []string
	for _, p := range []string{r.Reason, r.Note} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if bank := strings.TrimSpace(r.BankName); bank != "" {
		parts = append(parts, "Bank: "+bank)
	}
	return Report{Note: strings.Join(parts, " / "), ExtraLabel: Collection(r.Kind) + "_report"}
}

// Collection is the storage prefix for a kind: link, phone, bank or sms.
func Collection(k risk.Kind) string {
	switch k.LookupKind() {
	case risk.KindURL:
		return "link"
	case risk.KindPhone:
		return "phone"
	case risk.KindBankAccount:
		return "bank"
	}
	return "sms"
}
