package phone

import (
	"strings"

	"risk-vetting-engine/normalize"
	"risk-vetting-engine/risk"
)

const (
	LocalCountryCode = "+66"

	unknownOrigin  = "Unknown area"
	unknownCarrier = "Unknown carrier"
	genericType    = "General number"
	landlineType   = "Landline"
	mobileType     = "Mobile"
)

var landlinePrefixes = []struct {
	prefix string
	origin string
}{
	{"02", "Bangkok metropolitan area"},
	{"053", "Chiang Mai / North"},
	{"074", "Songkhla / South"},
}

var carriers = map[string]string{
	"061": "AIS", "062": "AIS", "081": "AIS", "082": "AIS", "092": "AIS", "098": "AIS",
	"064": "True/dtac", "083": "True/dtac", "084": "True/dtac", "095": "True/dtac", "096": "True/dtac",
}

// verifiedServices are public hotlines that are safe to call back.
var verifiedServices = map[string]string{
	"191":  "Emergency (191)",
	"1599": "Police hotline (1599)",
	"1441": "Cyber police (1441)",
}

// Analyze derives metadata from the digits of raw. ok is false when raw holds no digits.
func Analyze(raw string) (risk.PhoneMetadata, bool) {
	cleaned := normalize.PhoneDigits(raw)
	if cleaned == "" {
		return risk.PhoneMetadata{}, false
	}

	meta := risk.PhoneMetadata{
		CleanedDigits:   cleaned,
		OriginLabel:     unknownOrigin,
		CarrierLabel:    unknownCarrier,
		NumberTypeLabel: genericType,
	}

	for _, l := range landlinePrefixes {
		if strings.HasPrefix(cleaned, l.prefix) {
			meta.OriginLabel = l.origin
			meta.NumberTypeLabel = landlineType
			break
		}
	}

	if len(cleaned) >= 3 {
		if c, ok := carriers[cleaned[:3]]; ok {
			meta.CarrierLabel = c
			meta.NumberTypeLabel = mobileType
		}
	}

	if strings.HasPrefix(cleaned, "+") && !strings.HasPrefix(cleaned, LocalCountryCode) {
		meta.OriginLabel = "International (high-risk origin)"
		meta.NumberTypeLabel = "International call"
	}

	if name, ok := verifiedServices[cleaned]; ok {
		meta.IsVerifiedService = true
		meta.NumberTypeLabel = "Government service: " + name
	}

	digits := strings.TrimPrefix(cleaned, "+")
	meta.IsAnomalous = len(digits) >= 9 && distinct(digits) <= 2
	return meta, true
}

func distinct(s string) int {
	seen := map[rune]struct{}{}
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
