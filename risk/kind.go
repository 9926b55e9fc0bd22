package risk

import "fmt"

// Kind identifies what sort of artifact was submitted for a scan.
type Kind string

const (
	KindURL         Kind = "url"
	KindQRPayload   Kind = "qrPayload"
	KindPhone       Kind = "phone"
	KindBankAccount Kind = "bankAccount"
	KindSMSText     Kind = "smsText"
)

var kinds = map[Kind]struct{}{
	KindURL:         {},
	KindQRPayload:   {},
	KindPhone:       {},
	KindBankAccount: {},
	KindSMSText:     {},
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("unknown artifact kind %q", s)
	}
	return k, nil
}

// LookupKind is the kind used against blacklist and report collections.
// QR payloads share the URL collections.
func (k Kind) LookupKind() Kind {
	if k == KindQRPayload {
		return KindURL
	}
	return k
}
