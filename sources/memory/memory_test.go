package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
	"risk-vetting-engine/sources/memory"
)

const seed = `
trusted:
  - id: Example Bank
    url: https://www.examplebank.co.th
blacklist:
  - kind: phone
    value: "081-234-5678"
    level: medium
    reasons: [fake courier]
  - kind: qrPayload
    value: pay.example.top/qr
reports:
  - kind: bankAccount
    value: "123-4-56789-0"
    reason: deposit scam
`

func TestParseAndLookup(t *testing.T) {
	s, err := memory.Parse([]byte(seed))
	require.NoError(t, err)
	ctx := context.Background()

	links, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ports.TrustedLink{{ID: "Example Bank", URL: "https://www.examplebank.co.th"}}, links)

	m, err := s.FindMatches(ctx, risk.KindPhone, "0812345678")
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, "phone_blacklist (medium)", m[0].Label)
	assert.Equal(t, "fake courier", m[0].Note)

	m, err = s.FindMatches(ctx, risk.KindURL, "https://PAY.example.top/qr")
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, "link_blacklist (high)", m[0].Label)

	m, err = s.FindMatches(ctx, risk.KindPhone, "0800000000")
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Empty(t, m)

	r, err := s.FindReports(ctx, risk.KindBankAccount, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, []ports.Report{{ExtraLabel: "bank_report", Note: "deposit scam"}}, r)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown kind":  "blacklist:\n  - kind: fax\n    value: '1'\n",
		"missing value": "reports:\n  - kind: phone\n",
		"bad level":     "blacklist:\n  - kind: phone\n    value: '1'\n    level: severe\n",
		"empty url":     "trusted:\n  - id: x\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := memory.Parse([]byte(in))
			assert.ErrorIs(t, err, memory.ErrInvalidRecord)
		})
	}

	_, err := memory.Parse([]byte("blacklist: {"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))
	s, err := memory.Load(path)
	require.NoError(t, err)
	links, _ := s.LoadAll(context.Background())
	assert.Len(t, links, 1)

	_, err = memory.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultSeedAndAdd(t *testing.T) {
	s := memory.Default()
	links, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, links)

	require.NoError(t, s.AddBlacklist(ports.BlacklistRecord{Kind: risk.KindURL, Value: "evil.example"}))
	m, err := s.FindMatches(context.Background(), risk.KindURL, "https://evil.example")
	require.NoError(t, err)
	assert.Len(t, m, 1)

	assert.ErrorIs(t, s.AddReport(ports.ReportRecord{Kind: risk.KindPhone}), memory.ErrInvalidRecord)

	require.NoError(t, s.AddTrusted(ports.TrustedLink{ID: "Example Bank", URL: "https://examplebank.test"}))
	after, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, after, len(links)+1)
	assert.ErrorIs(t, s.AddTrusted(ports.TrustedLink{ID: "blank"}), memory.ErrInvalidRecord)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := memory.Default().FindMatches(ctx, risk.KindPhone, "1")
	assert.ErrorIs(t, err, context.Canceled)
}
