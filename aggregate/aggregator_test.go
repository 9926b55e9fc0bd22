package aggregate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-vetting-engine/aggregate"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
)

type blacklistFunc func(ctx context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error)

func (f blacklistFunc) FindMatches(ctx context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error) {
	return f(ctx, kind, value)
}

type reportFunc func(ctx context.Context, kind risk.Kind, raw string) ([]ports.Report, error)

func (f reportFunc) FindReports(ctx context.Context, kind risk.Kind, raw string) ([]ports.Report, error) {
	return f(ctx, kind, raw)
}

func returning(matches ...ports.ExternalMatch) blacklistFunc {
	return func(context.Context, risk.Kind, string) ([]ports.ExternalMatch, error) { return matches, nil }
}

func TestSingleHighMatch(t *testing.T) {
	a := aggregate.New(returning(ports.ExternalMatch{Kind: risk.KindPhone, Value: "0812345678", Label: "high"}), nil, 0, nil)
	res, err := a.Scan(context.Background(), risk.KindPhone, "0812345678")
	require.NoError(t, err)
	assert.Equal(t, risk.High, res.Level)
	assert.True(t, res.Found())
	assert.Contains(t, res.Reasons[0].Text, "high")
}

func TestNoMatchesIsNoData(t *testing.T) {
	a := aggregate.New(returning(), nil, 0, nil)
	res, err := a.Scan(context.Background(), risk.KindURL, " https://example.com ")
	require.NoError(t, err)
	assert.Equal(t, risk.Low, res.Level)
	assert.Equal(t, []risk.Reason{risk.NoDataReason}, res.Reasons)
	assert.False(t, res.Found())
}

func TestLevelIsMaxAndReasonsDeduped(t *testing.T) {
	a := aggregate.New(returning(
		ports.ExternalMatch{Label: "link_blacklist (medium)", Note: "fake parcel site"},
		ports.ExternalMatch{Label: "link_blacklist (low)"},
		ports.ExternalMatch{Label: "link_blacklist (medium)", Note: "fake parcel site"},
	), nil, 0, nil)
	res, err := a.Scan(context.Background(), risk.KindURL, "parcel.example")
	require.NoError(t, err)
	assert.Equal(t, risk.Medium, res.Level)
	assert.Equal(t, []string{
		"Scam database: link_blacklist (medium) - fake parcel site",
		"Scam database: link_blacklist (low)",
	}, risk.Texts(res.Reasons))
}

func TestQRUsesURLLookupAndNormalisesValue(t *testing.T) {
	var gotKind risk.Kind
	var gotValue string
	bl := blacklistFunc(func(_ context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error) {
		gotKind, gotValue = kind, value
		return nil, nil
	})
	_, err := aggregate.New(bl, nil, 0, nil).Scan(context.Background(), risk.KindQRPayload, "  pay.example.com/qr ")
	require.NoError(t, err)
	assert.Equal(t, risk.KindURL, gotKind)
	assert.Equal(t, "https://pay.example.com/qr", gotValue)

	_, err = aggregate.New(bl, nil, 0, nil).Scan(context.Background(), risk.KindBankAccount, "123-4-56789-0")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", gotValue)
}

func TestReportsAreMatches(t *testing.T) {
	var gotRaw string
	reports := reportFunc(func(_ context.Context, _ risk.Kind, raw string) ([]ports.Report, error) {
		gotRaw = raw
		return []ports.Report{{ExtraLabel: "fake loan officer", Note: "asked for transfer fee"}}, nil
	})
	a := aggregate.New(returning(), reports, 0, nil)
	res, err := a.Scan(context.Background(), risk.KindPhone, " 081-234-5678 ")
	require.NoError(t, err)
	assert.Equal(t, "081-234-5678", gotRaw)
	assert.Equal(t, risk.High, res.Level)
	assert.Equal(t, []string{"Scam database: User report: fake loan officer - asked for transfer fee"}, risk.Texts(res.Reasons))
}

func TestSourceFailuresAreNoEvidence(t *testing.T) {
	failing := blacklistFunc(func(context.Context, risk.Kind, string) ([]ports.ExternalMatch, error) {
		return nil, errors.New("connection refused")
	})
	slow := reportFunc(func(ctx context.Context, _ risk.Kind, _ string) ([]ports.Report, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a := aggregate.New(failing, slow, 20*time.Millisecond, nil)
	res, err := a.Scan(context.Background(), risk.KindPhone, "0812345678")
	require.NoError(t, err)
	assert.Equal(t, []risk.Reason{risk.NoDataReason}, res.Reasons)
}

func TestCancelledScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := aggregate.New(returning(), nil, 0, nil).Scan(ctx, risk.KindPhone, "0812345678")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBlacklistBeforeReports(t *testing.T) {
	reports := reportFunc(func(context.Context, risk.Kind, string) ([]ports.Report, error) {
		return []ports.Report{{ExtraLabel: "scam call"}}, nil
	})
	slowBlacklist := blacklistFunc(func(context.Context, risk.Kind, string) ([]ports.ExternalMatch, error) {
		time.Sleep(10 * time.Millisecond)
		return []ports.ExternalMatch{{Label: "phone_blacklist (high)"}}, nil
	})
	res, err := aggregate.New(slowBlacklist, reports, 0, nil).Scan(context.Background(), risk.KindPhone, "0812345678")
	require.NoError(t, err)
	assert.Equal(t, []string{"Scam database: phone_blacklist (high)", "Scam database: User report: scam call"}, risk.Texts(res.Reasons))
}

func TestReportTextDoesNotLowerLevel(t *testing.T) {
	reports := reportFunc(func(context.Context, risk.Kind, string) ([]ports.Report, error) {
		return []ports.Report{
			ports.ReportRecord{Kind: risk.KindPhone, Value: "0812345678", Reason: "fake follower giveaway"}.Report(),
			ports.ReportRecord{Kind: risk.KindPhone, Value: "0812345678", Reason: "yellow pages scam", BankName: "Yellow Bank"}.Report(),
		}, nil
	})
	res, err := aggregate.New(returning(), reports, 0, nil).Scan(context.Background(), risk.KindPhone, "0812345678")
	require.NoError(t, err)
	assert.Equal(t, risk.High, res.Level)
	assert.Equal(t, []string{
		"Scam database: User report: phone_report - fake follower giveaway",
		"Scam database: User report: phone_report - yellow pages scam / Bank: Yellow Bank",
	}, risk.Texts(res.Reasons))
}
