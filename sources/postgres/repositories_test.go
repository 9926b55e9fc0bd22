package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-vetting-engine/risk"
)

func TestBlacklistRowsToMatches(t *testing.T) {
	got := blacklistMatches([]blacklistRow{
		{Kind: "bankAccount", Value: "1112223334", Level: " medium ", Reasons: []string{"never delivered"}, BankName: "KBank"},
		{Kind: "url", Value: "https://evil.example"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "bank_blacklist (medium)", got[0].Label)
	assert.Equal(t, "never delivered / Bank: KBank", got[0].Note)
	assert.Equal(t, risk.KindBankAccount, got[0].Kind)
	assert.Equal(t, "link_blacklist (high)", got[1].Label)
	assert.Equal(t, "listed in blacklist", got[1].Note)
}

func TestReportRowsToReports(t *testing.T) {
	got := reportsOf([]reportRow{{Kind: "phone", Value: "0812345678", Reason: "fake loan officer", Note: "transfer fee"}})
	require.Len(t, got, 1)
	assert.Equal(t, "phone_report", got[0].ExtraLabel)
	assert.Equal(t, "fake loan officer / transfer fee", got[0].Note)

	assert.NotNil(t, reportsOf(nil))
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	assert.Contains(t, names, "migrations/00001_init.sql")
	assert.Contains(t, names, "migrations/00002_unique_entries.sql")
}

func TestImportConflictTargetsHaveUniqueIndexes(t *testing.T) {
	ddl, err := fs.ReadFile(migrations, "migrations/00002_unique_entries.sql")
	require.NoError(t, err)

	tests := []struct {
		stmt  string
		index string
		cols  string
	}{
		{upsertBlacklistSQL, "ON blacklist_entries", "(kind, lower(value), level, bank_name, owner_name)"},
		{insertReportSQL, "ON scam_reports", "(kind, lower(value), reason, note, bank_name)"},
	}
	for _, tt := range tests {
		assert.Contains(t, tt.stmt, "ON CONFLICT "+tt.cols)
		assert.Contains(t, string(ddl), tt.index+" "+tt.cols)
	}
}
