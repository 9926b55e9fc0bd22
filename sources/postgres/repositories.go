package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"risk-vetting-engine/normalize"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/risk"
)

type trustedRow struct {
	ID  string `db:"id"`
	URL string `db:"url"`
}

type blacklistRow struct {
	Kind      string   `db:"kind"`
	Value     string   `db:"value"`
	Level     string   `db:"level"`
	Reasons   []string `db:"reasons"`
	BankName  string   `db:"bank_name"`
	OwnerName string   `db:"owner_name"`
}

type reportRow struct {
	Kind     string `db:"kind"`
	Value    string `db:"value"`
	Reason   string `db:"reason"`
	Note     string `db:"note"`
	BankName string `db:"bank_name"`
}

func (r blacklistRow) record() ports.BlacklistRecord {
	return ports.BlacklistRecord{
		Kind:      risk.Kind(r.Kind),
		Value:     r.Value,
		Level:     strings.TrimSpace(r.Level),
		Reasons:   r.Reasons,
		BankName:  r.BankName,
		OwnerName: r.OwnerName,
	}
}

func (r reportRow) record() ports.ReportRecord {
	return ports.ReportRecord{
		Kind:     risk.Kind(r.Kind),
		Value:    r.Value,
		Reason:   r.Reason,
		Note:     r.Note,
		BankName: r.BankName,
	}
}

// TrustSource
func (db *DB) LoadAll(ctx context.Context) ([]ports.TrustedLink, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, url FROM trusted_links ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load trusted links: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[trustedRow])
	if err != nil {
		return nil, fmt.Errorf("load trusted links: %w", err)
	}
	out := make([]ports.TrustedLink, 0, len(found))
	for _, r := range found {
		out = append(out, ports.TrustedLink{ID: r.ID, URL: r.URL})
	}
	return out, nil
}

// BlacklistSource
func (db *DB) FindMatches(ctx context.Context, kind risk.Kind, value string) ([]ports.ExternalMatch, error) {
	kind = kind.LookupKind()
	rows, err := db.Pool.Query(ctx, `
        SELECT kind, value, level, reasons, bank_name, owner_name
        FROM blacklist_entries
        WHERE kind = $1 AND lower(value) = lower($2)
        ORDER BY id
    `, string(kind), normalize.ForKind(kind, value))
	if err != nil {
		return nil, fmt.Errorf("find %s matches: %w", kind, err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[blacklistRow])
	if err != nil {
		return nil, fmt.Errorf("find %s matches: %w", kind, err)
	}
	return blacklistMatches(found), nil
}

// ReportSource
func (db *DB) FindReports(ctx context.Context, kind risk.Kind, raw string) ([]ports.Report, error) {
	kind = kind.LookupKind()
	rows, err := db.Pool.Query(ctx, `
        SELECT kind, value, reason, note, bank_name
        FROM scam_reports
        WHERE kind = $1 AND (lower(value) = lower($2) OR lower(value) = lower($3))
        ORDER BY id
    `, string(kind), strings.TrimSpace(raw), normalize.ForKind(kind, raw))
	if err != nil {
		return nil, fmt.Errorf("find %s reports: %w", kind, err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[reportRow])
	if err != nil {
		return nil, fmt.Errorf("find %s reports: %w", kind, err)
	}
	return reportsOf(found), nil
}

// The conflict targets match the unique indexes in 00002_unique_entries.sql.
const (
	upsertBlacklistSQL = `
        INSERT INTO blacklist_entries (kind, value, level, reasons, bank_name, owner_name)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (kind, lower(value), level, bank_name, owner_name)
        DO UPDATE SET reasons = EXCLUDED.reasons`

	insertReportSQL = `
        INSERT INTO scam_reports (kind, value, reason, note, bank_name)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (kind, lower(value), reason, note, bank_name) DO NOTHING`
)

// Import writes records in one transaction, storing canonical values. It can be
// rerun with the same seed: trusted links are upserted by id, blacklist entries
// refresh their reasons, and repeated reports are skipped.
func (db *DB) Import(ctx context.Context, trusted []ports.TrustedLink, blacklist []ports.BlacklistRecord, reports []ports.ReportRecord) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, t := range trusted {
		if _, err := tx.Exec(ctx, `
            INSERT INTO trusted_links (id, url) VALUES ($1, $2)
            ON CONFLICT (id) DO UPDATE SET url = EXCLUDED.url
        `, t.ID, t.URL); err != nil {
			return fmt.Errorf("import trusted link %q: %w", t.ID, err)
		}
	}
	for _, r := range blacklist {
		if err := r.Validate(); err != nil {
			return err
		}
		kind := r.Kind.LookupKind()
		reasons := r.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		if _, err := tx.Exec(ctx, upsertBlacklistSQL, string(kind), normalize.ForKind(kind, r.Value), r.Level, reasons, r.BankName, r.OwnerName); err != nil {
			return fmt.Errorf("import blacklist entry: %w", err)
		}
	}
	for _, r := range reports {
		if err := r.Validate(); err != nil {
			return err
		}
		kind := r.Kind.LookupKind()
		if _, err := tx.Exec(ctx, insertReportSQL, string(kind), normalize.ForKind(kind, r.Value), r.Reason, r.Note, r.BankName); err != nil {
			return fmt.Errorf("import report: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func blacklistMatches(rows []blacklistRow) []ports.ExternalMatch {
	out := make([]ports.ExternalMatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record().Match())
	}
	return out
}

func reportsOf(rows []reportRow) []ports.Report {
	out := make([]ports.Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record().Report())
	}
	return out
}
