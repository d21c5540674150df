package fisco

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	run_id              TEXT NOT NULL,
	run_type            TEXT NOT NULL,
	seq                 INTEGER NOT NULL,
	date                TEXT NOT NULL,
	type                TEXT NOT NULL,
	symbol              TEXT NOT NULL DEFAULT '',
	quantity            TEXT NOT NULL DEFAULT '0',
	price               TEXT NOT NULL DEFAULT '0',
	amount              TEXT NOT NULL DEFAULT '0',
	fees                TEXT NOT NULL DEFAULT '0',
	tax_paid            TEXT NOT NULL DEFAULT '0',
	pmc_snapshot        TEXT NOT NULL DEFAULT '0',
	currency            TEXT NOT NULL,
	decision_path       TEXT NOT NULL,
	reason_code         TEXT NOT NULL,
	holding_days_target INTEGER NOT NULL DEFAULT 0,
	expected_exit_date  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS proposals (
	run_id   TEXT NOT NULL,
	run_type TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	date     TEXT NOT NULL,
	symbol   TEXT NOT NULL,
	side     TEXT NOT NULL,
	quantity TEXT NOT NULL DEFAULT '0',
	price    TEXT NOT NULL DEFAULT '0',
	currency TEXT NOT NULL,
	score    REAL NOT NULL DEFAULT 0,
	status   TEXT NOT NULL,
	reason   TEXT NOT NULL DEFAULT '',
	detail   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity_points (
	run_id    TEXT NOT NULL,
	seq       INTEGER NOT NULL,
	date      TEXT NOT NULL,
	cash      TEXT NOT NULL,
	positions TEXT NOT NULL,
	total     TEXT NOT NULL,
	currency  TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS tax_buckets (
	run_id       TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	symbol       TEXT NOT NULL,
	realize_date TEXT NOT NULL,
	loss         TEXT NOT NULL,
	used         TEXT NOT NULL,
	expires_at   TEXT NOT NULL,
	category     TEXT NOT NULL,
	currency     TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// SQLiteStore is the durable RunStore. The whole run is written in one
// transaction so a crashed save never leaves a partial run behind.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", path, err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveRun(ctx context.Context, res *RunResult) error {
	runID := res.Ledger.RunID()
	runType := string(res.Ledger.RunType())
	cur := res.Ledger.Currency()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return fmt.Errorf("check run %q: %w", runID, err)
	}
	if n > 0 {
		return fmt.Errorf("run %q already stored", runID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run %q: %w", runID, err)
	}
	defer tx.Rollback()

	for seq, e := range res.Ledger.Entries() {
		exitDate := ""
		if !e.ExpectedExitDate.IsZero() {
			exitDate = e.ExpectedExitDate.String()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (run_id, run_type, seq, date, type, symbol, quantity, price, amount, fees, tax_paid, pmc_snapshot, currency, decision_path, reason_code, holding_days_target, expected_exit_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, runType, seq, e.Date.String(), string(e.Type), e.Symbol,
			e.Quantity.String(), e.Price.Decimal().String(), e.Amount.Decimal().String(),
			e.Fees.Decimal().String(), e.TaxPaid.Decimal().String(), e.PMCSnapshot.Decimal().String(),
			cur, e.DecisionPath, e.ReasonCode, e.HoldingDaysTarget, exitDate,
		); err != nil {
			return fmt.Errorf("save ledger entry %d of run %q: %w", seq, runID, err)
		}
	}

	for seq, p := range res.Proposals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO proposals (run_id, run_type, seq, date, symbol, side, quantity, price, currency, score, status, reason, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, runType, seq, p.Date.String(), p.Symbol, string(p.Side),
			p.Quantity.String(), p.Price.Decimal().String(), cur,
			p.Score, string(p.Status), string(p.Reason), p.Detail,
		); err != nil {
			return fmt.Errorf("save proposal %d of run %q: %w", seq, runID, err)
		}
	}

	for seq, p := range res.Equity {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO equity_points (run_id, seq, date, cash, positions, total, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, seq, p.Date.String(),
			p.Cash.Decimal().String(), p.Positions.Decimal().String(), p.Total.Decimal().String(), cur,
		); err != nil {
			return fmt.Errorf("save equity point %d of run %q: %w", seq, runID, err)
		}
	}

	for seq, b := range res.Buckets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tax_buckets (run_id, seq, symbol, realize_date, loss, used, expires_at, category, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, seq, b.Symbol, b.RealizeDate.String(),
			b.Loss.Decimal().String(), b.Used.Decimal().String(),
			b.ExpiresAt.String(), string(b.Category), cur,
		); err != nil {
			return fmt.Errorf("save tax bucket %d of run %q: %w", seq, runID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ClearRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear run %q: %w", runID, err)
	}
	defer tx.Rollback()
	for _, table := range []string{"ledger_entries", "proposals", "equity_points", "tax_buckets"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear run %q from %s: %w", runID, table, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadEntries(ctx context.Context, runID string) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_type, date, type, symbol, quantity, price, amount, fees, tax_paid, pmc_snapshot, currency, decision_path, reason_code, holding_days_target, expected_exit_date
		FROM ledger_entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load entries of run %q: %w", runID, err)
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var runType, date, typ, qty, price, amount, fees, taxPaid, pmc, cur, exitDate string
		var e LedgerEntry
		if err := rows.Scan(&runType, &date, &typ, &e.Symbol, &qty, &price, &amount, &fees, &taxPaid, &pmc, &cur, &e.DecisionPath, &e.ReasonCode, &e.HoldingDaysTarget, &exitDate); err != nil {
			return nil, fmt.Errorf("load entries of run %q: %w", runID, err)
		}
		e.RunID = runID
		e.RunType = RunType(runType)
		e.Type = EntryType(typ)
		if e.Date, err = ParseDate(date); err != nil {
			return nil, fmt.Errorf("load entries of run %q: %w", runID, err)
		}
		if exitDate != "" {
			if e.ExpectedExitDate, err = ParseDate(exitDate); err != nil {
				return nil, fmt.Errorf("load entries of run %q: %w", runID, err)
			}
		}
		if e.Quantity, err = parseQuantity(qty); err != nil {
			return nil, fmt.Errorf("load entries of run %q: %w", runID, err)
		}
		for _, f := range []struct {
			dst *Money
			src string
		}{
			{&e.Price, price}, {&e.Amount, amount}, {&e.Fees, fees},
			{&e.TaxPaid, taxPaid}, {&e.PMCSnapshot, pmc},
		} {
			if *f.dst, err = parseMoney(f.src, cur); err != nil {
				return nil, fmt.Errorf("load entries of run %q: %w", runID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadProposals(ctx context.Context, runID string) ([]Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_type, date, symbol, side, quantity, price, currency, score, status, reason, detail
		FROM proposals WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load proposals of run %q: %w", runID, err)
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		var runType, date, side, qty, price, cur, status, reason string
		var p Proposal
		if err := rows.Scan(&runType, &date, &p.Symbol, &side, &qty, &price, &cur, &p.Score, &status, &reason, &p.Detail); err != nil {
			return nil, fmt.Errorf("load proposals of run %q: %w", runID, err)
		}
		p.RunID = runID
		p.RunType = RunType(runType)
		p.Side = Side(side)
		p.Status = OrderStatus(status)
		p.Reason = RejectReason(reason)
		if p.Date, err = ParseDate(date); err != nil {
			return nil, fmt.Errorf("load proposals of run %q: %w", runID, err)
		}
		if p.Quantity, err = parseQuantity(qty); err != nil {
			return nil, fmt.Errorf("load proposals of run %q: %w", runID, err)
		}
		if p.Price, err = parseMoney(price, cur); err != nil {
			return nil, fmt.Errorf("load proposals of run %q: %w", runID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadBuckets(ctx context.Context, runID string) ([]TaxLossBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, realize_date, loss, used, expires_at, category, currency
		FROM tax_buckets WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load buckets of run %q: %w", runID, err)
	}
	defer rows.Close()

	var out []TaxLossBucket
	for rows.Next() {
		var realize, loss, used, expires, cat, cur string
		var b TaxLossBucket
		if err := rows.Scan(&b.Symbol, &realize, &loss, &used, &expires, &cat, &cur); err != nil {
			return nil, fmt.Errorf("load buckets of run %q: %w", runID, err)
		}
		b.Category = TaxCategory(cat)
		if b.RealizeDate, err = ParseDate(realize); err != nil {
			return nil, fmt.Errorf("load buckets of run %q: %w", runID, err)
		}
		if b.ExpiresAt, err = ParseDate(expires); err != nil {
			return nil, fmt.Errorf("load buckets of run %q: %w", runID, err)
		}
		if b.Loss, err = parseMoney(loss, cur); err != nil {
			return nil, fmt.Errorf("load buckets of run %q: %w", runID, err)
		}
		if b.Used, err = parseMoney(used, cur); err != nil {
			return nil, fmt.Errorf("load buckets of run %q: %w", runID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadEquity(ctx context.Context, runID string) ([]EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, cash, positions, total, currency
		FROM equity_points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity of run %q: %w", runID, err)
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var date, cash, positions, total, cur string
		var p EquityPoint
		if err := rows.Scan(&date, &cash, &positions, &total, &cur); err != nil {
			return nil, fmt.Errorf("load equity of run %q: %w", runID, err)
		}
		if p.Date, err = ParseDate(date); err != nil {
			return nil, fmt.Errorf("load equity of run %q: %w", runID, err)
		}
		if p.Cash, err = parseMoney(cash, cur); err != nil {
			return nil, fmt.Errorf("load equity of run %q: %w", runID, err)
		}
		if p.Positions, err = parseMoney(positions, cur); err != nil {
			return nil, fmt.Errorf("load equity of run %q: %w", runID, err)
		}
		if p.Total, err = parseMoney(total, cur); err != nil {
			return nil, fmt.Errorf("load equity of run %q: %w", runID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, run_type, MIN(date), MAX(date), COUNT(*)
		FROM ledger_entries GROUP BY run_id, run_type ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var runType, start, end string
		if err := rows.Scan(&info.RunID, &runType, &start, &end, &info.Entries); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		info.RunType = RunType(runType)
		if info.Start, err = ParseDate(start); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if info.End, err = ParseDate(end); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func parseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return M(d, currency), nil
}

func parseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return Q(d), nil
}
