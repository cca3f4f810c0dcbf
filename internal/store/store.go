// Package store persists backtest runs and their trades in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"longbtc-go/internal/backtest"
	"longbtc-go/internal/ledger"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

var runNamespace = uuid.MustParse("6f1c7a52-3c1e-4e0b-9a55-6c1d2f0e8b41")

// RunID derives a stable ID from the run's configuration and input data, so
// repeating a run overwrites its previous record.
func RunID(config []byte, fingerprint string) uuid.UUID {
	name := make([]byte, 0, len(config)+1+len(fingerprint))
	name = append(name, config...)
	name = append(name, 0)
	name = append(name, fingerprint...)
	return uuid.NewSHA1(runNamespace, name)
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	strategy     TEXT NOT NULL,
	status       TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	config       TEXT NOT NULL,
	bars         INTEGER NOT NULL,
	start_time   TEXT NOT NULL,
	end_time     TEXT NOT NULL,
	final_equity REAL NOT NULL,
	total_return REAL NOT NULL,
	trades       INTEGER NOT NULL,
	sharpe       REAL,
	max_drawdown REAL,
	total_fees   REAL NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	entry_time   TEXT NOT NULL,
	entry_price  REAL NOT NULL,
	exit_time    TEXT NOT NULL,
	exit_price   REAL NOT NULL,
	notional     REAL NOT NULL,
	pnl          REAL NOT NULL,
	pnl_pct      REAL NOT NULL,
	entry_fee    REAL NOT NULL,
	exit_fee     REAL NOT NULL,
	net_pnl      REAL NOT NULL,
	holding_ns   INTEGER NOT NULL,
	bars         INTEGER NOT NULL,
	reason       TEXT NOT NULL,
	equity_after REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Store wraps the database connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and its directory when missing and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Run is one stored run without its trades.
type Run struct {
	ID          uuid.UUID
	Strategy    string
	Status      backtest.Status
	Fingerprint string
	Config      string
	Bars        int
	Start       time.Time
	End         time.Time
	FinalEquity float64
	TotalReturn float64
	Trades      int
	Sharpe      *float64
	MaxDrawdown *float64
	TotalFees   float64
	CreatedAt   time.Time
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// SaveRun stores res under id, replacing any earlier run with the same ID.
func (s *Store) SaveRun(ctx context.Context, id uuid.UUID, config []byte, fingerprint string, res backtest.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id = ?`, id.String()); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	sum := res.Summary
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, strategy, status, fingerprint, config, bars, start_time, end_time,
		 final_equity, total_return, trades, sharpe, max_drawdown, total_fees, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), res.Strategy, string(res.Status), fingerprint, string(config), res.Bars,
		formatTime(res.Start), formatTime(res.End), res.FinalEquity, sum.TotalReturn, len(res.Trades),
		nullable(sum.Sharpe), nullable(sum.MaxDrawdown), sum.TotalFees, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades
		(run_id, seq, entry_time, entry_price, exit_time, exit_price, notional, pnl, pnl_pct,
		 entry_fee, exit_fee, net_pnl, holding_ns, bars, reason, equity_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trades: %w", err)
	}
	defer stmt.Close()
	for i, tr := range res.Trades {
		if _, err := stmt.ExecContext(ctx, id.String(), i, formatTime(tr.EntryTime), tr.EntryPrice,
			formatTime(tr.ExitTime), tr.ExitPrice, tr.Notional, tr.PnL, tr.PnLPct, tr.EntryFee,
			tr.ExitFee, tr.NetPnL, int64(tr.Holding), tr.Bars, string(tr.Reason), tr.EquityAfter); err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

const runColumns = `id, strategy, status, fingerprint, config, bars, start_time, end_time,
	final_equity, total_return, trades, sharpe, max_drawdown, total_fees, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                   Run
		id, status          string
		start, end, created string
		sharpe, drawdown    sql.NullFloat64
	)
	if err := row.Scan(&id, &r.Strategy, &status, &r.Fingerprint, &r.Config, &r.Bars, &start, &end,
		&r.FinalEquity, &r.TotalReturn, &r.Trades, &sharpe, &drawdown, &r.TotalFees, &created); err != nil {
		return Run{}, err
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("run id: %w", err)
	}
	r.Status = backtest.Status(status)
	if r.Start, err = parseTime(start); err != nil {
		return Run{}, err
	}
	if r.End, err = parseTime(end); err != nil {
		return Run{}, err
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return Run{}, err
	}
	r.Sharpe, r.MaxDrawdown = floatPtr(sharpe), floatPtr(drawdown)
	return r, nil
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trades returns the trades of a run in the order they closed.
func (s *Store) Trades(ctx context.Context, id uuid.UUID) ([]ledger.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry_time, entry_price, exit_time, exit_price, notional,
		pnl, pnl_pct, entry_fee, exit_fee, net_pnl, holding_ns, bars, reason, equity_after
		FROM trades WHERE run_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()
	var out []ledger.Trade
	for rows.Next() {
		var (
			tr          ledger.Trade
			entry, exit string
			holding     int64
			reason      string
		)
		if err := rows.Scan(&entry, &tr.EntryPrice, &exit, &tr.ExitPrice, &tr.Notional, &tr.PnL, &tr.PnLPct,
			&tr.EntryFee, &tr.ExitFee, &tr.NetPnL, &holding, &tr.Bars, &reason, &tr.EquityAfter); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if tr.EntryTime, err = parseTime(entry); err != nil {
			return nil, err
		}
		if tr.ExitTime, err = parseTime(exit); err != nil {
			return nil, err
		}
		tr.Holding = time.Duration(holding)
		tr.Reason = ledger.Reason(reason)
		out = append(out, tr)
	}
	return out, rows.Err()
}
