// Package store persists the pipeline's audit trail: every signal
// (valid or not), every plan, every human-logged trade, and the daily
// risk state. Signals and plans are appended (a plan's status column is
// updated in place); trades upsert on their id and risk state upserts
// on its date key. The in-memory pipeline never depends
// on this package for correctness; persistence failures are logged and
// skipped.
package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// Store bundles the four repositories over one sqlite handle.
type Store struct {
	db *sql.DB

	signals   *SignalStore
	plans     *PlanStore
	trades    *TradeStore
	riskState *RiskStateStore
}

// Open opens (creating if needed) the sqlite database at path and
// ensures every table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; the store is called from several
	// activities, so serialize at the pool level.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:        db,
		signals:   &SignalStore{db: db},
		plans:     &PlanStore{db: db},
		trades:    &TradeStore{db: db},
		riskState: &RiskStateStore{db: db},
	}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Signals() *SignalStore      { return s.signals }
func (s *Store) Plans() *PlanStore          { return s.plans }
func (s *Store) Trades() *TradeStore        { return s.trades }
func (s *Store) RiskState() *RiskStateStore { return s.riskState }

func (s *Store) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			ts DATETIME NOT NULL,
			direction TEXT NOT NULL,
			valid BOOLEAN NOT NULL,
			total_score REAL NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts)`,

		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			signal_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			valid BOOLEAN NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_signal_id ON plans(signal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			closed BOOLEAN NOT NULL,
			pnl_amount TEXT NOT NULL DEFAULT '0',
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_plan_id ON trades(plan_id)`,

		`CREATE TABLE IF NOT EXISTS risk_state (
			date TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			hard_shutdown BOOLEAN NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
