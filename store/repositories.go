package store

import (
	"database/sql"
	"encoding/json"

	"optionsdesk/apperrors"
	"optionsdesk/plan"
	"optionsdesk/risk"
	"optionsdesk/signal"
)

// SignalStore appends every fused signal, valid or not, so a human
// reviewing a no-trade day can see why nothing was offered.
type SignalStore struct {
	db *sql.DB
}

func (s *SignalStore) Append(sig signal.TradeSignal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "marshaling signal", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO signals (id, ts, direction, valid, total_score, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.Timestamp, string(sig.Direction), sig.Valid, sig.TotalScore, string(payload))
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "inserting signal", err)
	}
	return nil
}

// Recent returns the latest n signals, newest first.
func (s *SignalStore) Recent(n int) ([]signal.TradeSignal, error) {
	rows, err := s.db.Query(`SELECT payload FROM signals ORDER BY ts DESC LIMIT ?`, n)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.PersistenceError, "querying signals", err)
	}
	defer rows.Close()

	var out []signal.TradeSignal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apperrors.Wrap(apperrors.PersistenceError, "scanning signal", err)
		}
		var sig signal.TradeSignal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			return nil, apperrors.Wrap(apperrors.PersistenceError, "unmarshaling signal", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// PlanStore appends trade plans and lets the caller refresh a plan's
// lifecycle status (pending -> expired and the like).
type PlanStore struct {
	db *sql.DB
}

func (s *PlanStore) Append(p plan.Plan) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "marshaling plan", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO plans (id, signal_id, direction, status, valid, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.SignalID, string(p.Direction), string(p.Status), p.Valid, string(payload), p.CreatedAt, p.ExpiresAt)
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "inserting plan", err)
	}
	return nil
}

func (s *PlanStore) UpdateStatus(id string, status plan.Status) error {
	_, err := s.db.Exec(`UPDATE plans SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "updating plan status", err)
	}
	return nil
}

func (s *PlanStore) Get(id string) (plan.Plan, error) {
	var payload, status string
	err := s.db.QueryRow(`SELECT payload, status FROM plans WHERE id = ?`, id).Scan(&payload, &status)
	if err != nil {
		return plan.Plan{}, apperrors.Wrap(apperrors.PersistenceError, "loading plan", err)
	}
	var p plan.Plan
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return plan.Plan{}, apperrors.Wrap(apperrors.PersistenceError, "unmarshaling plan", err)
	}
	// The status column is authoritative: lifecycle transitions update
	// it without rewriting the payload.
	p.Status = plan.Status(status)
	return p, nil
}

// Recent returns the latest n plans, newest first.
func (s *PlanStore) Recent(n int) ([]plan.Plan, error) {
	rows, err := s.db.Query(`SELECT payload, status FROM plans ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.PersistenceError, "querying plans", err)
	}
	defer rows.Close()

	var out []plan.Plan
	for rows.Next() {
		var payload, status string
		if err := rows.Scan(&payload, &status); err != nil {
			return nil, apperrors.Wrap(apperrors.PersistenceError, "scanning plan", err)
		}
		var p plan.Plan
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, apperrors.Wrap(apperrors.PersistenceError, "unmarshaling plan", err)
		}
		p.Status = plan.Status(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

// TradeStore upserts human-logged executed trades on their id: the
// entry inserts the row and the exit updates it.
type TradeStore struct {
	db *sql.DB
}

func (s *TradeStore) Upsert(t risk.Trade) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "marshaling trade", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO trades (id, plan_id, direction, closed, pnl_amount, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			closed = excluded.closed,
			pnl_amount = excluded.pnl_amount,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
	`, t.ID, t.PlanID, string(t.Direction), t.Closed, t.PnLAmount.String(), string(payload))
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "upserting trade", err)
	}
	return nil
}

func (s *TradeStore) Get(id string) (risk.Trade, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM trades WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return risk.Trade{}, apperrors.Wrap(apperrors.PersistenceError, "loading trade", err)
	}
	var t risk.Trade
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return risk.Trade{}, apperrors.Wrap(apperrors.PersistenceError, "unmarshaling trade", err)
	}
	return t, nil
}

// Recent returns the latest n trades, newest first.
func (s *TradeStore) Recent(n int) ([]risk.Trade, error) {
	rows, err := s.db.Query(`SELECT payload FROM trades ORDER BY updated_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.PersistenceError, "querying trades", err)
	}
	defer rows.Close()

	var out []risk.Trade
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apperrors.Wrap(apperrors.PersistenceError, "scanning trade", err)
		}
		var t risk.Trade
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, apperrors.Wrap(apperrors.PersistenceError, "unmarshaling trade", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RiskStateStore upserts the daily risk state on its date key.
type RiskStateStore struct {
	db *sql.DB
}

func (s *RiskStateStore) Upsert(st risk.DailyState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "marshaling risk state", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO risk_state (date, status, hard_shutdown, payload, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(date) DO UPDATE SET
			status = excluded.status,
			hard_shutdown = excluded.hard_shutdown,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
	`, st.Date, string(st.Status), st.HardShutdown, string(payload))
	if err != nil {
		return apperrors.Wrap(apperrors.PersistenceError, "upserting risk state", err)
	}
	return nil
}

// Load returns the state for a date; sql.ErrNoRows-backed error when
// none exists.
func (s *RiskStateStore) Load(date string) (risk.DailyState, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM risk_state WHERE date = ?`, date).Scan(&payload)
	if err != nil {
		return risk.DailyState{}, apperrors.Wrap(apperrors.PersistenceError, "loading risk state", err)
	}
	var st risk.DailyState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return risk.DailyState{}, apperrors.Wrap(apperrors.PersistenceError, "unmarshaling risk state", err)
	}
	return st, nil
}
