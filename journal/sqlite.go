package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the journal database at path.
func NewSQLite(path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, qty, entry_price, exit_price, open_time, close_time, realized_pl, reason, entry_signals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Qty, t.EntryPrice, t.ExitPrice,
		t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason, marshalJSON(t.EntrySignals),
	)
	return err
}

func (j *SQLiteJournal) RecordPositionCheck(c PositionCheck) error {
	_, err := j.db.Exec(`
		INSERT INTO position_checks
		(id, check_time, symbol, score, signals, details, pnl_pct, alert_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CheckTime, c.Symbol, c.Score,
		marshalJSON(c.Signals), marshalJSON(c.Details), c.PnLPct, boolToInt(c.AlertSent),
	)
	return err
}

func (j *SQLiteJournal) RecordPoorSignal(p PoorSignal) error {
	_, err := j.db.Exec(`
		INSERT INTO poor_signals
		(id, symbol, entry_signals, reversal_score, reversal_signals, pnl_pct, notes, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Symbol, marshalJSON(p.EntrySignals), p.ReversalScore,
		marshalJSON(p.ReversalSignals), p.PnLPct, p.Notes, p.RecordedAt,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`INSERT INTO equity (time, equity) VALUES (?, ?)`, e.Time, e.Equity)
	return err
}

// RecentChecks returns the latest reversal checks for a symbol, newest first.
func (j *SQLiteJournal) RecentChecks(symbol string, limit int) ([]PositionCheck, error) {
	rows, err := j.db.Query(`
		SELECT id, check_time, symbol, score, signals, details, pnl_pct, alert_sent
		FROM position_checks WHERE symbol = ?
		ORDER BY check_time DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionCheck
	for rows.Next() {
		var c PositionCheck
		var signals, details string
		var alert int
		if err := rows.Scan(&c.ID, &c.CheckTime, &c.Symbol, &c.Score, &signals, &details, &c.PnLPct, &alert); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(signals), &c.Signals)
		_ = json.Unmarshal([]byte(details), &c.Details)
		c.AlertSent = alert != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// PoorSignals returns recorded poor-signal samples since the cutoff, newest
// first, for the pattern-review loop.
func (j *SQLiteJournal) PoorSignals(since time.Time) ([]PoorSignal, error) {
	rows, err := j.db.Query(`
		SELECT id, symbol, entry_signals, reversal_score, reversal_signals, pnl_pct, notes, recorded_at
		FROM poor_signals WHERE recorded_at >= ?
		ORDER BY recorded_at DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PoorSignal
	for rows.Next() {
		var p PoorSignal
		var entry, reversal string
		if err := rows.Scan(&p.ID, &p.Symbol, &entry, &p.ReversalScore, &reversal, &p.PnLPct, &p.Notes, &p.RecordedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(entry), &p.EntrySignals)
		_ = json.Unmarshal([]byte(reversal), &p.ReversalSignals)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
