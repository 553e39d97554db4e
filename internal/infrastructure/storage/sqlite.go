package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/ladder_bot/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS position_state (
			symbol TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			side TEXT NOT NULL DEFAULT '',
			order_size REAL NOT NULL DEFAULT 0,
			entry_price REAL NOT NULL DEFAULT 0,
			attempt INTEGER NOT NULL DEFAULT 0,
			open_order_id TEXT NOT NULL DEFAULT '',
			legs TEXT NOT NULL DEFAULT '[]',
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trade_log (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			order_link_id TEXT NOT NULL,
			status TEXT NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			qty REAL NOT NULL,
			position_side TEXT NOT NULL DEFAULT '',
			entry_price REAL NOT NULL DEFAULT 0,
			trigger_prices TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_symbol ON trade_log(symbol, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// StateRepository Implementation

func (s *SQLiteStore) SaveState(ctx context.Context, st domain.PositionState) error {
	legs, err := json.Marshal(st.Legs)
	if err != nil {
		return fmt.Errorf("encode legs: %w", err)
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	query := `INSERT INTO position_state (symbol, phase, side, order_size, entry_price, attempt, open_order_id, legs, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(symbol) DO UPDATE SET
			  phase=excluded.phase,
			  side=excluded.side,
			  order_size=excluded.order_size,
			  entry_price=excluded.entry_price,
			  attempt=excluded.attempt,
			  open_order_id=excluded.open_order_id,
			  legs=excluded.legs,
			  updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		st.Symbol, st.Phase, st.Side, st.OrderSize, st.EntryPrice, st.Attempt, st.OpenOrderID, string(legs), st.UpdatedAt)
	return err
}

const stateColumns = `symbol, phase, side, order_size, entry_price, attempt, open_order_id, legs, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*domain.PositionState, error) {
	var st domain.PositionState
	var legs string
	if err := row.Scan(&st.Symbol, &st.Phase, &st.Side, &st.OrderSize, &st.EntryPrice, &st.Attempt, &st.OpenOrderID, &legs, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(legs), &st.Legs); err != nil {
		return nil, fmt.Errorf("decode legs of %s: %w", st.Symbol, err)
	}
	if len(st.Legs) == 0 {
		st.Legs = nil
	}
	return &st, nil
}

func (s *SQLiteStore) LoadState(ctx context.Context, symbol string) (*domain.PositionState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM position_state WHERE symbol = ?`, symbol)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return st, err
}

func (s *SQLiteStore) ListStates(ctx context.Context) ([]*domain.PositionState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stateColumns+` FROM position_state ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*domain.PositionState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// TradeLog Implementation

func (s *SQLiteStore) RecordFill(ctx context.Context, rec domain.TradeRecord) error {
	triggers, err := json.Marshal(rec.TriggerPrices)
	if err != nil {
		return fmt.Errorf("encode trigger prices: %w", err)
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	query := `INSERT INTO trade_log (id, symbol, order_link_id, status, side, price, qty, position_side, entry_price, trigger_prices, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(), rec.Symbol, rec.Fill.OrderLinkID, rec.Fill.Status, rec.Fill.Side,
		rec.Fill.Price, rec.Fill.Qty, rec.PositionSide, rec.EntryPrice, string(triggers), rec.RecordedAt)
	return err
}

// ListTrades returns the most recent trade log rows for symbol, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, symbol string, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT symbol, order_link_id, status, side, price, qty, position_side, entry_price, trigger_prices, created_at
			  FROM trade_log WHERE symbol = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var triggers string
		if err := rows.Scan(&rec.Symbol, &rec.Fill.OrderLinkID, &rec.Fill.Status, &rec.Fill.Side,
			&rec.Fill.Price, &rec.Fill.Qty, &rec.PositionSide, &rec.EntryPrice, &triggers, &rec.RecordedAt); err != nil {
			return nil, err
		}
		rec.Fill.Symbol = rec.Symbol
		if err := json.Unmarshal([]byte(triggers), &rec.TriggerPrices); err != nil {
			return nil, fmt.Errorf("decode trigger prices: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
