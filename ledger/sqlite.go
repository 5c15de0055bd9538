package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the ledger in a SQLite table. Busy or locked
// database errors surface as ErrContended.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func contended(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", ErrContended, err)
	}
	return err
}

const insertEntry = `
	INSERT INTO ledger
	(timestamp, order_type, price, stop_loss, take_profit, lot_size, order_id, balance,
	 status, close_price, close_time, profit_loss, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, x execer, e Entry) error {
	closeTime := ""
	if !e.CloseTime.IsZero() {
		closeTime = e.CloseTime.UTC().Format(timeLayout)
	}
	_, err := x.ExecContext(ctx, insertEntry,
		e.Timestamp.UTC().Format(timeLayout), e.OrderType.String(), e.Price, e.StopLoss,
		e.TakeProfit, e.LotSize, e.OrderID, e.Balance, string(e.Status),
		e.ClosePrice, closeTime, e.ProfitLoss, e.CloseReason,
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, order_type, price, stop_loss, take_profit, lot_size, order_id, balance,
		       status, close_price, close_time, profit_loss, close_reason
		FROM ledger
		ORDER BY seq ASC`)
	if err != nil {
		return nil, contended(err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			ts, side, ct, stat string
		)
		if err := rows.Scan(
			&ts, &side, &e.Price, &e.StopLoss, &e.TakeProfit, &e.LotSize, &e.OrderID, &e.Balance,
			&stat, &e.ClosePrice, &ct, &e.ProfitLoss, &e.CloseReason,
		); err != nil {
			return nil, contended(err)
		}
		if err := e.decode(ts, side, stat, ct); err != nil {
			return nil, fmt.Errorf("ledger row %s: %w", e.OrderID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, contended(err)
	}
	return out, nil
}

func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	return contended(insert(ctx, s.db, e))
}

// Rewrite replaces every row in one transaction.
func (s *SQLiteStore) Rewrite(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contended(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger`); err != nil {
		return contended(err)
	}
	for _, e := range entries {
		if err := insert(ctx, tx, e); err != nil {
			return contended(err)
		}
	}
	return contended(tx.Commit())
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
