// ledger/schema.go
package ledger

const Schema = `
CREATE TABLE IF NOT EXISTS ledger (
	seq INTEGER PRIMARY KEY,
	timestamp TEXT NOT NULL,
	order_type TEXT NOT NULL,
	price REAL NOT NULL,
	stop_loss REAL NOT NULL DEFAULT 0,
	take_profit REAL NOT NULL DEFAULT 0,
	lot_size REAL NOT NULL,
	order_id TEXT NOT NULL,
	balance REAL NOT NULL,
	status TEXT NOT NULL,
	close_price REAL NOT NULL DEFAULT 0,
	close_time TEXT NOT NULL DEFAULT '',
	profit_loss REAL NOT NULL DEFAULT 0,
	close_reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ledger_order ON ledger(order_id, status);
`
