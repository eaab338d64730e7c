package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	qty REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL,
	entry_signals TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS position_checks (
	id TEXT PRIMARY KEY,
	check_time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	score INTEGER NOT NULL,
	signals TEXT NOT NULL DEFAULT '[]',
	details TEXT NOT NULL DEFAULT '{}',
	pnl_pct REAL NOT NULL,
	alert_sent INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS poor_signals (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	entry_signals TEXT NOT NULL DEFAULT '[]',
	reversal_score INTEGER NOT NULL,
	reversal_signals TEXT NOT NULL DEFAULT '[]',
	pnl_pct REAL NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	recorded_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_symbol_time ON position_checks(symbol, check_time);
CREATE INDEX IF NOT EXISTS idx_poor_signals_symbol ON poor_signals(symbol);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
