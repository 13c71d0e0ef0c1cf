// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_date DATETIME NOT NULL,
	ticker TEXT NOT NULL,
	direction INTEGER NOT NULL,
	entered INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	entry_time DATETIME,
	exit_price REAL NOT NULL,
	exit_time DATETIME,
	exit_reason TEXT NOT NULL,
	shares INTEGER NOT NULL,
	gross_pnl REAL NOT NULL,
	commission REAL NOT NULL,
	net_pnl REAL NOT NULL,
	capped INTEGER NOT NULL,
	cap_ratio REAL NOT NULL,
	PRIMARY KEY (trade_date, ticker)
);

CREATE TABLE IF NOT EXISTS equity (
	trade_date DATETIME PRIMARY KEY,
	equity REAL NOT NULL,
	day_pnl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS years (
	year INTEGER PRIMARY KEY,
	start_equity REAL NOT NULL,
	end_equity REAL NOT NULL,
	pnl REAL NOT NULL,
	return_pct REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date);
`
