package journal

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	position_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	instrument TEXT NOT NULL,
	time DATETIME NOT NULL,
	kind TEXT NOT NULL,
	price REAL NOT NULL,
	state TEXT NOT NULL,
	target INTEGER NOT NULL,
	fraction REAL NOT NULL,
	stop REAL NOT NULL,
	remaining REAL NOT NULL,
	confidence REAL NOT NULL,
	stale INTEGER NOT NULL,
	reason TEXT NOT NULL,
	UNIQUE(position_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	direction INTEGER NOT NULL,
	setup TEXT NOT NULL,
	confidence REAL NOT NULL,
	stale INTEGER NOT NULL,
	entry REAL NOT NULL,
	stop_loss REAL NOT NULL,
	final_stop REAL NOT NULL,
	created_at DATETIME NOT NULL,
	opened_at DATETIME NOT NULL,
	closed_at DATETIME NOT NULL,
	state TEXT NOT NULL,
	close_reason TEXT NOT NULL,
	filled INTEGER NOT NULL,
	targets_hit INTEGER NOT NULL,
	r REAL NOT NULL,
	open_at_end INTEGER NOT NULL,
	exits TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_closed ON trades(closed_at);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	dataset TEXT NOT NULL,
	trades INTEGER NOT NULL,
	total_r REAL NOT NULL,
	report TEXT NOT NULL
);
`
