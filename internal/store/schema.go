package store

const Schema = `
CREATE TABLE IF NOT EXISTS customers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	domain TEXT NOT NULL,
	api_key TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS status_mappings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	UNIQUE(customer_id, from_status)
);

CREATE TABLE IF NOT EXISTS cached_jobs (
	id TEXT PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	description TEXT NOT NULL DEFAULT '',
	equipment_description TEXT NOT NULL DEFAULT '',
	process_function_description TEXT NOT NULL DEFAULT '',
	progress_status TEXT NOT NULL DEFAULT '',
	vendor_id TEXT NOT NULL DEFAULT '',
	record_change_date TEXT NOT NULL DEFAULT '',
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cached_jobs_customer ON cached_jobs(customer_id);

-- Contact-email index derived from cached job payloads, rebuilt per job at
-- upsert time so supplier lookups never scan JSON.
CREATE TABLE IF NOT EXISTS job_contacts (
	job_id TEXT NOT NULL REFERENCES cached_jobs(id) ON DELETE CASCADE,
	customer_id INTEGER NOT NULL,
	email TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	vendor_id TEXT NOT NULL DEFAULT '',
	vendor_name TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (job_id, email)
);

CREATE INDEX IF NOT EXISTS idx_job_contacts_email ON job_contacts(email);

CREATE TABLE IF NOT EXISTS login_codes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL,
	code TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	used INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_login_codes_email ON login_codes(email, code);

CREATE TABLE IF NOT EXISTS email_verifications (
	email TEXT PRIMARY KEY,
	verified INTEGER NOT NULL,
	checked_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_control (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	force_sync INTEGER NOT NULL DEFAULT 0,
	in_progress INTEGER NOT NULL DEFAULT 0,
	last_sync DATETIME,
	sync_interval INTEGER NOT NULL DEFAULT 3600
);

INSERT OR IGNORE INTO sync_control (id, force_sync, in_progress, last_sync, sync_interval)
VALUES (1, 0, 0, NULL, 3600);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
`
