package store

// The DDL below sticks to the type names both engines accept: TEXT ids,
// TEXT timestamps (fixed-width UTC, see timeLayout), TEXT JSON documents,
// DOUBLE PRECISION coordinates. encrypted_key is hex text for the same
// reason. Statements run one at a time so a failure names its table.
func schemaStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			settings TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			project_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email ON users (email)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			prefix TEXT NOT NULL,
			key_hash TEXT NOT NULL,
			encrypted_key TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			revoked_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS api_keys_prefix ON api_keys (prefix)`,
		`CREATE INDEX IF NOT EXISTS api_keys_project ON api_keys (project_id)`,

		`CREATE TABLE IF NOT EXISTS personal_access_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			secret_hash TEXT NOT NULL,
			scopes TEXT NOT NULL DEFAULT '[]',
			ip_allowlist TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			expires_at TEXT,
			last_used_at TEXT,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			normalized_email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			normalized_phone TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS customers_project_email
			ON customers (project_id, normalized_email) WHERE normalized_email <> ''`,
		`CREATE INDEX IF NOT EXISTS customers_project_phone ON customers (project_id, normalized_phone)`,
		`CREATE INDEX IF NOT EXISTS customers_project_created ON customers (project_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS addresses (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			line1 TEXT NOT NULL DEFAULT '',
			line2 TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			address_hash TEXT NOT NULL,
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS addresses_project_hash ON addresses (project_id, address_hash)`,
		`CREATE INDEX IF NOT EXISTS addresses_project_postal ON addresses (project_id, postal_code, country)`,
		`CREATE INDEX IF NOT EXISTS addresses_project_created ON addresses (project_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			address_id TEXT NOT NULL DEFAULT '',
			customer_snapshot TEXT NOT NULL DEFAULT '{}',
			address_snapshot TEXT NOT NULL DEFAULT '{}',
			total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			payment_method TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			risk_score INTEGER NOT NULL DEFAULT 0,
			risk_tags TEXT NOT NULL DEFAULT '[]',
			reason_codes TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS orders_project_order ON orders (project_id, order_id)`,
		`CREATE INDEX IF NOT EXISTS orders_project_customer ON orders (project_id, customer_id)`,
		`CREATE INDEX IF NOT EXISTS orders_project_address ON orders (project_id, address_id)`,

		`CREATE TABLE IF NOT EXISTS logs (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			type TEXT NOT NULL,
			endpoint TEXT NOT NULL DEFAULT '',
			reason_codes TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT '',
			meta TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS logs_project_created ON logs (project_id, created_at, id)`,
		`CREATE INDEX IF NOT EXISTS logs_created ON logs (created_at)`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}',
			payload_hash TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			entry_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS audit_logs_project_seq ON audit_logs (project_id, seq)`,

		`CREATE TABLE IF NOT EXISTS webhooks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			url TEXT NOT NULL,
			events TEXT NOT NULL DEFAULT '[]',
			secret TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			last_fired_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS webhooks_project ON webhooks (project_id)`,

		`CREATE TABLE IF NOT EXISTS webhook_outbox (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			webhook_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			next_attempt_at TEXT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			delivered_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS webhook_outbox_due ON webhook_outbox (status, next_attempt_at)`,

		`CREATE TABLE IF NOT EXISTS rules (
			project_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			expression TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (project_id, id)
		)`,

		`CREATE TABLE IF NOT EXISTS countries_bounding_boxes (
			country_code TEXT PRIMARY KEY,
			min_lat DOUBLE PRECISION NOT NULL,
			max_lat DOUBLE PRECISION NOT NULL,
			min_lng DOUBLE PRECISION NOT NULL,
			max_lng DOUBLE PRECISION NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS geonames_postal (
			country TEXT NOT NULL,
			postal_code TEXT NOT NULL,
			place_name TEXT NOT NULL,
			admin1 TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (country, postal_code, place_name)
		)`,

		`CREATE TABLE IF NOT EXISTS usage_counters (
			project_id TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			day TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (project_id, endpoint, day)
		)`,
	}
}
