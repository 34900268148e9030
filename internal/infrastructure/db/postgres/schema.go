package postgres

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'employee', 'customer')),
	created_by_id TEXT REFERENCES users (id),
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS users_created_by_idx ON users (created_by_id);

CREATE TABLE IF NOT EXISTS customer_assignments (
	customer_id TEXT PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
	employee_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	assigned_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS customer_assignments_employee_idx ON customer_assignments (employee_id);

CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	sku           TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	price         NUMERIC NOT NULL CHECK (price >= 0),
	stock         INTEGER NOT NULL CHECK (stock >= 0),
	created_by_id TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	customer_id    TEXT NOT NULL REFERENCES users (id),
	created_by_id  TEXT NOT NULL REFERENCES users (id),
	assigned_to_id TEXT REFERENCES users (id),
	status         TEXT NOT NULL CHECK (status IN ('draft', 'pending', 'completed', 'cancelled')),
	total          NUMERIC NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders (customer_id);
CREATE INDEX IF NOT EXISTS orders_created_by_idx ON orders (created_by_id);
CREATE INDEX IF NOT EXISTS orders_assigned_to_idx ON orders (assigned_to_id);
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC, id);

CREATE TABLE IF NOT EXISTS order_items (
	order_id   TEXT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	line       INTEGER NOT NULL,
	product_id TEXT NOT NULL REFERENCES products (id),
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	unit_price NUMERIC NOT NULL,
	PRIMARY KEY (order_id, line)
);
`
