package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createTicketsTable,
		createTicketsIndexes,
		createOverridesTable,
		createOverridesIndexes,
		createDiscountRulesTable,
		createGenerationStateTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, Classify(err))
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id BIGSERIAL PRIMARY KEY,
    stadium_id BIGINT NOT NULL,
    kind VARCHAR(16) NOT NULL CHECK (kind IN ('regular', 'special')),
    name VARCHAR(255) NOT NULL,
    base_price NUMERIC(12, 2) NOT NULL CHECK (base_price >= 0),
    base_quantity INTEGER NOT NULL CHECK (base_quantity >= 0),
    display_order INTEGER NOT NULL DEFAULT 0,
    weekdays INTEGER[],
    ticket_date DATE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
    CONSTRAINT tickets_kind_fields CHECK (
        (kind = 'regular' AND weekdays IS NOT NULL AND ticket_date IS NULL) OR
        (kind = 'special' AND ticket_date IS NOT NULL)
    )
);`

const createTicketsIndexes = `
CREATE INDEX IF NOT EXISTS idx_tickets_stadium_kind ON tickets(stadium_id, kind);
CREATE INDEX IF NOT EXISTS idx_tickets_special_date ON tickets(stadium_id, ticket_date) WHERE kind = 'special';`

// Уникальный ключ (stadium_id, ticket_id, ticket_kind, sale_date) гарантирует одну строку учета на дату,
// CHECK (quantity >= 0): защита от овербукинга на уровне БД.
const createOverridesTable = `
CREATE TABLE IF NOT EXISTS ticket_date_overrides (
    id BIGSERIAL PRIMARY KEY,
    stadium_id BIGINT NOT NULL,
    ticket_id BIGINT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    ticket_kind VARCHAR(16) NOT NULL CHECK (ticket_kind IN ('regular', 'special')),
    sale_date DATE NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity >= 0),
    initial_quantity INTEGER NOT NULL CHECK (initial_quantity >= 0),
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    name_override VARCHAR(255),
    price_override NUMERIC(12, 2) CHECK (price_override >= 0),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
    CONSTRAINT ticket_date_overrides_key UNIQUE (stadium_id, ticket_id, ticket_kind, sale_date)
);`

const createOverridesIndexes = `
CREATE INDEX IF NOT EXISTS idx_overrides_stadium_date ON ticket_date_overrides(stadium_id, sale_date);
CREATE INDEX IF NOT EXISTS idx_overrides_sale_date ON ticket_date_overrides(sale_date);`

const createDiscountRulesTable = `
CREATE TABLE IF NOT EXISTS discount_rules (
    id BIGSERIAL PRIMARY KEY,
    stadium_id BIGINT NOT NULL,
    ticket_id BIGINT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    ticket_kind VARCHAR(16) NOT NULL CHECK (ticket_kind IN ('regular', 'special')),
    day_of_month INTEGER NOT NULL CHECK (day_of_month BETWEEN 1 AND 31),
    month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
    discount_price NUMERIC(12, 2) NOT NULL CHECK (discount_price >= 0),
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_discount_rules_match ON discount_rules(stadium_id, month, day_of_month);`

const createGenerationStateTable = `
CREATE TABLE IF NOT EXISTS generation_state (
    stadium_id BIGINT PRIMARY KEY,
    month_key VARCHAR(7) NOT NULL DEFAULT '',
    generated_at TIMESTAMP
);`
