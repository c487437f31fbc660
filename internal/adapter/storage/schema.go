package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		total_price DECIMAL(10,2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		estimated_time INT NOT NULL,
		payment_method VARCHAR(10) NOT NULL,
		payment_status VARCHAR(10) NOT NULL,
		payment_intent_id VARCHAR(64) NOT NULL DEFAULT '',
		customer JSON,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_orders_user (user_id),
		INDEX idx_orders_status (status),
		INDEX idx_orders_intent (payment_intent_id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id VARCHAR(36) NOT NULL,
		position INT NOT NULL,
		name VARCHAR(100) NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL,
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		name VARCHAR(100) PRIMARY KEY,
		unit_price DECIMAL(10,2) NOT NULL,
		prep_minutes DOUBLE NOT NULL,
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// EnsureSchema creates the tables on first boot. Statements are idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
