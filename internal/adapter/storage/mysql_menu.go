package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campuscafe/ordering/internal/core/domain"
)

// MySQLMenuCatalog is the read-side of the menu for the ordering core.
type MySQLMenuCatalog struct {
	db *sql.DB
}

func NewMySQLMenuCatalog(db *sql.DB) *MySQLMenuCatalog {
	return &MySQLMenuCatalog{db: db}
}

func (m *MySQLMenuCatalog) FindByName(ctx context.Context, name string) (*domain.MenuEntry, error) {
	var entry domain.MenuEntry
	var price string
	err := m.db.QueryRowContext(ctx, `
		SELECT name, unit_price, prep_minutes, available
		FROM menu_items WHERE name = ?`, name,
	).Scan(&entry.Name, &price, &entry.PrepMinutes, &entry.Available)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query menu item: %w", err)
	}

	if entry.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse menu price: %w", err)
	}
	return &entry, nil
}

// SeedMenu inserts entries that are not present yet. Existing rows are left
// untouched so admin price edits survive restarts.
func (m *MySQLMenuCatalog) SeedMenu(ctx context.Context, entries []domain.MenuEntry) error {
	for _, e := range entries {
		_, err := m.db.ExecContext(ctx, `
			INSERT IGNORE INTO menu_items (name, unit_price, prep_minutes, available)
			VALUES (?, ?, ?, ?)`,
			e.Name, e.UnitPrice.String(), e.PrepMinutes, e.Available,
		)
		if err != nil {
			return fmt.Errorf("seed menu item %q: %w", e.Name, err)
		}
	}
	return nil
}

// DefaultMenu is the campus café's launch menu, used to seed an empty
// catalog.
func DefaultMenu() []domain.MenuEntry {
	return []domain.MenuEntry{
		{Name: "Plain Fries", UnitPrice: decimal.NewFromInt(130), PrepMinutes: 5, Available: true},
		{Name: "Zinger Burger", UnitPrice: decimal.NewFromInt(250), PrepMinutes: 7, Available: true},
		{Name: "Spaghetti", UnitPrice: decimal.NewFromInt(300), PrepMinutes: 10, Available: true},
		{Name: "Chicken Roll Paratha", UnitPrice: decimal.NewFromInt(400), PrepMinutes: 7, Available: true},
		{Name: "Club Sandwiches", UnitPrice: decimal.NewFromInt(500), PrepMinutes: 8, Available: true},
		{Name: "Biryani", UnitPrice: decimal.NewFromInt(300), PrepMinutes: 5, Available: true},
		{Name: "Bar B Q Platter", UnitPrice: decimal.NewFromInt(800), PrepMinutes: 20, Available: true},
	}
}
