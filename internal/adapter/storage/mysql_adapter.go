package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuscafe/ordering/internal/core/domain"
	"github.com/campuscafe/ordering/internal/port"
)

// openStatuses is the WHERE clause fragment for the backlog scan. Completed
// and cancelled are both terminal.
const openStatuses = `status NOT IN ('completed', 'cancelled')`

const fulfilledStatuses = `status IN ('completed', 'delivered')`

// MySQLAdapter implements port.OrderRepository over plain SQL. Status
// transitions use a conditional UPDATE so a lost race surfaces as
// port.ErrConflict instead of overwriting a newer state.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) InsertOrder(ctx context.Context, order domain.Order) error {
	customer, err := json.Marshal(order.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer details: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_price, status, estimated_time,
			payment_method, payment_status, payment_intent_id, customer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.TotalPrice.String(), order.Status, order.EstimatedTime,
		order.PaymentMethod, order.PaymentStatus, order.PaymentIntentID, customer,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for pos, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, pos, item.Name, item.Quantity, item.UnitPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	orders, err := m.queryOrders(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, port.ErrNotFound
	}
	return &orders[0], nil
}

func (m *MySQLAdapter) FindOrders(ctx context.Context) ([]domain.Order, error) {
	return m.queryOrders(ctx, `ORDER BY created_at DESC`)
}

func (m *MySQLAdapter) FindOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return m.queryOrders(ctx, `WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (m *MySQLAdapter) FindOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return m.queryOrders(ctx, `WHERE `+openStatuses)
}

func (m *MySQLAdapter) FindOrderByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	if intentID == "" {
		return nil, port.ErrNotFound
	}
	orders, err := m.queryOrders(ctx, `WHERE payment_intent_id = ?`, intentID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, port.ErrNotFound
	}
	return &orders[0], nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, expected, next domain.OrderStatus) (*domain.Order, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		next, id, expected,
	)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check order existence: %w", err)
		}
		if exists == 0 {
			return nil, port.ErrNotFound
		}
		return nil, port.ErrConflict
	}

	return m.FindOrder(ctx, id)
}

func (m *MySQLAdapter) UpdatePaymentStatus(ctx context.Context, id string, ps domain.PaymentStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = ?, updated_at = NOW() WHERE id = ?`,
		ps, id,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteOrder(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, id); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrNotFound
	}

	return tx.Commit()
}

func (m *MySQLAdapter) RevenueBetween(ctx context.Context, from, to time.Time) (*domain.RevenueReport, error) {
	report := &domain.RevenueReport{
		From:              from,
		To:                to,
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		ByPaymentMethod:   make(map[domain.PaymentMethod]domain.PaymentMethodStat),
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM orders
		WHERE `+fulfilledStatuses+` AND created_at BETWEEN ? AND ?
		GROUP BY payment_method`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query revenue by method: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var method string
		var count int
		var total string
		if err := rows.Scan(&method, &count, &total); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		sum, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse revenue sum: %w", err)
		}
		report.ByPaymentMethod[domain.PaymentMethod(method)] = domain.PaymentMethodStat{Count: count, Total: sum}
		report.TotalOrders += count
		report.TotalRevenue = report.TotalRevenue.Add(sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue rows: %w", err)
	}

	if report.TotalOrders > 0 {
		report.AverageOrderValue = report.TotalRevenue.DivRound(decimal.NewFromInt(int64(report.TotalOrders)), 2)
	}

	daily, err := m.db.QueryContext(ctx, `
		SELECT DATE_FORMAT(created_at, '%Y-%m-%d') AS day, COALESCE(SUM(total_price), 0), COUNT(*)
		FROM orders
		WHERE `+fulfilledStatuses+` AND created_at BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily revenue: %w", err)
	}
	defer daily.Close()

	for daily.Next() {
		var day, revenue string
		var count int
		if err := daily.Scan(&day, &revenue, &count); err != nil {
			return nil, fmt.Errorf("scan daily revenue: %w", err)
		}
		sum, err := decimal.NewFromString(revenue)
		if err != nil {
			return nil, fmt.Errorf("parse daily revenue: %w", err)
		}
		report.Daily = append(report.Daily, domain.DailyRevenue{Day: day, Revenue: sum, OrderCount: count})
	}
	if err := daily.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily revenue: %w", err)
	}

	return report, nil
}

func (m *MySQLAdapter) queryOrders(ctx context.Context, clause string, args ...any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, total_price, status, estimated_time,
			payment_method, payment_status, payment_intent_id, customer, created_at, updated_at
		FROM orders `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var total string
		var customer []byte
		err := rows.Scan(&o.ID, &o.UserID, &total, &o.Status, &o.EstimatedTime,
			&o.PaymentMethod, &o.PaymentStatus, &o.PaymentIntentID, &customer,
			&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse total price: %w", err)
		}
		if len(customer) > 0 {
			if err := json.Unmarshal(customer, &o.Customer); err != nil {
				return nil, fmt.Errorf("unmarshal customer details: %w", err)
			}
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := m.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (m *MySQLAdapter) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	for i := range orders {
		index[orders[i].ID] = i
		placeholders[i] = "?"
		args[i] = orders[i].ID
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT order_id, name, quantity, unit_price
		FROM order_items
		WHERE order_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY order_id, position`, args...)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID, price string
		var item domain.OrderLineItem
		if err := rows.Scan(&orderID, &item.Name, &item.Quantity, &price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("parse unit price: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}
