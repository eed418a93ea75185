package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

// ConflictError is returned when a guarded update finds the order in a state
// other than the one the caller expected.
type ConflictError struct {
	Reason  string
	Current *domain.Order
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Is(target error) bool { return target == domain.ErrConflict }

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type OrderRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const orderColumns = `id, restaurant_id, customer_id, customer_name, customer_phone, delivery_address,
	special_instructions, payment_method, total_amount, status, is_paid, payment_id, version,
	created_at, updated_at, delivered_at`

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order) error {
	var deliveredAt sql.NullTime
	err := row.Scan(&o.ID, &o.RestaurantID, &o.CustomerID, &o.CustomerName, &o.CustomerPhone, &o.DeliveryAddress,
		&o.SpecialInstructions, &o.PaymentMethod, &o.TotalAmount, &o.Status, &o.IsPaid, &o.PaymentID, &o.Version,
		&o.CreatedAt, &o.UpdatedAt, &deliveredAt)
	if err != nil {
		return err
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time.UTC()
		o.DeliveredAt = &t
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return nil
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	order.Version = 1
	order.UpdatedAt = order.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders.orders (id, restaurant_id, customer_id, customer_name, customer_phone, delivery_address,
			special_instructions, payment_method, total_amount, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, order.ID, order.RestaurantID, order.CustomerID, order.CustomerName, order.CustomerPhone, order.DeliveryAddress,
		order.SpecialInstructions, order.PaymentMethod, order.TotalAmount, order.Status, order.Version, order.CreatedAt)
	if err != nil {
		return err
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders.order_items (id, order_id, position, item_id, name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New().String(), order.ID, i, item.ItemID, item.Name, item.UnitPrice, item.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *OrderRepository) getByID(ctx context.Context, q querier, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders.orders WHERE id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT item_id, name, unit_price, quantity
		FROM orders.order_items
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ItemID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateStatus applies a guarded transition and returns the updated order with
// the status it moved from. An unknown order yields a nil order and nil error;
// a stored status or version that does not match, or a move that is not an
// edge of the lifecycle graph, yields a *ConflictError.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Order, domain.OrderStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	var version int64
	err = tx.QueryRowContext(ctx, `
		SELECT status, version FROM orders.orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&current, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if reason := guard(current, version, update); reason != "" {
		stored, err := r.getByID(ctx, tx, id)
		if err != nil {
			return nil, "", err
		}
		return nil, current, &ConflictError{Reason: reason, Current: stored}
	}

	now := r.now()
	_, err = tx.ExecContext(ctx, `
		UPDATE orders.orders
		SET status = $1,
			version = version + 1,
			updated_at = $2,
			delivered_at = CASE WHEN $1 = 'DELIVERED' THEN $2 ELSE delivered_at END
		WHERE id = $3
	`, update.Status, now, id)
	if err != nil {
		return nil, "", err
	}

	order, err := r.getByID(ctx, tx, id)
	if err != nil {
		return nil, "", err
	}

	if err := tx.Commit(); err != nil {
		return nil, "", err
	}
	return order, current, nil
}

func guard(current domain.OrderStatus, version int64, update domain.StatusUpdate) string {
	switch {
	case current != update.ExpectedStatus:
		return fmt.Sprintf("order is %s, expected %s", current, update.ExpectedStatus)
	case update.ExpectedVersion != 0 && version != update.ExpectedVersion:
		return fmt.Sprintf("order is at version %d, expected %d", version, update.ExpectedVersion)
	case !domain.CanTransition(current, update.Status):
		return fmt.Sprintf("cannot move order from %s to %s", current, update.Status)
	}
	return ""
}

func (r *OrderRepository) RecordPayment(ctx context.Context, id string, record domain.PaymentRecord) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders.orders SET is_paid = $1, payment_id = $2, updated_at = $3
		WHERE id = $4
	`, record.Paid, record.PaymentID, r.now(), id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var where []string
	var args []any
	add := func(column, value string) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.RestaurantID != "" {
		add("restaurant_id", filter.RestaurantID)
	}
	if filter.CustomerID != "" {
		add("customer_id", filter.CustomerID)
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	query := `SELECT ` + orderColumns + ` FROM orders.orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, item_id, name, unit_price, quantity
		FROM orders.order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ItemID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
