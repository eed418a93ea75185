package deliveries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

const uniqueViolation = "23505"

// ConflictError reports a write refused because of the stored delivery:
// a duplicate for the same order, or a status guard that did not hold.
type ConflictError struct {
	Reason  string
	Current *domain.Delivery
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Is(target error) bool { return target == domain.ErrConflict }

type DeliveryRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const deliveryColumns = `id, order_id, driver_id, status, restaurant_id, customer_name, customer_phone,
	delivery_address, notes, version, assigned_at, picked_up_at, delivered_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }, d *domain.Delivery) error {
	var assignedAt, pickedUpAt, deliveredAt sql.NullTime
	err := row.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.Status, &d.RestaurantID, &d.CustomerName, &d.CustomerPhone,
		&d.DeliveryAddress, &d.Notes, &d.Version, &assignedAt, &pickedUpAt, &deliveredAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return err
	}
	d.AssignedAt = nullTime(assignedAt)
	d.PickedUpAt = nullTime(pickedUpAt)
	d.DeliveredAt = nullTime(deliveredAt)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// Create stores a PENDING delivery. While another delivery holds the same
// order it yields a *ConflictError carrying that one; cancelled deliveries do
// not count.
func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	d.ID = uuid.New().String()
	d.Status = domain.DeliveryStatusPending
	d.Version = 1
	d.CreatedAt = r.now()
	d.UpdatedAt = d.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries.deliveries (id, order_id, status, restaurant_id, customer_name, customer_phone,
			delivery_address, notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, d.ID, d.OrderID, d.Status, d.RestaurantID, d.CustomerName, d.CustomerPhone,
		d.DeliveryAddress, d.Notes, d.Version, d.CreatedAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		existing, getErr := r.holding(ctx, d.OrderID)
		if getErr != nil {
			return getErr
		}
		return &ConflictError{Reason: "delivery already exists for order " + d.OrderID, Current: existing}
	}
	return err
}

// holding returns the delivery that currently owns orderID, if any.
func (r *DeliveryRepository) holding(ctx context.Context, orderID string) (*domain.Delivery, error) {
	d := &domain.Delivery{}
	row := r.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries.deliveries
		WHERE order_id = $1 AND status <> $2`, orderID, domain.DeliveryStatusCancelled)
	if err := scanDelivery(row, d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	return r.getByID(ctx, r.db, id, false)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *DeliveryRepository) getByID(ctx context.Context, q queryRower, id string, lock bool) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries.deliveries WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	d := &domain.Delivery{}
	if err := scanDelivery(q.QueryRowContext(ctx, query, id), d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func (r *DeliveryRepository) List(ctx context.Context) ([]domain.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries.deliveries ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	deliveries := []domain.Delivery{}
	for rows.Next() {
		var d domain.Delivery
		if err := scanDelivery(rows, &d); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deliveries, nil
}

// Assign hands a PENDING delivery to driverID.
func (r *DeliveryRepository) Assign(ctx context.Context, id, driverID string) (*domain.Delivery, error) {
	return r.mutate(ctx, id, func(d *domain.Delivery) string {
		if d.Status != domain.DeliveryStatusPending {
			return fmt.Sprintf("delivery is %s, not awaiting a driver", d.Status)
		}
		now := r.now()
		d.Status = domain.DeliveryStatusAssigned
		d.DriverID = driverID
		d.AssignedAt = &now
		return ""
	})
}

// UpdateStatus applies a guarded delivery transition, stamping picked_up_at
// or delivered_at with the server clock unless the caller supplied one.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id string, update domain.DeliveryStatusUpdate) (*domain.Delivery, error) {
	return r.mutate(ctx, id, func(d *domain.Delivery) string {
		switch {
		case d.Status != update.ExpectedStatus:
			return fmt.Sprintf("delivery is %s, expected %s", d.Status, update.ExpectedStatus)
		case !domain.CanTransitionDelivery(d.Status, update.Status):
			return fmt.Sprintf("cannot move delivery from %s to %s", d.Status, update.Status)
		}
		now := r.now()
		d.Status = update.Status
		switch update.Status {
		case domain.DeliveryStatusPickedUp:
			d.PickedUpAt = stamp(update.PickedUpAt, now)
		case domain.DeliveryStatusDelivered:
			d.DeliveredAt = stamp(update.DeliveredAt, now)
		}
		return ""
	})
}

func stamp(given *time.Time, now time.Time) *time.Time {
	if given != nil {
		t := given.UTC()
		return &t
	}
	return &now
}

// mutate locks the row, lets apply edit it in memory and writes it back with
// a bumped version. apply returns a non-empty reason to refuse the change.
func (r *DeliveryRepository) mutate(ctx context.Context, id string, apply func(*domain.Delivery) string) (*domain.Delivery, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := r.getByID(ctx, tx, id, true)
	if err != nil || d == nil {
		return nil, err
	}

	current := *d
	if reason := apply(d); reason != "" {
		return nil, &ConflictError{Reason: reason, Current: &current}
	}

	d.Version++
	d.UpdatedAt = r.now()
	_, err = tx.ExecContext(ctx, `
		UPDATE deliveries.deliveries
		SET driver_id = $1, status = $2, assigned_at = $3, picked_up_at = $4, delivered_at = $5,
			version = $6, updated_at = $7
		WHERE id = $8
	`, d.DriverID, d.Status, d.AssignedAt, d.PickedUpAt, d.DeliveredAt, d.Version, d.UpdatedAt, d.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}
