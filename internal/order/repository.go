package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	Create(ctx context.Context, order *Order) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByUserID(ctx context.Context, userID int64) ([]Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	TransitionStatus(ctx context.Context, orderID int64, target Status) (Status, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, orderInput *Order) (created *Order, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Int64("user_id", orderInput.UserID).Msg("repository: failed to rollback create order transaction")
			}
		}
	}()

	result := *orderInput
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_amount, status, shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`,
		orderInput.UserID,
		orderInput.TotalAmount,
		orderInput.Status,
		orderInput.ShippingAddress,
		orderInput.BillingAddress,
	).Scan(&result.ID, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	result.Items = make([]OrderItem, len(orderInput.Items))
	for i, item := range orderInput.Items {
		item.OrderID = result.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to insert order item for order %d: %w", result.ID, err)
		}
		result.Items[i] = item
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit create order transaction: %w", err)
	}
	return &result, nil
}

const orderColumns = `id, user_id, total_amount, status, shipping_address, billing_address, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalAmount,
		&o.Status,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %d: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %d: %w", id, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Subtotal)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %d: %w", id, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %d: %w", id, err)
	}

	o.Items = items
	return o, nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID int64) ([]Order, error) {
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]Order, error) {
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
}

// queryOrders выполняет выборку шапок заказов и догружает позиции
// одним запросом по всем найденным заказам.
func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	orderRows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer orderRows.Close()

	ordersMap := make(map[int64]*Order)
	var orderIDs []int64

	for orderRows.Next() {
		o, err := scanOrder(orderRows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]OrderItem, 0)
		ordersMap[o.ID] = o
		orderIDs = append(orderIDs, o.ID)
	}
	if err = orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OrderItem
		err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Subtotal)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	resultOrders := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		resultOrders = append(resultOrders, *ordersMap[id])
	}
	return resultOrders, nil
}

// TransitionStatus выполняет переход статуса под блокировкой строки заказа,
// поэтому два конкурентных перехода по одному заказу сериализуются.
// Возвращает статус, с которого выполнен переход.
func (r *postgresRepository) TransitionStatus(ctx context.Context, orderID int64, target Status) (from Status, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Int64("order_id", orderID).Msg("repository: failed to rollback transition transaction")
			}
		}
	}()

	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrOrderNotFound
			return "", err
		}
		return "", fmt.Errorf("repository: failed to lock order %d for transition: %w", orderID, err)
	}

	if !CanTransition(from, target) {
		err = fmt.Errorf("repository: order %d: transition %s -> %s: %w", orderID, from, target, ErrInvalidTransition)
		return "", err
	}

	_, err = tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		target, time.Now().UTC(), orderID)
	if err != nil {
		return "", fmt.Errorf("repository: failed to update status for order %d: %w", orderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("repository: failed to commit transition transaction: %w", err)
	}
	return from, nil
}
