package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
)

type Repository interface {
	Create(ctx context.Context, payment *Payment) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*Payment, error)
	MarkCompleted(ctx context.Context, id int64, transactionID string, paymentDate time.Time) error
	MarkFailed(ctx context.Context, id int64) error
	MarkRefunded(ctx context.Context, id int64) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Create открывает оплату под shared-блокировкой строки заказа: статус
// проверяется в той же транзакции, что и вставка, поэтому конкурентная
// отмена (FOR UPDATE в переходе статуса) сериализуется с авторизацией.
func (r *postgresRepository) Create(ctx context.Context, payment *Payment) (created *Payment, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Int64("order_id", payment.OrderID).Msg("repository: failed to rollback create payment transaction")
			}
		}
	}()

	var status order.Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR SHARE`, payment.OrderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = order.ErrOrderNotFound
			return nil, err
		}
		return nil, fmt.Errorf("repository: failed to lock order %d for payment: %w", payment.OrderID, err)
	}

	if status != order.StatusPending && status != order.StatusProcessing {
		err = fmt.Errorf("repository: order %d is %s: %w", payment.OrderID, status, ErrOrderNotPayable)
		return nil, err
	}

	p := *payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, method, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, p.OrderID, p.Amount, p.Method, p.Status).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			err = ErrDuplicatePayment
			return nil, err
		}
		return nil, fmt.Errorf("repository: failed to insert payment for order %d: %w", p.OrderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit create payment transaction: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID int64) (*Payment, error) {
	query := `
		SELECT id, order_id, amount, method, status, coalesce(transaction_id, ''), payment_date, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var p Payment
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Method,
		&p.Status,
		&p.TransactionID,
		&p.PaymentDate,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment for order %d: %w", orderID, err)
	}
	return &p, nil
}

// MarkCompleted фиксирует успешное списание, перепроверяя статус заказа
// под той же блокировкой. Если заказ успели отменить, пока шёл запрос к
// шлюзу, возвращается ErrOrderNotPayable и оплата не завершается.
func (r *postgresRepository) MarkCompleted(ctx context.Context, id int64, transactionID string, paymentDate time.Time) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Int64("payment_id", id).Msg("repository: failed to rollback complete payment transaction")
			}
		}
	}()

	var status order.Status
	err = tx.QueryRow(ctx, `
		SELECT o.status
		FROM orders o
		JOIN payments p ON p.order_id = o.id
		WHERE p.id = $1
		FOR SHARE OF o
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrPaymentNotFound
			return err
		}
		return fmt.Errorf("repository: failed to lock order for payment %d: %w", id, err)
	}

	if status != order.StatusPending && status != order.StatusProcessing {
		err = fmt.Errorf("repository: payment %d: order is %s: %w", id, status, ErrOrderNotPayable)
		return err
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE payments SET status = $2, transaction_id = $3, payment_date = $4 WHERE id = $1 AND status = $5
	`, id, StatusCompleted, transactionID, paymentDate, StatusPending)
	if err != nil {
		return fmt.Errorf("repository: failed to mark payment %d completed: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		err = ErrPaymentNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit complete payment transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) MarkFailed(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, id, StatusFailed)
	if err != nil {
		return fmt.Errorf("repository: failed to mark payment %d failed: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *postgresRepository) MarkRefunded(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, id, StatusRefunded)
	if err != nil {
		return fmt.Errorf("repository: failed to mark payment %d refunded: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
