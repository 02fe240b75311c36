package payment_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
	"github.com/vasiliy-maslov/ecommerce-core/internal/payment"
)

// Интеграционные тесты требуют живой базы с применёнными миграциями.
// Без TEST_DATABASE_URL пакет прогоняет только юнит-тесты.
var db *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		var err error
		db, err = pgxpool.New(context.Background(), dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
			os.Exit(1)
		}
	}

	exitCode := m.Run()

	if db != nil {
		db.Close()
	}
	os.Exit(exitCode)
}

func setupPaymentRepo(t *testing.T) payment.Repository {
	t.Helper()
	if db == nil {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	truncate := func() {
		_, err := db.Exec(context.Background(),
			"TRUNCATE TABLE stock_reservations, order_items, payments, reviews, orders, products, categories, users RESTART IDENTITY CASCADE")
		if err != nil {
			t.Fatalf("failed to truncate tables: %v", err)
		}
	}

	truncate()
	t.Cleanup(truncate)

	return payment.NewRepository(db)
}

func seedOrderWithStatus(t *testing.T, status order.Status) int64 {
	t.Helper()
	ctx := context.Background()

	var userID int64
	err := db.QueryRow(ctx, `
		INSERT INTO users (username, email, first_name, last_name)
		VALUES ('buyer', 'buyer@example.com', 'Ivan', 'Petrov')
		RETURNING id
	`).Scan(&userID)
	require.NoError(t, err)

	var orderID int64
	err = db.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_amount, status, shipping_address, billing_address)
		VALUES ($1, 25.00, $2, 'Lenina 1', 'Lenina 1')
		RETURNING id
	`, userID, status).Scan(&orderID)
	require.NoError(t, err)
	return orderID
}

func newPendingPayment(orderID int64) *payment.Payment {
	return &payment.Payment{
		OrderID: orderID,
		Amount:  25.00,
		Method:  payment.MethodCreditCard,
		Status:  payment.StatusPending,
	}
}

func paymentStatus(t *testing.T, id int64) string {
	t.Helper()
	var status string
	err := db.QueryRow(context.Background(), "SELECT status FROM payments WHERE id = $1", id).Scan(&status)
	require.NoError(t, err)
	return status
}

func TestRepository_Create(t *testing.T) {
	t.Run("pending_order", func(t *testing.T) {
		repo := setupPaymentRepo(t)
		orderID := seedOrderWithStatus(t, order.StatusPending)
		ctx := context.Background()

		created, err := repo.Create(ctx, newPendingPayment(orderID))
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, payment.StatusPending, created.Status)
	})

	t.Run("cancelled_order_rejected", func(t *testing.T) {
		repo := setupPaymentRepo(t)
		orderID := seedOrderWithStatus(t, order.StatusCancelled)
		ctx := context.Background()

		_, err := repo.Create(ctx, newPendingPayment(orderID))
		assert.ErrorIs(t, err, payment.ErrOrderNotPayable)
	})

	t.Run("unknown_order", func(t *testing.T) {
		repo := setupPaymentRepo(t)
		ctx := context.Background()

		_, err := repo.Create(ctx, newPendingPayment(9999))
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("second_active_payment_rejected", func(t *testing.T) {
		repo := setupPaymentRepo(t)
		orderID := seedOrderWithStatus(t, order.StatusPending)
		ctx := context.Background()

		_, err := repo.Create(ctx, newPendingPayment(orderID))
		require.NoError(t, err)

		_, err = repo.Create(ctx, newPendingPayment(orderID))
		assert.ErrorIs(t, err, payment.ErrDuplicatePayment)
	})
}

func TestRepository_MarkCompleted(t *testing.T) {
	t.Run("completes_pending_payment", func(t *testing.T) {
		repo := setupPaymentRepo(t)
		orderID := seedOrderWithStatus(t, order.StatusPending)
		ctx := context.Background()

		created, err := repo.Create(ctx, newPendingPayment(orderID))
		require.NoError(t, err)

		err = repo.MarkCompleted(ctx, created.ID, "txn_123", time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, "completed", paymentStatus(t, created.ID))
	})

	t.Run("order_cancelled_mid_charge", func(t *testing.T) {
		repo := setupPaymentRepo(t)
		orderID := seedOrderWithStatus(t, order.StatusPending)
		ctx := context.Background()

		created, err := repo.Create(ctx, newPendingPayment(orderID))
		require.NoError(t, err)

		// Отмена проскочила, пока шёл запрос к шлюзу.
		_, err = db.Exec(ctx, "UPDATE orders SET status = 'cancelled' WHERE id = $1", orderID)
		require.NoError(t, err)

		err = repo.MarkCompleted(ctx, created.ID, "txn_race", time.Now().UTC())
		assert.ErrorIs(t, err, payment.ErrOrderNotPayable)
		assert.Equal(t, "pending", paymentStatus(t, created.ID))

		// После MarkFailed частичный уникальный индекс снова свободен:
		// новая оплата по платёжеспособному заказу проходит.
		require.NoError(t, repo.MarkFailed(ctx, created.ID))
		_, err = db.Exec(ctx, "UPDATE orders SET status = 'pending' WHERE id = $1", orderID)
		require.NoError(t, err)
		_, err = repo.Create(ctx, newPendingPayment(orderID))
		assert.NoError(t, err)
	})

	t.Run("unknown_payment", func(t *testing.T) {
		repo := setupPaymentRepo(t)
		ctx := context.Background()

		err := repo.MarkCompleted(ctx, 9999, "txn_123", time.Now().UTC())
		assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
	})
}
