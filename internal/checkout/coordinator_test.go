package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-core/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-core/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
	"github.com/vasiliy-maslov/ecommerce-core/internal/payment"
)

// fakeCatalog - catalog.Service с учётом резервов в памяти.
type fakeCatalog struct {
	products map[int64]*catalog.Product

	reserved  []uuid.UUID
	released  []uuid.UUID
	committed map[uuid.UUID]int64
	restocked []int64

	reserveErrFor map[int64]error
	commitErr     error
}

func newFakeCatalog(products ...*catalog.Product) *fakeCatalog {
	m := make(map[int64]*catalog.Product)
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeCatalog{
		products:      m,
		committed:     make(map[uuid.UUID]int64),
		reserveErrFor: make(map[int64]error),
	}
}

func (f *fakeCatalog) CreateCategory(ctx context.Context, c *catalog.Category) (*catalog.Category, error) {
	panic("not used")
}

func (f *fakeCatalog) GetCategoryByID(ctx context.Context, id int64) (*catalog.Category, error) {
	panic("not used")
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	panic("not used")
}

func (f *fakeCatalog) GetProductByID(ctx context.Context, id int64) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) GetProductsByCategoryID(ctx context.Context, categoryID int64) ([]catalog.Product, error) {
	panic("not used")
}

func (f *fakeCatalog) ListProducts(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	panic("not used")
}

func (f *fakeCatalog) UpdateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	panic("not used")
}

func (f *fakeCatalog) Reserve(ctx context.Context, productID int64, quantity int) (*catalog.Reservation, error) {
	if err, ok := f.reserveErrFor[productID]; ok {
		return nil, err
	}
	p, ok := f.products[productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	if p.StockQuantity < quantity {
		return nil, catalog.ErrInsufficientStock
	}
	p.StockQuantity -= quantity

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	f.reserved = append(f.reserved, id)
	return &catalog.Reservation{ID: id, ProductID: productID, Quantity: quantity, State: catalog.ReservationHeld}, nil
}

func (f *fakeCatalog) Release(ctx context.Context, reservationID uuid.UUID) error {
	f.released = append(f.released, reservationID)
	return nil
}

func (f *fakeCatalog) Commit(ctx context.Context, reservationID uuid.UUID, orderID int64) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed[reservationID] = orderID
	return nil
}

func (f *fakeCatalog) ReleaseOrderStock(ctx context.Context, orderID int64) error {
	f.restocked = append(f.restocked, orderID)
	return nil
}

// fakeOrders - order.Service с настраиваемыми ответами.
type fakeOrders struct {
	createErr     error
	created       []order.NewOrder
	transitioned  []order.Status
	transitionErr error
}

func (f *fakeOrders) Create(ctx context.Context, input order.NewOrder) (*order.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)

	items := make([]order.OrderItem, len(input.Items))
	total := 0.0
	for i, item := range input.Items {
		subtotal := order.RoundAmount(float64(item.Quantity) * item.UnitPrice)
		items[i] = order.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice, Subtotal: subtotal}
		total += subtotal
	}
	return &order.Order{
		ID:          100,
		UserID:      input.UserID,
		TotalAmount: order.RoundAmount(total),
		Status:      order.StatusPending,
		Items:       items,
	}, nil
}

func (f *fakeOrders) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	panic("not used")
}

func (f *fakeOrders) GetByUserID(ctx context.Context, userID int64) ([]order.Order, error) {
	panic("not used")
}

func (f *fakeOrders) List(ctx context.Context, limit, offset int) ([]order.Order, error) {
	panic("not used")
}

func (f *fakeOrders) Transition(ctx context.Context, orderID int64, target order.Status) error {
	if f.transitionErr != nil {
		return f.transitionErr
	}
	f.transitioned = append(f.transitioned, target)
	return nil
}

func (f *fakeOrders) RecomputeTotal(ctx context.Context, orderID int64) error {
	panic("not used")
}

// fakePayments - payment.Service с настраиваемыми ответами.
type fakePayments struct {
	authorizeFunc func(ctx context.Context, orderID int64, method payment.Method) (*payment.Payment, error)
	existing      *payment.Payment
	refunded      []int64
	refundErr     error
}

func (f *fakePayments) Authorize(ctx context.Context, orderID int64, method payment.Method) (*payment.Payment, error) {
	if f.authorizeFunc != nil {
		return f.authorizeFunc(ctx, orderID, method)
	}
	panic("not used")
}

func (f *fakePayments) Refund(ctx context.Context, orderID int64) (*payment.Payment, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refunded = append(f.refunded, orderID)
	return &payment.Payment{OrderID: orderID, Status: payment.StatusRefunded}, nil
}

func (f *fakePayments) GetByOrderID(ctx context.Context, orderID int64) (*payment.Payment, error) {
	if f.existing == nil {
		return nil, payment.ErrPaymentNotFound
	}
	return f.existing, nil
}

func twoProducts() (*catalog.Product, *catalog.Product) {
	return &catalog.Product{ID: 1, Name: "mug", Price: 10.00, StockQuantity: 5},
		&catalog.Product{ID: 2, Name: "plate", Price: 5.00, StockQuantity: 3}
}

var validRequest = checkout.PlaceOrderRequest{
	UserID:          7,
	ShippingAddress: "Lenina 1, Moscow",
	BillingAddress:  "Lenina 1, Moscow",
	Items: []checkout.PlaceOrderItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	},
}

func TestCoordinator_PlaceOrder(t *testing.T) {
	t.Run("success_commits_reservations", func(t *testing.T) {
		p1, p2 := twoProducts()
		cat := newFakeCatalog(p1, p2)
		orders := &fakeOrders{}
		c := checkout.NewCoordinator(cat, orders, &fakePayments{}, time.Second)

		result, err := c.PlaceOrder(context.Background(), validRequest)
		require.NoError(t, err)
		require.NotNil(t, result.Order)
		assert.Nil(t, result.Payment)

		// Цены заказа - снимки из каталога.
		require.Len(t, orders.created, 1)
		assert.Equal(t, 10.00, orders.created[0].Items[0].UnitPrice)
		assert.Equal(t, 5.00, orders.created[0].Items[1].UnitPrice)
		assert.Equal(t, 25.00, result.Order.TotalAmount)

		// Все резервы закоммичены за заказом, ничего не освобождено.
		assert.Len(t, cat.committed, 2)
		for _, orderID := range cat.committed {
			assert.Equal(t, result.Order.ID, orderID)
		}
		assert.Empty(t, cat.released)
		assert.Equal(t, 3, p1.StockQuantity)
		assert.Equal(t, 2, p2.StockQuantity)
	})

	t.Run("insufficient_stock_releases_acquired", func(t *testing.T) {
		p1, p2 := twoProducts()
		p2.StockQuantity = 0
		cat := newFakeCatalog(p1, p2)
		orders := &fakeOrders{}
		c := checkout.NewCoordinator(cat, orders, &fakePayments{}, time.Second)

		result, err := c.PlaceOrder(context.Background(), validRequest)
		assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
		assert.Nil(t, result)

		// Первый резерв взят и отпущен, заказ не создан.
		require.Len(t, cat.reserved, 1)
		assert.Equal(t, cat.reserved, cat.released)
		assert.Empty(t, orders.created)
		assert.Empty(t, cat.committed)
	})

	t.Run("unknown_product_releases_acquired", func(t *testing.T) {
		p1, _ := twoProducts()
		cat := newFakeCatalog(p1)
		orders := &fakeOrders{}
		c := checkout.NewCoordinator(cat, orders, &fakePayments{}, time.Second)

		_, err := c.PlaceOrder(context.Background(), validRequest)
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
		assert.Equal(t, cat.reserved, cat.released)
		assert.Empty(t, orders.created)
	})

	t.Run("order_create_failure_releases_all", func(t *testing.T) {
		p1, p2 := twoProducts()
		cat := newFakeCatalog(p1, p2)
		orders := &fakeOrders{createErr: order.ErrUserNotFound}
		c := checkout.NewCoordinator(cat, orders, &fakePayments{}, time.Second)

		_, err := c.PlaceOrder(context.Background(), validRequest)
		assert.ErrorIs(t, err, order.ErrUserNotFound)
		require.Len(t, cat.reserved, 2)
		assert.ElementsMatch(t, cat.reserved, cat.released)
		assert.Empty(t, cat.committed)
	})

	t.Run("empty_items_rejected", func(t *testing.T) {
		cat := newFakeCatalog()
		c := checkout.NewCoordinator(cat, &fakeOrders{}, &fakePayments{}, time.Second)

		_, err := c.PlaceOrder(context.Background(), checkout.PlaceOrderRequest{UserID: 7})
		assert.ErrorIs(t, err, order.ErrValidation)
		assert.Empty(t, cat.reserved)
	})

	t.Run("immediate_payment_success", func(t *testing.T) {
		p1, p2 := twoProducts()
		cat := newFakeCatalog(p1, p2)
		payments := &fakePayments{
			authorizeFunc: func(ctx context.Context, orderID int64, method payment.Method) (*payment.Payment, error) {
				return &payment.Payment{OrderID: orderID, Amount: 25.00, Method: method, Status: payment.StatusCompleted}, nil
			},
		}
		c := checkout.NewCoordinator(cat, &fakeOrders{}, payments, time.Second)

		req := validRequest
		req.PaymentMethod = payment.MethodCreditCard

		result, err := c.PlaceOrder(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, result.Payment)
		assert.Equal(t, payment.StatusCompleted, result.Payment.Status)
		assert.Equal(t, 25.00, result.Payment.Amount)
	})

	t.Run("declined_payment_keeps_order", func(t *testing.T) {
		p1, p2 := twoProducts()
		cat := newFakeCatalog(p1, p2)
		payments := &fakePayments{
			authorizeFunc: func(ctx context.Context, orderID int64, method payment.Method) (*payment.Payment, error) {
				return &payment.Payment{OrderID: orderID, Status: payment.StatusFailed}, payment.ErrPaymentDeclined
			},
		}
		c := checkout.NewCoordinator(cat, &fakeOrders{}, payments, time.Second)

		req := validRequest
		req.PaymentMethod = payment.MethodCreditCard

		result, err := c.PlaceOrder(context.Background(), req)
		assert.ErrorIs(t, err, payment.ErrPaymentDeclined)

		// Заказ создан и остаётся валидным, резервы закоммичены.
		require.NotNil(t, result)
		require.NotNil(t, result.Order)
		assert.Len(t, cat.committed, 2)
		assert.Empty(t, cat.released)
	})
}

func TestCoordinator_CancelOrder(t *testing.T) {
	t.Run("releases_stock_without_payment", func(t *testing.T) {
		cat := newFakeCatalog()
		orders := &fakeOrders{}
		c := checkout.NewCoordinator(cat, orders, &fakePayments{}, time.Second)

		err := c.CancelOrder(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, []order.Status{order.StatusCancelled}, orders.transitioned)
		assert.Equal(t, []int64{100}, cat.restocked)
	})

	t.Run("refunds_completed_payment", func(t *testing.T) {
		cat := newFakeCatalog()
		payments := &fakePayments{
			existing: &payment.Payment{ID: 10, OrderID: 100, Status: payment.StatusCompleted, TransactionID: "txn_123"},
		}
		c := checkout.NewCoordinator(cat, &fakeOrders{}, payments, time.Second)

		err := c.CancelOrder(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, []int64{100}, cat.restocked)
		assert.Equal(t, []int64{100}, payments.refunded)
	})

	t.Run("failed_payment_not_refunded", func(t *testing.T) {
		cat := newFakeCatalog()
		payments := &fakePayments{
			existing: &payment.Payment{ID: 10, OrderID: 100, Status: payment.StatusFailed},
		}
		c := checkout.NewCoordinator(cat, &fakeOrders{}, payments, time.Second)

		err := c.CancelOrder(context.Background(), 100)
		require.NoError(t, err)
		assert.Empty(t, payments.refunded)
	})

	t.Run("illegal_transition_stops_cancellation", func(t *testing.T) {
		cat := newFakeCatalog()
		orders := &fakeOrders{transitionErr: order.ErrInvalidTransition}
		payments := &fakePayments{}
		c := checkout.NewCoordinator(cat, orders, payments, time.Second)

		err := c.CancelOrder(context.Background(), 100)
		assert.ErrorIs(t, err, order.ErrInvalidTransition)
		assert.Empty(t, cat.restocked)
		assert.Empty(t, payments.refunded)
	})

	t.Run("refund_failure_surfaces", func(t *testing.T) {
		cat := newFakeCatalog()
		payments := &fakePayments{
			existing:  &payment.Payment{ID: 10, OrderID: 100, Status: payment.StatusCompleted},
			refundErr: errors.New("service: order 100: refund failed"),
		}
		c := checkout.NewCoordinator(cat, &fakeOrders{}, payments, time.Second)

		err := c.CancelOrder(context.Background(), 100)
		assert.Error(t, err)
		// Отмена и возврат склада уже применены.
		assert.Equal(t, []int64{100}, cat.restocked)
	})
}
