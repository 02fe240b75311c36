// Package checkout связывает резервирование склада, создание заказа и
// оплату в одну логическую транзакцию с компенсацией при сбое.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-core/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
	"github.com/vasiliy-maslov/ecommerce-core/internal/payment"
)

type PlaceOrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type PlaceOrderRequest struct {
	UserID          int64            `json:"user_id"`
	ShippingAddress string           `json:"shipping_address"`
	BillingAddress  string           `json:"billing_address"`
	Items           []PlaceOrderItem `json:"items"`
	// PaymentMethod пуст - заказ остаётся Pending, оплата позже.
	PaymentMethod payment.Method `json:"payment_method,omitempty"`
}

type PlaceOrderResult struct {
	Order   *order.Order     `json:"order"`
	Payment *payment.Payment `json:"payment,omitempty"`
}

type Coordinator struct {
	catalog        catalog.Service
	orders         order.Service
	payments       payment.Service
	gatewayTimeout time.Duration
}

func NewCoordinator(catalogSvc catalog.Service, orderSvc order.Service, paymentSvc payment.Service, gatewayTimeout time.Duration) *Coordinator {
	return &Coordinator{
		catalog:        catalogSvc,
		orders:         orderSvc,
		payments:       paymentSvc,
		gatewayTimeout: gatewayTimeout,
	}
}

// PlaceOrder выполняет последовательность резерв → заказ → коммит резервов →
// (опционально) оплата. Любой сбой до создания заказа откатывает все уже
// взятые резервы: частичных заказов не бывает. Отказ оплаты заказ не
// отменяет - заказ валиден, авторизацию можно повторить.
func (c *Coordinator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", order.ErrValidation)
	}

	// Шаг 1: резервируем склад по каждой позиции, снимая цену товара.
	reservations := make([]uuid.UUID, 0, len(req.Items))
	orderItems := make([]order.NewOrderItem, 0, len(req.Items))

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			c.rollbackReservations(ctx, reservations)
			return nil, fmt.Errorf("%w: quantity for product %d must be greater than zero", order.ErrValidation, item.ProductID)
		}

		product, err := c.catalog.GetProductByID(ctx, item.ProductID)
		if err != nil {
			c.rollbackReservations(ctx, reservations)
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, fmt.Errorf("checkout: product %d: %w", item.ProductID, catalog.ErrProductNotFound)
			}
			return nil, fmt.Errorf("checkout: failed to load product %d: %w", item.ProductID, err)
		}

		reservation, err := c.catalog.Reserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			c.rollbackReservations(ctx, reservations)
			if errors.Is(err, catalog.ErrInsufficientStock) {
				return nil, fmt.Errorf("checkout: product %d: %w", item.ProductID, catalog.ErrInsufficientStock)
			}
			return nil, fmt.Errorf("checkout: failed to reserve product %d: %w", item.ProductID, err)
		}

		reservations = append(reservations, reservation.ID)
		orderItems = append(orderItems, order.NewOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	// Шаг 2: создаём заказ по снятым ценам.
	o, err := c.orders.Create(ctx, order.NewOrder{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Items:           orderItems,
	})
	if err != nil {
		c.rollbackReservations(ctx, reservations)
		return nil, err
	}

	// Шаг 3: закрепляем резервы за созданным заказом. Заказ уже существует,
	// поэтому сбой здесь не откатывает его: коммит идемпотентен и может
	// быть повторён.
	var commitErrs *multierror.Error
	for _, reservationID := range reservations {
		if err := c.catalog.Commit(ctx, reservationID, o.ID); err != nil {
			commitErrs = multierror.Append(commitErrs, err)
		}
	}
	if err := commitErrs.ErrorOrNil(); err != nil {
		log.Error().Err(err).Int64("order_id", o.ID).Msg("checkout: order created but some reservations were not committed")
		return &PlaceOrderResult{Order: o}, fmt.Errorf("checkout: order %d created, reservation commit incomplete: %w", o.ID, err)
	}

	result := &PlaceOrderResult{Order: o}

	// Шаг 4 (опциональный): немедленная авторизация оплаты.
	if req.PaymentMethod != "" {
		gatewayCtx, cancel := context.WithTimeout(ctx, c.gatewayTimeout)
		p, err := c.payments.Authorize(gatewayCtx, o.ID, req.PaymentMethod)
		cancel()
		result.Payment = p
		if err != nil {
			log.Warn().Err(err).Int64("order_id", o.ID).Msg("checkout: order placed, immediate payment failed")
			return result, err
		}
	}

	log.Info().Int64("order_id", o.ID).Int("items", len(o.Items)).Msg("checkout: order placed")
	return result, nil
}

// rollbackReservations снимает уже взятые резервы в обратном порядке.
// Release идемпотентен, поэтому повторный откат безопасен.
func (c *Coordinator) rollbackReservations(ctx context.Context, reservations []uuid.UUID) {
	var errs *multierror.Error
	for i := len(reservations) - 1; i >= 0; i-- {
		if err := c.catalog.Release(ctx, reservations[i]); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		// Резерв остался висеть - склад занижен до ручного вмешательства.
		log.Error().Err(err).Msg("checkout: failed to release reservations during rollback")
	}
}

// CancelOrder отменяет заказ: переводит его в Cancelled (допустимо только из
// Pending и Processing), возвращает закреплённый за ним склад и, если оплата
// завершена, запускает возврат. Неудавшийся возврат не откатывает отмену,
// он требует внимания оператора.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID int64) error {
	if err := c.orders.Transition(ctx, orderID, order.StatusCancelled); err != nil {
		return err
	}

	if err := c.catalog.ReleaseOrderStock(ctx, orderID); err != nil {
		return fmt.Errorf("checkout: order %d cancelled, stock release failed: %w", orderID, err)
	}

	p, err := c.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			return nil
		}
		return fmt.Errorf("checkout: order %d cancelled, payment lookup failed: %w", orderID, err)
	}

	if p.Status == payment.StatusCompleted {
		gatewayCtx, cancel := context.WithTimeout(ctx, c.gatewayTimeout)
		defer cancel()
		if _, err := c.payments.Refund(gatewayCtx, orderID); err != nil {
			return err
		}
	}
	return nil
}

// AuthorizePayment - поздняя оплата заказа, оставленного в Pending.
func (c *Coordinator) AuthorizePayment(ctx context.Context, orderID int64, method payment.Method) (*payment.Payment, error) {
	gatewayCtx, cancel := context.WithTimeout(ctx, c.gatewayTimeout)
	defer cancel()
	return c.payments.Authorize(gatewayCtx, orderID, method)
}

// RefundPayment - возврат по явному запросу оператора.
func (c *Coordinator) RefundPayment(ctx context.Context, orderID int64) (*payment.Payment, error) {
	gatewayCtx, cancel := context.WithTimeout(ctx, c.gatewayTimeout)
	defer cancel()
	return c.payments.Refund(gatewayCtx, orderID)
}
