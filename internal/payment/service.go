package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
)

// OrderGetter отдаёт заказ для проверки статуса и суммы.
type OrderGetter interface {
	GetByID(ctx context.Context, id int64) (*order.Order, error)
}

type Service interface {
	Authorize(ctx context.Context, orderID int64, method Method) (*Payment, error)
	Refund(ctx context.Context, orderID int64) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*Payment, error)
}

type service struct {
	repo    Repository
	orders  OrderGetter
	gateway Gateway
}

func NewService(repo Repository, orders OrderGetter, gateway Gateway) Service {
	return &service{repo: repo, orders: orders, gateway: gateway}
}

// Authorize открывает оплату заказа и проводит её через шлюз. Сумма берётся
// из заказа, не от клиента. Отказ или таймаут шлюза оставляют failed-запись:
// заказ остаётся валидным, авторизацию можно повторить.
func (s *service) Authorize(ctx context.Context, orderID int64, method Method) (*Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to load order %d for authorization: %w", orderID, err)
	}

	if o.Status != order.StatusPending && o.Status != order.StatusProcessing {
		log.Warn().Int64("order_id", orderID).Stringer("status", o.Status).Msg("service: payment authorization for non-payable order rejected")
		return nil, fmt.Errorf("service: order %d is %s: %w", orderID, o.Status, ErrOrderNotPayable)
	}

	if existing, err := s.repo.GetByOrderID(ctx, orderID); err == nil && existing.Status != StatusFailed {
		return nil, ErrDuplicatePayment
	} else if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("service: failed to check existing payment for order %d: %w", orderID, err)
	}

	p, err := s.repo.Create(ctx, &Payment{
		OrderID: orderID,
		Amount:  o.TotalAmount,
		Method:  method,
		Status:  StatusPending,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			// Гонка двух авторизаций: уникальный индекс пропустил только одну.
			return nil, ErrDuplicatePayment
		}
		if errors.Is(err, ErrOrderNotPayable) || errors.Is(err, order.ErrOrderNotFound) {
			// Заказ отменили между проверкой статуса и вставкой: блокировка
			// строки заказа в репозитории перехватила гонку.
			log.Warn().Err(err).Int64("order_id", orderID).Msg("service: order became non-payable before payment was opened")
			return nil, err
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to open payment")
		return nil, fmt.Errorf("service: failed to open payment for order %d: %w", orderID, err)
	}

	amountMinor := int64(math.Round(o.TotalAmount * 100))
	transactionID, err := s.gateway.Charge(ctx, amountMinor, method)
	if err != nil {
		// Запись о неудаче фиксируем даже при истёкшем ctx.
		markCtx := context.WithoutCancel(ctx)
		if markErr := s.repo.MarkFailed(markCtx, p.ID); markErr != nil {
			log.Error().Err(markErr).Int64("payment_id", p.ID).Msg("service: failed to mark payment failed")
		}
		p.Status = StatusFailed

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Err(err).Int64("order_id", orderID).Msg("service: gateway charge timed out")
			return p, fmt.Errorf("service: order %d: %w", orderID, ErrGatewayTimeout)
		}
		log.Warn().Err(err).Int64("order_id", orderID).Msg("service: gateway declined charge")
		return p, fmt.Errorf("service: order %d: %w", orderID, ErrPaymentDeclined)
	}

	paymentDate := time.Now().UTC()
	if err := s.repo.MarkCompleted(ctx, p.ID, transactionID, paymentDate); err != nil {
		// Списание прошло, но завершить оплату нельзя: либо заказ отменили,
		// пока шёл запрос к шлюзу, либо запись не сохранилась. Возвращаем
		// деньги и освобождаем слот оплаты, чтобы заказ не завис с pending.
		markCtx := context.WithoutCancel(ctx)
		if refundErr := s.gateway.Refund(markCtx, transactionID); refundErr != nil {
			log.Error().Err(refundErr).Int64("payment_id", p.ID).Str("transaction_id", transactionID).Msg("service: compensation refund failed, manual intervention required")
		}
		if markErr := s.repo.MarkFailed(markCtx, p.ID); markErr != nil {
			log.Error().Err(markErr).Int64("payment_id", p.ID).Str("transaction_id", transactionID).Msg("service: failed to mark payment failed after compensation")
		}
		p.Status = StatusFailed

		if errors.Is(err, ErrOrderNotPayable) {
			log.Warn().Err(err).Int64("order_id", orderID).Int64("payment_id", p.ID).Msg("service: order cancelled during charge, payment reverted")
			return p, fmt.Errorf("service: order %d: %w", orderID, ErrOrderNotPayable)
		}
		log.Error().Err(err).Int64("payment_id", p.ID).Str("transaction_id", transactionID).Msg("service: charge succeeded but completion was not persisted, payment reverted")
		return p, fmt.Errorf("service: failed to complete payment %d: %w", p.ID, err)
	}

	p.Status = StatusCompleted
	p.TransactionID = transactionID
	p.PaymentDate = &paymentDate

	log.Info().Int64("order_id", orderID).Int64("payment_id", p.ID).Float64("amount", p.Amount).Msg("service: payment completed")
	return p, nil
}

// Refund возвращает завершённую оплату через шлюз. Неудача шлюза оставляет
// статус без изменений - разбирается оператор, автоматических повторов нет.
func (s *service) Refund(ctx context.Context, orderID int64) (*Payment, error) {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("service: failed to load payment for order %d: %w", orderID, err)
	}

	if p.Status != StatusCompleted {
		log.Warn().Int64("order_id", orderID).Stringer("status", p.Status).Msg("service: refund for non-completed payment rejected")
		return nil, fmt.Errorf("service: payment for order %d is %s: %w", orderID, p.Status, ErrNotRefundable)
	}

	if err := s.gateway.Refund(ctx, p.TransactionID); err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Str("transaction_id", p.TransactionID).Msg("service: gateway refund failed, manual intervention required")
		return nil, fmt.Errorf("service: order %d: %w", orderID, ErrRefundFailed)
	}

	if err := s.repo.MarkRefunded(ctx, p.ID); err != nil {
		log.Error().Err(err).Int64("payment_id", p.ID).Msg("service: refund succeeded but status was not persisted")
		return nil, fmt.Errorf("service: failed to mark payment %d refunded: %w", p.ID, err)
	}

	p.Status = StatusRefunded
	log.Info().Int64("order_id", orderID).Int64("payment_id", p.ID).Msg("service: payment refunded")
	return p, nil
}

func (s *service) GetByOrderID(ctx context.Context, orderID int64) (*Payment, error) {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch payment for order %d: %w", orderID, err)
	}
	return p, nil
}
