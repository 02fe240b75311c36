package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// UserChecker отвечает на вопрос «существует ли пользователь».
// Реализуется репозиторием пользователей.
type UserChecker interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

type Service interface {
	Create(ctx context.Context, input NewOrder) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByUserID(ctx context.Context, userID int64) ([]Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	Transition(ctx context.Context, orderID int64, target Status) error
	RecomputeTotal(ctx context.Context, orderID int64) error
}

type service struct {
	repo  Repository
	users UserChecker
}

func NewService(repo Repository, users UserChecker) Service {
	return &service{repo: repo, users: users}
}

// Create валидирует и сохраняет заказ целиком: шапку и позиции одной
// транзакцией. Цены позиций - снимки, сделанные вызывающей стороной;
// живые цены товаров здесь не читаются.
func (s *service) Create(ctx context.Context, input NewOrder) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return nil, fmt.Errorf("%w: shipping address is required", ErrValidation)
	}
	if strings.TrimSpace(input.BillingAddress) == "" {
		return nil, fmt.Errorf("%w: billing address is required", ErrValidation)
	}

	items := make([]OrderItem, len(input.Items))
	totalAmount := 0.0
	for i, item := range input.Items {
		if item.ProductID <= 0 {
			return nil, fmt.Errorf("%w: product id is required for every item", ErrValidation)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %d must be greater than zero", ErrValidation, item.ProductID)
		}
		if item.UnitPrice <= 0 {
			return nil, fmt.Errorf("%w: unit price for product %d must be positive", ErrValidation, item.ProductID)
		}

		subtotal := RoundAmount(float64(item.Quantity) * item.UnitPrice)
		items[i] = OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  subtotal,
		}
		totalAmount += subtotal
	}
	totalAmount = RoundAmount(totalAmount)

	exists, err := s.users.ExistsByID(ctx, input.UserID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", input.UserID).Msg("service: failed to check user existence")
		return nil, fmt.Errorf("service: failed to check user %d: %w", input.UserID, err)
	}
	if !exists {
		log.Warn().Int64("user_id", input.UserID).Msg("service: order creation for unknown user rejected")
		return nil, ErrUserNotFound
	}

	created, err := s.repo.Create(ctx, &Order{
		UserID:          input.UserID,
		TotalAmount:     totalAmount,
		Status:          StatusPending,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		Items:           items,
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", input.UserID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Int64("order_id", created.ID).Int64("user_id", created.UserID).Float64("total_amount", created.TotalAmount).Msg("service: order created")
	return created, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order %d: %w", id, err)
	}
	return o, nil
}

func (s *service) GetByUserID(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch orders for user %d: %w", userID, err)
	}
	return orders, nil
}

func (s *service) List(ctx context.Context, limit, offset int) ([]Order, error) {
	orders, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) Transition(ctx context.Context, orderID int64, target Status) error {
	from, err := s.repo.TransitionStatus(ctx, orderID, target)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		if errors.Is(err, ErrInvalidTransition) {
			log.Warn().Err(err).Int64("order_id", orderID).Stringer("target", target).Msg("service: invalid status transition attempt")
			return err
		}
		log.Error().Err(err).Int64("order_id", orderID).Stringer("target", target).Msg("service: failed to transition order status")
		return fmt.Errorf("service: failed to transition order %d: %w", orderID, err)
	}

	log.Info().Int64("order_id", orderID).Stringer("from", from).Stringer("to", target).Msg("service: order status updated")
	return nil
}

// RecomputeTotal пересчитывает сумму заказа по позициям и сверяет с
// сохранённой. Расхождение - признак порчи данных: ошибка возвращается
// громко и ничего не исправляется молча.
func (s *service) RecomputeTotal(ctx context.Context, orderID int64) error {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to fetch order %d for total check: %w", orderID, err)
	}

	computed := 0.0
	for _, item := range o.Items {
		expectedSubtotal := RoundAmount(float64(item.Quantity) * item.UnitPrice)
		if RoundAmount(item.Subtotal) != expectedSubtotal {
			log.Error().Int64("order_id", orderID).Int64("item_id", item.ID).
				Float64("stored_subtotal", item.Subtotal).Float64("computed_subtotal", expectedSubtotal).
				Msg("service: order item subtotal mismatch")
			return fmt.Errorf("service: order %d item %d subtotal mismatch: stored %.2f, computed %.2f: %w",
				orderID, item.ID, item.Subtotal, expectedSubtotal, ErrInvariantViolation)
		}
		computed += item.Subtotal
	}
	computed = RoundAmount(computed)

	if RoundAmount(o.TotalAmount) != computed {
		log.Error().Int64("order_id", orderID).
			Float64("stored_total", o.TotalAmount).Float64("computed_total", computed).
			Msg("service: order total mismatch")
		return fmt.Errorf("service: order %d total mismatch: stored %.2f, computed %.2f: %w",
			orderID, o.TotalAmount, computed, ErrInvariantViolation)
	}
	return nil
}
