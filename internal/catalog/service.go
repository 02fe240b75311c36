package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	CreateCategory(ctx context.Context, category *Category) (*Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*Category, error)

	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	GetProductByID(ctx context.Context, id int64) (*Product, error)
	GetProductsByCategoryID(ctx context.Context, categoryID int64) ([]Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	UpdateProduct(ctx context.Context, product *Product) (*Product, error)

	Reserve(ctx context.Context, productID int64, quantity int) (*Reservation, error)
	Release(ctx context.Context, reservationID uuid.UUID) error
	Commit(ctx context.Context, reservationID uuid.UUID, orderID int64) error
	ReleaseOrderStock(ctx context.Context, orderID int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateCategory(ctx context.Context, category *Category) (*Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, errors.New("service: category name is required")
	}

	// Родитель обязан существовать. Категории создаются только с уже
	// существующим родителем, поэтому циклы в дереве невозможны.
	if category.ParentID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *category.ParentID); err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				return nil, fmt.Errorf("service: parent category %d: %w", *category.ParentID, ErrCategoryNotFound)
			}
			return nil, fmt.Errorf("service: failed to check parent category: %w", err)
		}
	}

	created, err := s.repo.CreateCategory(ctx, category)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to create category in repository")
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}
	return created, nil
}

func (s *service) GetCategoryByID(ctx context.Context, id int64) (*Category, error) {
	return s.repo.GetCategoryByID(ctx, id)
}

func (s *service) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, errors.New("service: product name is required")
	}
	if product.Price <= 0 {
		return nil, fmt.Errorf("service: product price must be positive, got %f", product.Price)
	}
	if product.StockQuantity < 0 {
		return nil, fmt.Errorf("service: product stock quantity cannot be negative, got %d", product.StockQuantity)
	}

	if _, err := s.repo.GetCategoryByID(ctx, product.CategoryID); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("service: failed to check category: %w", err)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Int64("product_id", created.ID).Msg("service: product created")
	return created, nil
}

func (s *service) GetProductByID(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *service) GetProductsByCategoryID(ctx context.Context, categoryID int64) ([]Product, error) {
	return s.repo.GetProductsByCategoryID(ctx, categoryID)
}

func (s *service) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	return s.repo.ListProducts(ctx, limit, offset)
}

func (s *service) UpdateProduct(ctx context.Context, product *Product) (*Product, error) {
	if product.Price <= 0 {
		return nil, fmt.Errorf("service: product price must be positive, got %f", product.Price)
	}
	return s.repo.UpdateProduct(ctx, product)
}

func (s *service) Reserve(ctx context.Context, productID int64, quantity int) (*Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("service: reserve quantity must be positive, got %d", quantity)
	}

	reservation, err := s.repo.Reserve(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrProductNotFound) {
			log.Warn().Err(err).Int64("product_id", productID).Int("quantity", quantity).Msg("service: stock reservation rejected")
			return nil, err
		}
		log.Error().Err(err).Int64("product_id", productID).Msg("service: failed to reserve stock")
		return nil, fmt.Errorf("service: failed to reserve stock for product %d: %w", productID, err)
	}

	log.Info().Stringer("reservation_id", reservation.ID).Int64("product_id", productID).Int("quantity", quantity).Msg("service: stock reserved")
	return reservation, nil
}

func (s *service) Release(ctx context.Context, reservationID uuid.UUID) error {
	if err := s.repo.Release(ctx, reservationID); err != nil {
		log.Error().Err(err).Stringer("reservation_id", reservationID).Msg("service: failed to release reservation")
		return fmt.Errorf("service: failed to release reservation %s: %w", reservationID, err)
	}
	return nil
}

func (s *service) Commit(ctx context.Context, reservationID uuid.UUID, orderID int64) error {
	if err := s.repo.Commit(ctx, reservationID, orderID); err != nil {
		log.Error().Err(err).Stringer("reservation_id", reservationID).Int64("order_id", orderID).Msg("service: failed to commit reservation")
		return fmt.Errorf("service: failed to commit reservation %s: %w", reservationID, err)
	}
	return nil
}

func (s *service) ReleaseOrderStock(ctx context.Context, orderID int64) error {
	if err := s.repo.ReleaseByOrderID(ctx, orderID); err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to release order stock")
		return fmt.Errorf("service: failed to release stock for order %d: %w", orderID, err)
	}
	log.Info().Int64("order_id", orderID).Msg("service: order stock released")
	return nil
}
