package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// UserChecker и ProductChecker - проверки существования; реализуются
// репозиториями соответствующих пакетов.
type UserChecker interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

type ProductChecker interface {
	ExistsProductByID(ctx context.Context, id int64) (bool, error)
}

type Service interface {
	Create(ctx context.Context, review *Review) (*Review, error)
	GetByProductID(ctx context.Context, productID int64) ([]Review, error)
	GetByUserID(ctx context.Context, userID int64) ([]Review, error)
	Update(ctx context.Context, id int64, rating int, comment string) (*Review, error)
	Delete(ctx context.Context, id int64) error
}

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
)

type service struct {
	repo     Repository
	users    UserChecker
	products ProductChecker
}

func NewService(repo Repository, users UserChecker, products ProductChecker) Service {
	return &service{repo: repo, users: users, products: products}
}

func (s *service) Create(ctx context.Context, review *Review) (*Review, error) {
	if review.Rating < 1 || review.Rating > 5 {
		return nil, ErrInvalidRating
	}

	userExists, err := s.users.ExistsByID(ctx, review.UserID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check user %d: %w", review.UserID, err)
	}
	if !userExists {
		return nil, ErrUserNotFound
	}

	productExists, err := s.products.ExistsProductByID(ctx, review.ProductID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check product %d: %w", review.ProductID, err)
	}
	if !productExists {
		return nil, ErrProductNotFound
	}

	created, err := s.repo.Create(ctx, review)
	if err != nil {
		log.Error().Err(err).Int64("product_id", review.ProductID).Msg("service: failed to create review")
		return nil, fmt.Errorf("service: failed to create review: %w", err)
	}
	return created, nil
}

func (s *service) GetByProductID(ctx context.Context, productID int64) ([]Review, error) {
	return s.repo.GetByProductID(ctx, productID)
}

func (s *service) GetByUserID(ctx context.Context, userID int64) ([]Review, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *service) Update(ctx context.Context, id int64, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	return s.repo.Update(ctx, id, rating, comment)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
