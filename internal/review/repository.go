package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, review *Review) (*Review, error)
	GetByProductID(ctx context.Context, productID int64) ([]Review, error)
	GetByUserID(ctx context.Context, userID int64) ([]Review, error)
	Update(ctx context.Context, id int64, rating int, comment string) (*Review, error)
	Delete(ctx context.Context, id int64) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const reviewColumns = `id, user_id, product_id, rating, coalesce(comment, ''), created_at, updated_at`

func scanReview(row pgx.Row) (*Review, error) {
	var rv Review
	err := row.Scan(&rv.ID, &rv.UserID, &rv.ProductID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *postgresRepository) Create(ctx context.Context, review *Review) (*Review, error) {
	query := `
		INSERT INTO reviews (user_id, product_id, rating, comment)
		VALUES ($1, $2, $3, nullif($4, ''))
		RETURNING ` + reviewColumns

	rv, err := scanReview(r.db.QueryRow(ctx, query, review.UserID, review.ProductID, review.Rating, review.Comment))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert review: %w", err)
	}
	return rv, nil
}

func (r *postgresRepository) GetByProductID(ctx context.Context, productID int64) ([]Review, error) {
	return r.list(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`, productID)
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID int64) ([]Review, error) {
	return r.list(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *postgresRepository) list(ctx context.Context, query string, arg any) ([]Review, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating reviews: %w", err)
	}
	return reviews, nil
}

func (r *postgresRepository) Update(ctx context.Context, id int64, rating int, comment string) (*Review, error) {
	query := `
		UPDATE reviews
		SET rating = $1, comment = nullif($2, ''), updated_at = $3
		WHERE id = $4
		RETURNING ` + reviewColumns

	rv, err := scanReview(r.db.QueryRow(ctx, query, rating, comment, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to update review %d: %w", id, err)
	}
	return rv, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete review %d: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
