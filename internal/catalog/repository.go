package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	CreateCategory(ctx context.Context, category *Category) (*Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*Category, error)

	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	GetProductByID(ctx context.Context, id int64) (*Product, error)
	GetProductsByCategoryID(ctx context.Context, categoryID int64) ([]Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	UpdateProduct(ctx context.Context, product *Product) (*Product, error)
	ExistsProductByID(ctx context.Context, id int64) (bool, error)

	Reserve(ctx context.Context, productID int64, quantity int) (*Reservation, error)
	Release(ctx context.Context, reservationID uuid.UUID) error
	Commit(ctx context.Context, reservationID uuid.UUID, orderID int64) error
	ReleaseByOrderID(ctx context.Context, orderID int64) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateCategory(ctx context.Context, category *Category) (*Category, error) {
	query := `
		INSERT INTO categories (name, description, parent_id)
		VALUES ($1, nullif($2, ''), $3)
		RETURNING id, name, coalesce(description, ''), parent_id, created_at
	`

	var c Category
	err := r.db.QueryRow(ctx, query, category.Name, category.Description, category.ParentID).Scan(
		&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert category: %w", err)
	}
	return &c, nil
}

func (r *postgresRepository) GetCategoryByID(ctx context.Context, id int64) (*Category, error) {
	query := `SELECT id, name, coalesce(description, ''), parent_id, created_at FROM categories WHERE id = $1`

	var c Category
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("repository: failed to select category by id %d: %w", id, err)
	}
	return &c, nil
}

const productColumns = `id, name, coalesce(description, ''), price, stock_quantity, category_id, coalesce(image_url, ''), created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.StockQuantity,
		&p.CategoryID,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	query := `
		INSERT INTO products (name, description, price, stock_quantity, category_id, image_url)
		VALUES ($1, nullif($2, ''), $3, $4, $5, nullif($6, ''))
		RETURNING ` + productColumns

	p, err := scanProduct(r.db.QueryRow(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		product.StockQuantity,
		product.CategoryID,
		product.ImageURL,
	))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) GetProductByID(ctx context.Context, id int64) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresRepository) GetProductsByCategoryID(ctx context.Context, categoryID int64) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category_id = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product for category %d: %w", categoryID, err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products for category %d: %w", categoryID, err)
	}
	return products, nil
}

func (r *postgresRepository) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}
	return products, nil
}

// UpdateProduct обновляет описательные поля товара. stock_quantity меняется
// только через Reserve/Release - здесь он намеренно не трогается.
func (r *postgresRepository) UpdateProduct(ctx context.Context, product *Product) (*Product, error) {
	query := `
		UPDATE products
		SET name = $1, description = nullif($2, ''), price = $3, image_url = nullif($4, ''), updated_at = $5
		WHERE id = $6
		RETURNING ` + productColumns

	p, err := scanProduct(r.db.QueryRow(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		product.ImageURL,
		time.Now().UTC(),
		product.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to update product %d: %w", product.ID, err)
	}
	return p, nil
}

func (r *postgresRepository) ExistsProductByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check product existence for id %d: %w", id, err)
	}
	return exists, nil
}

// Reserve атомарно списывает количество со склада. Условный UPDATE - это
// compare-and-decrement: два конкурентных резерва на один товар не могут
// вдвоём уйти ниже нуля.
func (r *postgresRepository) Reserve(ctx context.Context, productID int64, quantity int) (res *Reservation, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Int64("product_id", productID).Msg("repository: failed to rollback reserve transaction")
			}
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
	`, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to decrement stock for product %d: %w", productID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("repository: failed to check product %d after reserve miss: %w", productID, err)
		}
		if !exists {
			err = ErrProductNotFound
			return nil, err
		}
		err = ErrInsufficientStock
		return nil, err
	}

	reservationID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate reservation ID: %w", err)
	}

	reservation := Reservation{
		ID:        reservationID,
		ProductID: productID,
		Quantity:  quantity,
		State:     ReservationHeld,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO stock_reservations (id, product_id, quantity, state)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, reservation.ID, reservation.ProductID, reservation.Quantity, reservation.State).
		Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert reservation for product %d: %w", productID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit reserve transaction: %w", err)
	}
	return &reservation, nil
}

// Release возвращает удержанное количество на склад. Идемпотентен: повторный
// release и release неизвестного handle - no-op. Committed-резервация уже
// закреплена за заказом и через этот метод не освобождается.
func (r *postgresRepository) Release(ctx context.Context, reservationID uuid.UUID) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("reservation_id", reservationID).Msg("repository: failed to rollback release transaction")
			}
		}
	}()

	var productID int64
	var quantity int
	err = tx.QueryRow(ctx, `
		UPDATE stock_reservations
		SET state = $2, updated_at = now()
		WHERE id = $1 AND state = $3
		RETURNING product_id, quantity
	`, reservationID, ReservationReleased, ReservationHeld).Scan(&productID, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Уже released, committed или неизвестен - по контракту no-op.
			err = tx.Commit(ctx)
			return err
		}
		return fmt.Errorf("repository: failed to release reservation %s: %w", reservationID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now() WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("repository: failed to restock product %d: %w", productID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit release transaction: %w", err)
	}
	return nil
}

// Commit закрепляет held-резервацию за заказом как окончательную продажу.
func (r *postgresRepository) Commit(ctx context.Context, reservationID uuid.UUID, orderID int64) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE stock_reservations
		SET state = $2, order_id = $3, updated_at = now()
		WHERE id = $1 AND state = $4
	`, reservationID, ReservationCommitted, orderID, ReservationHeld)
	if err != nil {
		return fmt.Errorf("repository: failed to commit reservation %s: %w", reservationID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		var state ReservationState
		err := r.db.QueryRow(ctx, `SELECT state FROM stock_reservations WHERE id = $1`, reservationID).Scan(&state)
		if err == nil && state == ReservationCommitted {
			return nil // уже закоммичена
		}
		return fmt.Errorf("repository: reservation %s: %w", reservationID, ErrReservationNotHeld)
	}
	return nil
}

// ReleaseByOrderID возвращает на склад все committed-резервации заказа.
// Используется при отмене заказа; идемпотентен.
func (r *postgresRepository) ReleaseByOrderID(ctx context.Context, orderID int64) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Int64("order_id", orderID).Msg("repository: failed to rollback order release transaction")
			}
		}
	}()

	rows, err := tx.Query(ctx, `
		UPDATE stock_reservations
		SET state = $2, updated_at = now()
		WHERE order_id = $1 AND state = $3
		RETURNING product_id, quantity
	`, orderID, ReservationReleased, ReservationCommitted)
	if err != nil {
		return fmt.Errorf("repository: failed to release reservations for order %d: %w", orderID, err)
	}

	type restock struct {
		productID int64
		quantity  int
	}
	var restocks []restock
	for rows.Next() {
		var rs restock
		if err = rows.Scan(&rs.productID, &rs.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("repository: failed to scan released reservation for order %d: %w", orderID, err)
		}
		restocks = append(restocks, rs)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating released reservations for order %d: %w", orderID, err)
	}

	for _, rs := range restocks {
		_, err = tx.Exec(ctx, `
			UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now() WHERE id = $1
		`, rs.productID, rs.quantity)
		if err != nil {
			return fmt.Errorf("repository: failed to restock product %d for order %d: %w", rs.productID, orderID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit order release transaction: %w", err)
	}
	return nil
}
