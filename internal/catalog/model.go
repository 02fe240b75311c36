package catalog

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
)

var (
	ErrCategoryNotFound   = errors.New("category not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrReservationNotHeld = errors.New("reservation is not held")
)

type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	ParentID    *int64    `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Product struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description,omitempty" db:"description"`
	Price         float64   `json:"price" db:"price"`
	StockQuantity int       `json:"stock_quantity" db:"stock_quantity"`
	CategoryID    int64     `json:"category_id" db:"category_id"`
	ImageURL      string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationReleased  ReservationState = "released"
	ReservationCommitted ReservationState = "committed"
)

// Reservation - временное удержание количества товара до оформления заказа.
// held-резервация уже вычла количество из stock_quantity; release возвращает
// его обратно, commit закрепляет списание за заказом.
type Reservation struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	ProductID int64            `json:"product_id" db:"product_id"`
	OrderID   *int64           `json:"order_id,omitempty" db:"order_id"`
	Quantity  int              `json:"quantity" db:"quantity"`
	State     ReservationState `json:"state" db:"state"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}
