package order

import (
	"errors"
	"math"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Машина статусов заказа: строго вперёд без пропусков, отмена возможна
// только до отгрузки. Delivered и Cancelled - терминальные.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition сообщает, разрешён ли переход from → to.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// ParseStatus проверяет строковое представление статуса.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrValidation         = errors.New("order validation failed")
	ErrInvariantViolation = errors.New("order invariant violation")
)

type OrderItem struct {
	ID        int64   `json:"id" db:"id"`
	OrderID   int64   `json:"order_id" db:"order_id"`
	ProductID int64   `json:"product_id" db:"product_id"`
	Quantity  int     `json:"quantity" db:"quantity"`
	UnitPrice float64 `json:"unit_price" db:"unit_price"` // снимок цены на момент заказа
	Subtotal  float64 `json:"subtotal" db:"subtotal"`
}

type Order struct {
	ID              int64       `json:"id" db:"id"`
	UserID          int64       `json:"user_id" db:"user_id"`
	TotalAmount     float64     `json:"total_amount" db:"total_amount"`
	Status          Status      `json:"status" db:"status"`
	ShippingAddress string      `json:"shipping_address" db:"shipping_address"`
	BillingAddress  string      `json:"billing_address" db:"billing_address"`
	Items           []OrderItem `json:"items" db:"-"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// NewOrderItem - входная позиция заказа. UnitPrice - снимок цены,
// сделанный на этапе резервирования, не живая цена товара.
type NewOrderItem struct {
	ProductID int64
	Quantity  int
	UnitPrice float64
}

type NewOrder struct {
	UserID          int64
	ShippingAddress string
	BillingAddress  string
	Items           []NewOrderItem
}

// RoundAmount округляет денежную сумму до цента.
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
