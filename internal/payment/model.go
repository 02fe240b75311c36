package payment

import (
	"errors"
	"time"
)

type Method string

const (
	MethodCreditCard   Method = "credit_card"
	MethodDebitCard    Method = "debit_card"
	MethodPayPal       Method = "paypal"
	MethodBankTransfer Method = "bank_transfer"
)

func (m Method) String() string {
	return string(m)
}

// ParseMethod проверяет строковое представление способа оплаты.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodCreditCard, MethodDebitCard, MethodPayPal, MethodBankTransfer:
		return Method(s), true
	}
	return "", false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

func (s Status) String() string {
	return string(s)
}

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicatePayment = errors.New("order already has an active payment")
	ErrOrderNotPayable  = errors.New("order is not in a payable status")
	ErrPaymentDeclined  = errors.New("payment declined")
	ErrGatewayTimeout   = errors.New("payment gateway timed out")
	ErrNotRefundable    = errors.New("payment is not refundable")
	ErrRefundFailed     = errors.New("refund failed")
)

// Payment - ровно одна не-failed оплата на заказ; правило закреплено
// частичным уникальным индексом в БД.
type Payment struct {
	ID            int64      `json:"id" db:"id"`
	OrderID       int64      `json:"order_id" db:"order_id"`
	Amount        float64    `json:"amount" db:"amount"`
	Method        Method     `json:"method" db:"method"`
	Status        Status     `json:"status" db:"status"`
	TransactionID string     `json:"transaction_id,omitempty" db:"transaction_id"`
	PaymentDate   *time.Time `json:"payment_date,omitempty" db:"payment_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
