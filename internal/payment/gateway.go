package payment

import (
	"context"
	"errors"
)

// ErrDeclined возвращается шлюзом при отказе в списании.
var ErrDeclined = errors.New("gateway declined the charge")

// Gateway - внешний платёжный шлюз. Суммы - в минорных единицах валюты
// (центах). Ограничение по времени задаёт вызывающая сторона через ctx.
type Gateway interface {
	Charge(ctx context.Context, amountMinor int64, method Method) (transactionID string, err error)
	Refund(ctx context.Context, transactionID string) error
}
