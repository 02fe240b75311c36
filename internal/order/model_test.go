package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    order.Status
		to      order.Status
		allowed bool
	}{
		{"pending_to_processing", order.StatusPending, order.StatusProcessing, true},
		{"pending_to_cancelled", order.StatusPending, order.StatusCancelled, true},
		{"processing_to_shipped", order.StatusProcessing, order.StatusShipped, true},
		{"processing_to_cancelled", order.StatusProcessing, order.StatusCancelled, true},
		{"shipped_to_delivered", order.StatusShipped, order.StatusDelivered, true},
		{"pending_to_shipped_skips", order.StatusPending, order.StatusShipped, false},
		{"pending_to_delivered_skips", order.StatusPending, order.StatusDelivered, false},
		{"shipped_to_cancelled", order.StatusShipped, order.StatusCancelled, false},
		{"delivered_is_terminal", order.StatusDelivered, order.StatusCancelled, false},
		{"cancelled_is_terminal", order.StatusCancelled, order.StatusPending, false},
		{"no_self_loop", order.StatusPending, order.StatusPending, false},
		{"backward_rejected", order.StatusShipped, order.StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, order.CanTransition(tt.from, tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, ok := order.ParseStatus("processing")
	assert.True(t, ok)
	assert.Equal(t, order.StatusProcessing, s)

	_, ok = order.ParseStatus("paid")
	assert.False(t, ok)

	_, ok = order.ParseStatus("")
	assert.False(t, ok)
}

func TestRoundAmount(t *testing.T) {
	assert.Equal(t, 25.0, order.RoundAmount(25.000000001))
	assert.Equal(t, 0.1, order.RoundAmount(0.1))
	assert.Equal(t, 10.56, order.RoundAmount(10.555))
	assert.Equal(t, 29.97, order.RoundAmount(3*9.99))
}
