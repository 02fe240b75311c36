package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/refund"
)

// StripeGateway реализует Gateway поверх Stripe PaymentIntents.
type StripeGateway struct {
	currency string
}

func NewStripeGateway(secretKey, currency string) *StripeGateway {
	stripe.Key = secretKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeGateway{currency: currency}
}

func (g *StripeGateway) Charge(ctx context.Context, amountMinor int64, method Method) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(g.currency),
		PaymentMethodTypes: []*string{
			stripe.String(stripeMethodType(method)),
		},
		Confirm: stripe.Bool(true),
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return "", fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Msg)
		}
		return "", fmt.Errorf("stripe: failed to create payment intent: %w", err)
	}

	if pi.Status == stripe.PaymentIntentStatusCanceled {
		return "", ErrDeclined
	}
	return pi.ID, nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string) error {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(transactionID),
	}

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("stripe: failed to refund payment intent %s: %w", transactionID, err)
	}
	return nil
}

func stripeMethodType(method Method) string {
	switch method {
	case MethodPayPal:
		return "paypal"
	case MethodBankTransfer:
		return "customer_balance"
	default:
		return "card"
	}
}
