package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentIntent is the gateway's handle for a card charge in flight.
// ClientSecret is passed through to the client untouched.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

type PaymentGateway interface {
	// CreateIntent registers a charge for amount in the given currency and
	// returns the gateway handle. The actual outcome arrives later through
	// the gateway's webhook.
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*PaymentIntent, error)
}
