// Package payment defines the external payment and notification collaborators
// consumed by the checkout workflow. The gateway is an explicitly constructed,
// injected client: credentials and mode are supplied at construction, never
// read from ambient process state.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined is a terminal provider rejection; retrying the same charge
	// will not succeed.
	ErrDeclined = errors.New("payment declined")
	// ErrGatewayTimeout is an ambiguous outcome: the charge may or may not
	// have been captured server-side. The checkout workflow fails closed and
	// leaves reconciliation to an out-of-band process.
	ErrGatewayTimeout = errors.New("payment gateway timeout")
)

// Result is the gateway's confirmation for a captured charge.
type Result struct {
	TransactionID string
	Status        string
}

// Gateway charges a customer. Implementations wrap a concrete provider SDK
// (Stripe, PayPal) and translate provider failures into ErrDeclined or
// ErrGatewayTimeout.
type Gateway interface {
	Charge(ctx context.Context, amount decimal.Decimal, currency, customerRef string) (*Result, error)
}
