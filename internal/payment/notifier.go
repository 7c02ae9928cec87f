package payment

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/fashionnest/internal/domain/order"
)

// Notifier delivers the order confirmation to the customer. The checkout
// workflow treats it as fire-and-forget: a delivery failure never rolls back
// the order.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, o *order.Order) error
}

// LogNotifier records confirmations in the log instead of delivering email.
// Used when no mail transport is configured.
type LogNotifier struct {
	lg *zap.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier returns a Notifier that only logs.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg}
}

// SendOrderConfirmation logs the confirmation and always succeeds.
func (n *LogNotifier) SendOrderConfirmation(_ context.Context, o *order.Order) error {
	n.lg.Info("order confirmation",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return nil
}
