package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SandboxConfig controls the deterministic behaviour of the sandbox gateway.
type SandboxConfig struct {
	// Latency is simulated per charge before responding.
	Latency time.Duration
	// DeclineRefs lists customer references whose charges are always
	// declined, for exercising failure paths in development.
	DeclineRefs []string
}

// SandboxGateway is an in-process Gateway for development and tests. Charges
// succeed unless the customer reference is configured to decline or the
// context expires during the simulated latency.
type SandboxGateway struct {
	cfg      SandboxConfig
	declines map[string]struct{}
}

var _ Gateway = (*SandboxGateway)(nil)

// NewSandboxGateway constructs a sandbox gateway from its configuration.
func NewSandboxGateway(cfg SandboxConfig) *SandboxGateway {
	declines := make(map[string]struct{}, len(cfg.DeclineRefs))
	for _, ref := range cfg.DeclineRefs {
		declines[ref] = struct{}{}
	}
	return &SandboxGateway{cfg: cfg, declines: declines}
}

// Charge simulates a provider round trip.
func (g *SandboxGateway) Charge(ctx context.Context, amount decimal.Decimal, currency, customerRef string) (*Result, error) {
	if g.cfg.Latency > 0 {
		select {
		case <-time.After(g.cfg.Latency):
		case <-ctx.Done():
			return nil, ErrGatewayTimeout
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrGatewayTimeout
	}

	if _, ok := g.declines[customerRef]; ok {
		return nil, ErrDeclined
	}

	return &Result{
		TransactionID: uuid.New().String(),
		Status:        "captured",
	}, nil
}
