package notify

import (
	"context"
	"time"
)

// Registration is the payload announced after a confirmed registration.
type Registration struct {
	DomainName    string
	WalletAddress string
	TxHash        string
	Amount        string
	ReservedAt    time.Time
	ExpiresAt     time.Time
}

// Notifier delivers a best-effort external notification. Attempts reports how
// many deliveries were tried, for the notification audit log. Failures must
// never affect the registration itself.
type Notifier interface {
	Notify(ctx context.Context, reg Registration) (attempts int, err error)
}

type noop struct{}

func (noop) Notify(context.Context, Registration) (int, error) {
	return 0, nil
}

// NewNoop returns a notifier that does nothing, for when no credentials are
// configured.
func NewNoop() Notifier {
	return noop{}
}
