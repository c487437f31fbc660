package port

import "context"

type RealtimeRelay interface {
	// Publish broadcasts payload on the order's channel. Best-effort:
	// callers log failures and move on, the order path never depends on it.
	Publish(ctx context.Context, orderID string, payload any) error
}
