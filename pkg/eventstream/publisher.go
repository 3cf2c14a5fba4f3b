// Package eventstream publishes memory lifecycle events to an event stream
// backend. Publishing is fire-and-forget from the caller's point of view:
// failures are logged, never propagated into the write or batch paths.
package eventstream

import "context"

// Publisher publishes memory lifecycle events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
