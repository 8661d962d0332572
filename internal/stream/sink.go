// Package stream models the one-way server-to-client event channel. The
// engine writes to a Sink; delivery order is emission order, with no
// reordering or batching.
package stream

import "github.com/osvaldoandrade/agentq/pkg/domain"

// Sink is an ordered, append-only event emitter with a single subscriber.
type Sink interface {
	Send(event domain.Event) error
}
