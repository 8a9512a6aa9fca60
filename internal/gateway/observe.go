package gateway

import (
	"context"

	"clawlink/pkg/protocol"
)

// ForwardDiagnostics drains c.Diagnostics into every sink, in order, until
// ctx is cancelled. Run it in its own goroutine; it is the channel's only
// reader.
func ForwardDiagnostics(ctx context.Context, c *Client, sinks ...func(Diagnostic)) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.Diagnostics():
			for _, sink := range sinks {
				sink(d)
			}
		}
	}
}

// Tee returns a Handler that calls each handler in turn
func Tee(handlers ...Handler) Handler {
	return func(ev protocol.Event) {
		for _, h := range handlers {
			if h != nil {
				h(ev)
			}
		}
	}
}
