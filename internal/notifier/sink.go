// Package notifier watches devices for state changes and fans them out to sinks:
// NATS, MQTT, webhooks and websocket dashboards.
package notifier

import (
	"context"

	"github.com/screentime-server/screentime-server/internal/control"
)

// Sink receives state changes
type Sink interface {
	Name() string
	Notify(ctx context.Context, change *control.StateChange) error
}

// message is the JSON form every sink emits
type message struct {
	Type string `json:"type"`
	*control.StateChange
}

func newMessage(change *control.StateChange) message {
	return message{Type: "state_change", StateChange: change}
}
