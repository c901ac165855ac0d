// Package relay forwards selected mesh traffic to outside services.
//
// Deliveries are queued in the outbox table and sent by a Drainer, so a slow
// or failing service never holds up ingestion.
package relay

import "context"

// Outbox job kinds.
const (
	KindTelegram = "telegram"
	KindFlyXC    = "flyxc"
)

// ChatRelay forwards a chat message. Delivery is best effort; failures are
// logged, never returned.
type ChatRelay interface {
	SendChatMessage(ctx context.Context, from, text string)
}

// TrackingRelay forwards a tracking payload, encoded as JSON. Delivery is
// best effort.
type TrackingRelay interface {
	SendTrackingPayload(ctx context.Context, payload any)
}

// Deliverer sends one queued job payload.
type Deliverer interface {
	Deliver(ctx context.Context, payload []byte) error
}

// chatJob is the queued form of a chat message.
type chatJob struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// Nop discards everything.
type Nop struct{}

func (Nop) SendChatMessage(context.Context, string, string) {}
func (Nop) SendTrackingPayload(context.Context, any)        {}
