package ingest

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/cyberorg/sparagliding-meshmap/meshpb"
)

// Router dispatches decoded envelopes to a PacketHandler by port number.
type Router struct {
	handler PacketHandler
}

func NewRouter(handler PacketHandler) *Router {
	return &Router{handler: handler}
}

// Route calls exactly one handler method for a known port. Unknown ports and
// envelopes without a decoded payload are ignored.
func (r *Router) Route(ctx context.Context, env *Envelope) error {
	data := env.Decoded()
	if data == nil {
		return nil
	}

	switch data.GetPortnum() {
	case meshpb.PortTextMessage:
		return r.handler.HandleTextMessage(ctx, env, string(data.GetPayload()))
	case meshpb.PortPosition:
		return decodeAndCall(ctx, r.handler.HandlePosition, env)
	case meshpb.PortNodeInfo:
		return decodeAndCall(ctx, r.handler.HandleNodeInfo, env)
	case meshpb.PortWaypoint:
		return decodeAndCall(ctx, r.handler.HandleWaypoint, env)
	case meshpb.PortNeighborInfo:
		return decodeAndCall(ctx, r.handler.HandleNeighborInfo, env)
	case meshpb.PortTelemetry:
		return decodeAndCall(ctx, r.handler.HandleTelemetry, env)
	case meshpb.PortTraceroute:
		return decodeAndCall(ctx, r.handler.HandleTraceroute, env)
	case meshpb.PortMapReport:
		return decodeAndCall(ctx, r.handler.HandleMapReport, env)
	default:
		return nil
	}
}

type payload[T any] interface {
	*T
	proto.Message
}

// decodeAndCall unmarshals the payload and calls the handler method.
func decodeAndCall[T any, P payload[T]](ctx context.Context, fn func(context.Context, *Envelope, *T) error, env *Envelope) error {
	data := env.Decoded()
	p := P(new(T))
	if err := proto.Unmarshal(data.GetPayload(), p); err != nil {
		return fmt.Errorf("decode %s from !%08x: %w", data.GetPortnum(), env.Packet.GetFrom(), err)
	}
	return fn(ctx, env, p)
}
