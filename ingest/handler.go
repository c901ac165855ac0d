package ingest

import (
	"context"

	"github.com/cyberorg/sparagliding-meshmap/meshpb"
)

// PacketHandler defines callbacks for every decoded payload kind.
// Embed NoOpHandler and override only the methods you need.
type PacketHandler interface {
	HandleTextMessage(ctx context.Context, env *Envelope, text string) error
	HandlePosition(ctx context.Context, env *Envelope, p *meshpb.Position) error
	HandleNodeInfo(ctx context.Context, env *Envelope, p *meshpb.User) error
	HandleWaypoint(ctx context.Context, env *Envelope, p *meshpb.Waypoint) error
	HandleNeighborInfo(ctx context.Context, env *Envelope, p *meshpb.NeighborInfo) error
	HandleTelemetry(ctx context.Context, env *Envelope, p *meshpb.Telemetry) error
	HandleTraceroute(ctx context.Context, env *Envelope, p *meshpb.RouteDiscovery) error
	HandleMapReport(ctx context.Context, env *Envelope, p *meshpb.MapReport) error
}

// NoOpHandler implements PacketHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleTextMessage(context.Context, *Envelope, string) error                { return nil }
func (NoOpHandler) HandlePosition(context.Context, *Envelope, *meshpb.Position) error         { return nil }
func (NoOpHandler) HandleNodeInfo(context.Context, *Envelope, *meshpb.User) error             { return nil }
func (NoOpHandler) HandleWaypoint(context.Context, *Envelope, *meshpb.Waypoint) error         { return nil }
func (NoOpHandler) HandleNeighborInfo(context.Context, *Envelope, *meshpb.NeighborInfo) error { return nil }
func (NoOpHandler) HandleTelemetry(context.Context, *Envelope, *meshpb.Telemetry) error       { return nil }
func (NoOpHandler) HandleTraceroute(context.Context, *Envelope, *meshpb.RouteDiscovery) error { return nil }
func (NoOpHandler) HandleMapReport(context.Context, *Envelope, *meshpb.MapReport) error       { return nil }

// Compile-time check that NoOpHandler implements PacketHandler.
var _ PacketHandler = NoOpHandler{}
