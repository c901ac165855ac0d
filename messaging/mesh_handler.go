package messaging

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/dedup"
	"github.com/cyberorg/sparagliding-meshmap/geo"
	"github.com/cyberorg/sparagliding-meshmap/ingest"
	"github.com/cyberorg/sparagliding-meshmap/meshid"
	"github.com/cyberorg/sparagliding-meshmap/meshpb"
	"github.com/cyberorg/sparagliding-meshmap/relay"
	"github.com/cyberorg/sparagliding-meshmap/store"
	"github.com/cyberorg/sparagliding-meshmap/telemetry"
)

// Emitter is notified of facts the handler wrote.
type Emitter interface {
	EmitNodeUpdated(n *store.Node)
	EmitTextMessage(m *store.TextMessage)
	EmitPosition(p *store.Position)
	EmitTelemetry(m *telemetry.Metric)
}

type nopEmitter struct{}

func (nopEmitter) EmitNodeUpdated(*store.Node)        {}
func (nopEmitter) EmitTextMessage(*store.TextMessage) {}
func (nopEmitter) EmitPosition(*store.Position)       {}
func (nopEmitter) EmitTelemetry(*telemetry.Metric)    {}

// MeshHandler persists routed mesh payloads and triggers the relays.
type MeshHandler struct {
	db        *store.DB
	metrics   *dedup.Gate[*telemetry.Metric]
	positions *dedup.Gate[*store.Position]
	chat      relay.ChatRelay
	tracking  relay.TrackingRelay
	emit      Emitter
}

// NewMeshHandler creates a handler. Nil relays and emitter are replaced by
// no-ops.
func NewMeshHandler(db *store.DB, window time.Duration, chat relay.ChatRelay, tracking relay.TrackingRelay, emit Emitter) *MeshHandler {
	if chat == nil {
		chat = relay.Nop{}
	}
	if tracking == nil {
		tracking = relay.Nop{}
	}
	if emit == nil {
		emit = nopEmitter{}
	}
	return &MeshHandler{
		db:        db,
		metrics:   dedup.NewGate[*telemetry.Metric](store.MetricRepository{DB: db}, telemetry.Same, window),
		positions: dedup.NewGate[*store.Position](store.PositionRepository{DB: db}, store.SamePosition, window),
		chat:      chat,
		tracking:  tracking,
		emit:      emit,
	}
}

var _ ingest.PacketHandler = (*MeshHandler)(nil)

func (h *MeshHandler) HandleTextMessage(ctx context.Context, env *ingest.Envelope, text string) error {
	pkt := env.Packet
	msg := &store.TextMessage{
		From:      pkt.From,
		To:        pkt.To,
		PacketID:  pkt.Id,
		Channel:   pkt.Channel,
		ChannelID: env.ChannelId,
		GatewayID: env.GatewayId,
		Text:      text,
		RxTime:    pkt.RxTime,
		RxSnr:     pkt.RxSnr,
		RxRssi:    pkt.RxRssi,
		HopLimit:  pkt.HopLimit,
		CreatedAt: env.ReceivedAt,
	}
	created, err := h.db.SaveTextMessage(ctx, msg)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	h.emit.EmitTextMessage(msg)

	if meshid.NodeID(pkt.To).IsBroadcast() {
		h.chat.SendChatMessage(ctx, h.nodeName(ctx, pkt.From), text)
	}
	return nil
}

func (h *MeshHandler) nodeName(ctx context.Context, nodeID uint32) string {
	n, err := h.db.GetNode(ctx, nodeID)
	if err != nil {
		return meshid.NodeID(nodeID).String()
	}
	return n.Name()
}

func (h *MeshHandler) HandlePosition(ctx context.Context, env *ingest.Envelope, p *meshpb.Position) error {
	pkt := env.Packet
	pt, ok := geo.FixedPoint(p.LatitudeI, p.LongitudeI)
	if !ok {
		return nil
	}
	at := env.ReceivedAt
	lat, lon := pt.Lat(), pt.Lon()
	alt := nonZero(int64(p.Altitude))

	changes := store.NodeFields{
		Latitude:          &lat,
		Longitude:         &lon,
		Altitude:          alt,
		PositionUpdatedAt: &at,
	}
	if p.PrecisionBits > 0 {
		changes.PositionPrecision = int64Of(int64(p.PrecisionBits))
	}
	node, err := h.db.MergeNode(ctx, pkt.From, changes, at)
	if err != nil {
		return err
	}
	h.emit.EmitNodeUpdated(node)

	pos := &store.Position{
		NodeID:       pkt.From,
		To:           pkt.To,
		PacketID:     pkt.Id,
		ChannelID:    env.ChannelId,
		GatewayID:    env.GatewayId,
		Latitude:     lat,
		Longitude:    lon,
		Altitude:     alt,
		GroundSpeed:  nonZero(int64(p.GroundSpeed)),
		GroundTrack:  nonZero(int64(p.GroundTrack)),
		PositionTime: p.Time,
		CreatedAt:    at,
	}
	pos.SatsInView = nonZero(int64(p.SatsInView))
	pos.PrecisionBits = nonZero(int64(p.PrecisionBits))
	saved, err := h.positions.SaveIfChanged(ctx, pos, dedup.Identity{NodeID: pkt.From, Family: store.PositionFamily})
	if err != nil {
		return err
	}
	if !saved {
		return nil
	}
	h.emit.EmitPosition(pos)

	fixTime := at
	if p.Time > 0 {
		fixTime = time.Unix(int64(p.Time), 0)
	}
	h.tracking.SendTrackingPayload(ctx, relay.TrackingPoint{
		ID:        node.NodeIDHex,
		Name:      node.Name(),
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
		Speed:     pos.GroundSpeed,
		Time:      fixTime.UnixMilli(),
	})
	return nil
}

func (h *MeshHandler) HandleNodeInfo(ctx context.Context, env *ingest.Envelope, p *meshpb.User) error {
	changes := store.NodeFields{
		LongName:      &p.LongName,
		ShortName:     &p.ShortName,
		HardwareModel: int64Of(int64(p.HwModel)),
		Role:          int64Of(int64(p.Role)),
		IsLicensed:    &p.IsLicensed,
	}
	if len(p.Macaddr) > 0 {
		mac := net.HardwareAddr(p.Macaddr).String()
		changes.MacAddress = &mac
	}
	later := meshpb.ReadLater(p)
	if v, ok := later.Bool(meshpb.UserIsUnmessagable); ok {
		changes.IsUnmessagable = &v
	}
	if pub := later.Bytes(meshpb.UserPublicKey); len(pub) > 0 {
		key := base64.StdEncoding.EncodeToString(pub)
		changes.PublicKey = &key
	}
	node, err := h.db.MergeNode(ctx, env.Packet.From, changes, env.ReceivedAt)
	if err != nil {
		return err
	}
	h.emit.EmitNodeUpdated(node)
	return nil
}

func (h *MeshHandler) HandleWaypoint(ctx context.Context, env *ingest.Envelope, p *meshpb.Waypoint) error {
	pkt := env.Packet
	w := &store.Waypoint{
		WaypointID:  p.Id,
		From:        pkt.From,
		To:          pkt.To,
		ChannelID:   env.ChannelId,
		GatewayID:   env.GatewayId,
		Expire:      p.Expire,
		LockedTo:    p.LockedTo,
		Name:        p.Name,
		Description: p.Description,
		Icon:        p.Icon,
		CreatedAt:   env.ReceivedAt,
		UpdatedAt:   env.ReceivedAt,
	}
	if pt, ok := geo.FixedPoint(p.LatitudeI, p.LongitudeI); ok {
		lat, lon := pt.Lat(), pt.Lon()
		w.Latitude, w.Longitude = &lat, &lon
	}
	return h.db.UpsertWaypoint(ctx, w)
}

func (h *MeshHandler) HandleNeighborInfo(ctx context.Context, env *ingest.Envelope, p *meshpb.NeighborInfo) error {
	from, at := env.Packet.From, env.ReceivedAt
	edges := make([]*store.NeighbourEdge, 0, len(p.Neighbors))
	for _, n := range p.Neighbors {
		edges = append(edges, &store.NeighbourEdge{
			NodeID:                from,
			NeighbourNodeID:       n.NodeId,
			Snr:                   n.Snr,
			LastRxTime:            n.LastRxTime,
			BroadcastIntervalSecs: n.NodeBroadcastIntervalSecs,
			CreatedAt:             at,
			UpdatedAt:             at,
		})
	}
	if err := h.db.UpsertNeighbourEdges(ctx, edges); err != nil {
		return err
	}

	changes := store.NodeFields{NeighboursUpdatedAt: &at}
	if p.NodeBroadcastIntervalSecs > 0 {
		changes.NeighbourBroadcastIntervalSecs = int64Of(int64(p.NodeBroadcastIntervalSecs))
	}
	node, err := h.db.MergeNode(ctx, from, changes, at)
	if err != nil {
		return err
	}
	h.emit.EmitNodeUpdated(node)
	return nil
}

func (h *MeshHandler) HandleTelemetry(ctx context.Context, env *ingest.Envelope, p *meshpb.Telemetry) error {
	from, at := env.Packet.From, env.ReceivedAt
	m := telemetry.FromTelemetry(from, p, at)
	if m == nil {
		return nil
	}

	if m.Family == telemetry.FamilyDevice {
		node, err := h.db.MergeNode(ctx, from, deviceFields(m), at)
		if err != nil {
			return err
		}
		h.emit.EmitNodeUpdated(node)
	}

	saved, err := h.metrics.SaveIfChanged(ctx, m, dedup.Identity{NodeID: from, Family: string(m.Family)})
	if err != nil {
		return fmt.Errorf("%s metrics: %w", m.Family, err)
	}
	if saved {
		h.emit.EmitTelemetry(m)
	}
	return nil
}

// deviceFields copies the reported device metrics onto the node.
func deviceFields(m *telemetry.Metric) store.NodeFields {
	var f store.NodeFields
	if v, ok := m.Values["battery_level"]; ok {
		f.BatteryLevel = int64Of(int64(v))
	}
	if v, ok := m.Values["uptime_seconds"]; ok {
		f.UptimeSeconds = int64Of(int64(v))
	}
	f.Voltage = value(m, "voltage")
	f.ChannelUtilization = value(m, "channel_utilization")
	f.AirUtilTx = value(m, "air_util_tx")
	return f
}

func value(m *telemetry.Metric, name string) *float64 {
	v, ok := m.Values[name]
	if !ok {
		return nil
	}
	return &v
}

func (h *MeshHandler) HandleTraceroute(ctx context.Context, env *ingest.Envelope, p *meshpb.RouteDiscovery) error {
	pkt, data := env.Packet, env.Decoded()
	later := meshpb.ReadLater(p)
	return h.db.SaveTraceroute(ctx, &store.Traceroute{
		From:         pkt.From,
		To:           pkt.To,
		PacketID:     pkt.Id,
		RequestID:    data.GetRequestId(),
		WantResponse: data.GetWantResponse(),
		ChannelID:    env.ChannelId,
		GatewayID:    env.GatewayId,
		Route:        p.Route,
		RouteBack:    later.Fixed32s(meshpb.RouteBack),
		SnrTowards:   later.Int32s(meshpb.RouteSnrTowards),
		SnrBack:      later.Int32s(meshpb.RouteSnrBack),
		RxTime:       pkt.RxTime,
		CreatedAt:    env.ReceivedAt,
	})
}

func (h *MeshHandler) HandleMapReport(ctx context.Context, env *ingest.Envelope, p *meshpb.MapReport) error {
	from, at := env.Packet.From, env.ReceivedAt
	r := &store.MapReport{
		NodeID:              from,
		LongName:            p.LongName,
		ShortName:           p.ShortName,
		Role:                int32(p.Role),
		HardwareModel:       int32(p.HwModel),
		FirmwareVersion:     p.FirmwareVersion,
		Region:              int32(p.Region),
		ModemPreset:         int32(p.ModemPreset),
		HasDefaultChannel:   p.HasDefaultChannel,
		Altitude:            p.Altitude,
		PositionPrecision:   p.PositionPrecision,
		NumOnlineLocalNodes: p.NumOnlineLocalNodes,
		CreatedAt:           at,
	}
	pt, hasPos := geo.FixedPoint(p.LatitudeI, p.LongitudeI)
	if hasPos {
		lat, lon := pt.Lat(), pt.Lon()
		r.Latitude, r.Longitude = &lat, &lon
	}
	if err := h.db.SaveMapReport(ctx, r); err != nil {
		return err
	}

	changes := store.NodeFields{
		Role:                int64Of(int64(p.Role)),
		HardwareModel:       int64Of(int64(p.HwModel)),
		FirmwareVersion:     &p.FirmwareVersion,
		Region:              int64Of(int64(p.Region)),
		ModemPreset:         int64Of(int64(p.ModemPreset)),
		HasDefaultChannel:   &p.HasDefaultChannel,
		NumOnlineLocalNodes: int64Of(int64(p.NumOnlineLocalNodes)),
		PositionPrecision:   int64Of(int64(p.PositionPrecision)),
	}
	if p.LongName != "" {
		changes.LongName = &p.LongName
	}
	if p.ShortName != "" {
		changes.ShortName = &p.ShortName
	}
	if hasPos {
		changes.Latitude, changes.Longitude = r.Latitude, r.Longitude
		changes.Altitude = int64Of(int64(p.Altitude))
		changes.PositionUpdatedAt = &at
	}
	node, err := h.db.MergeNode(ctx, from, changes, at)
	if err != nil {
		return err
	}
	h.emit.EmitNodeUpdated(node)
	return nil
}

func int64Of(v int64) *int64 { return &v }

// nonZero maps a wire field without presence to nil when unset.
func nonZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
