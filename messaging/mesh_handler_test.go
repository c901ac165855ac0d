package messaging

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	pb "github.com/lmatte7/gomesh/github.com/meshtastic/gomeshproto"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/cyberorg/sparagliding-meshmap/config"
	"github.com/cyberorg/sparagliding-meshmap/ingest"
	"github.com/cyberorg/sparagliding-meshmap/meshpb"
	"github.com/cyberorg/sparagliding-meshmap/relay"
	"github.com/cyberorg/sparagliding-meshmap/store"
	"github.com/cyberorg/sparagliding-meshmap/telemetry"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type chatCall struct{ from, text string }

type fakeRelay struct {
	mu       sync.Mutex
	chats    []chatCall
	tracking []any
}

func (r *fakeRelay) SendChatMessage(_ context.Context, from, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatCall{from, text})
}

func (r *fakeRelay) SendTrackingPayload(_ context.Context, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracking = append(r.tracking, payload)
}

type countingEmitter struct {
	nodes, messages, positions, metrics int
}

func (e *countingEmitter) EmitNodeUpdated(*store.Node)        { e.nodes++ }
func (e *countingEmitter) EmitTextMessage(*store.TextMessage) { e.messages++ }
func (e *countingEmitter) EmitPosition(*store.Position)       { e.positions++ }
func (e *countingEmitter) EmitTelemetry(*telemetry.Metric)    { e.metrics++ }

const (
	nodeA   = 0x8d2abf01
	nodeB   = 0x0badc0de
	gateway = "!8d2abf01"
)

func envelope(from, to, id uint32, port meshpb.PortNum, payload []byte) *ingest.Envelope {
	pkt := &meshpb.MeshPacket{From: from, To: to, Id: id, RxTime: 1700000000, RxSnr: 5.5, RxRssi: -90, HopLimit: 3}
	meshpb.SetDecoded(pkt, &meshpb.Data{Portnum: port, Payload: payload})
	return &ingest.Envelope{
		ServiceEnvelope: &meshpb.ServiceEnvelope{
			ChannelId: "LongFast",
			GatewayId: gateway,
			Packet:    pkt,
		},
		Topic:      "msh/EU_868/2/e/LongFast/" + gateway,
		ReceivedAt: time.Now().UTC(),
	}
}

func newHandler(t *testing.T) (*MeshHandler, *store.DB, *fakeRelay, *countingEmitter) {
	t.Helper()
	db := testDB(t)
	r := &fakeRelay{}
	e := &countingEmitter{}
	return NewMeshHandler(db, 15*time.Second, r, r, e), db, r, e
}

// withLater appends fields newer than the generated schema to m's unknown bytes.
func withLater[M interface{ ProtoReflect() protoreflect.Message }](m M, raw []byte) M {
	r := m.ProtoReflect()
	r.SetUnknown(append(r.GetUnknown(), raw...))
	return m
}

func TestPositionMergesNodeAndDedupsHistory(t *testing.T) {
	h, db, r, e := newHandler(t)
	ctx := context.Background()

	if err := h.HandleNodeInfo(ctx, envelope(nodeA, meshpb.BroadcastAddr, 1, meshpb.PortNodeInfo, nil), &meshpb.User{LongName: "Ridge Top", ShortName: "RT"}); err != nil {
		t.Fatalf("HandleNodeInfo: %v", err)
	}

	pos := &meshpb.Position{LatitudeI: -337000000, LongitudeI: 200000000, Altitude: 850, GroundSpeed: 12, Time: 1700000000}
	for i := 0; i < 2; i++ {
		if err := h.HandlePosition(ctx, envelope(nodeA, meshpb.BroadcastAddr, uint32(10+i), meshpb.PortPosition, nil), pos); err != nil {
			t.Fatalf("HandlePosition: %v", err)
		}
	}

	n, err := db.GetNode(ctx, nodeA)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n.Latitude == nil || *n.Latitude != -33.7 || *n.Longitude != 20 {
		t.Errorf("node position = %v/%v", n.Latitude, n.Longitude)
	}
	if n.LongName == nil || *n.LongName != "Ridge Top" {
		t.Error("position merge should keep identity fields")
	}

	history, err := db.ListPositions(ctx, nodeA, time.Time{}, 10)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history = %d rows, want 1", len(history))
	}
	if e.positions != 1 {
		t.Errorf("position events = %d, want 1", e.positions)
	}

	if len(r.tracking) != 1 {
		t.Fatalf("tracking payloads = %d, want 1", len(r.tracking))
	}
	tp := r.tracking[0].(relay.TrackingPoint)
	if tp.ID != "!8d2abf01" || tp.Name != "RT" || tp.Time != 1700000000000 {
		t.Errorf("tracking point = %+v", tp)
	}
	if tp.Speed == nil || *tp.Speed != 12 {
		t.Errorf("speed = %v", tp.Speed)
	}
}

func TestNodeInfoReadsKeyAndMessagingFlag(t *testing.T) {
	h, db, _, _ := newHandler(t)
	ctx := context.Background()

	var raw []byte
	raw = protowire.AppendTag(raw, meshpb.UserPublicKey, protowire.BytesType)
	raw = protowire.AppendBytes(raw, []byte{0xde, 0xad, 0xbe, 0xef})
	raw = protowire.AppendTag(raw, meshpb.UserIsUnmessagable, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 1)
	user := withLater(&meshpb.User{Id: "!8d2abf01", LongName: "Ridge Top", ShortName: "RT"}, raw)

	if err := h.HandleNodeInfo(ctx, envelope(nodeA, meshpb.BroadcastAddr, 1, meshpb.PortNodeInfo, nil), user); err != nil {
		t.Fatalf("HandleNodeInfo: %v", err)
	}
	n, err := db.GetNode(ctx, nodeA)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n.PublicKey == nil || *n.PublicKey != "3q2+7w==" {
		t.Errorf("public key = %v", n.PublicKey)
	}
	if n.IsUnmessagable == nil || !*n.IsUnmessagable {
		t.Errorf("unmessagable = %v", n.IsUnmessagable)
	}
}

func TestPositionWithoutCoordinatesIgnored(t *testing.T) {
	h, db, r, _ := newHandler(t)
	ctx := context.Background()
	if err := h.HandlePosition(ctx, envelope(nodeA, meshpb.BroadcastAddr, 1, meshpb.PortPosition, nil), &meshpb.Position{Time: 5}); err != nil {
		t.Fatalf("HandlePosition: %v", err)
	}
	if _, err := db.GetNode(ctx, nodeA); err == nil {
		t.Error("node should not be created without coordinates")
	}
	if len(r.tracking) != 0 {
		t.Error("nothing should be relayed")
	}
}

func TestBroadcastTextRelayedOnce(t *testing.T) {
	h, db, r, e := newHandler(t)
	ctx := context.Background()

	env := envelope(nodeA, meshpb.BroadcastAddr, 77, meshpb.PortTextMessage, nil)
	if err := h.HandleTextMessage(ctx, env, "thermals <good> today"); err != nil {
		t.Fatalf("HandleTextMessage: %v", err)
	}
	// same packet forwarded by a second gateway
	again := envelope(nodeA, meshpb.BroadcastAddr, 77, meshpb.PortTextMessage, nil)
	again.GatewayId = "!11112222"
	if err := h.HandleTextMessage(ctx, again, "thermals <good> today"); err != nil {
		t.Fatalf("HandleTextMessage: %v", err)
	}
	// direct message
	if err := h.HandleTextMessage(ctx, envelope(nodeA, nodeB, 78, meshpb.PortTextMessage, nil), "psst"); err != nil {
		t.Fatalf("HandleTextMessage: %v", err)
	}

	msgs, err := db.ListTextMessages(ctx, time.Time{}, nil, 10)
	if err != nil {
		t.Fatalf("ListTextMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("messages = %d, want 2", len(msgs))
	}
	if e.messages != 2 {
		t.Errorf("message events = %d, want 2", e.messages)
	}
	if len(r.chats) != 1 {
		t.Fatalf("chat relays = %d, want 1", len(r.chats))
	}
	if r.chats[0].from != "!8d2abf01" || r.chats[0].text != "thermals <good> today" {
		t.Errorf("chat = %+v", r.chats[0])
	}
}

func TestTelemetryDedupAndDeviceMerge(t *testing.T) {
	h, db, _, e := newHandler(t)
	ctx := context.Background()

	tel := &meshpb.Telemetry{Variant: &pb.Telemetry_DeviceMetrics{DeviceMetrics: &meshpb.DeviceMetrics{BatteryLevel: 87, Voltage: 4.0}}}
	for i := 0; i < 2; i++ {
		if err := h.HandleTelemetry(ctx, envelope(nodeA, meshpb.BroadcastAddr, uint32(i), meshpb.PortTelemetry, nil), tel); err != nil {
			t.Fatalf("HandleTelemetry: %v", err)
		}
	}
	changed := &meshpb.Telemetry{Variant: &pb.Telemetry_DeviceMetrics{DeviceMetrics: &meshpb.DeviceMetrics{BatteryLevel: 86, Voltage: 4.0}}}
	if err := h.HandleTelemetry(ctx, envelope(nodeA, meshpb.BroadcastAddr, 3, meshpb.PortTelemetry, nil), changed); err != nil {
		t.Fatalf("HandleTelemetry: %v", err)
	}

	rows, err := db.ListMetrics(ctx, telemetry.FamilyDevice, nodeA, time.Time{}, 10)
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("device metrics = %d rows, want 2", len(rows))
	}
	if e.metrics != 2 {
		t.Errorf("metric events = %d, want 2", e.metrics)
	}

	n, err := db.GetNode(ctx, nodeA)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n.BatteryLevel == nil || *n.BatteryLevel != 86 {
		t.Errorf("battery = %v, want 86", n.BatteryLevel)
	}

	// a family without device metrics does not touch the node
	env := &meshpb.Telemetry{Variant: &pb.Telemetry_EnvironmentMetrics{EnvironmentMetrics: &meshpb.EnvironmentMetrics{Temperature: 18.5}}}
	if err := h.HandleTelemetry(ctx, envelope(nodeB, meshpb.BroadcastAddr, 4, meshpb.PortTelemetry, nil), env); err != nil {
		t.Fatalf("HandleTelemetry: %v", err)
	}
	if _, err := db.GetNode(ctx, nodeB); err == nil {
		t.Error("environment metrics should not create a node")
	}
	rows, _ = db.ListMetrics(ctx, telemetry.FamilyEnvironment, nodeB, time.Time{}, 10)
	if len(rows) != 1 || rows[0].Values["temperature"] != 18.5 {
		t.Errorf("environment rows = %+v", rows)
	}

	// unsupported variants are skipped
	if err := h.HandleTelemetry(ctx, envelope(nodeB, meshpb.BroadcastAddr, 5, meshpb.PortTelemetry, nil), &meshpb.Telemetry{Time: 9}); err != nil {
		t.Errorf("empty telemetry: %v", err)
	}
}

func TestNeighbourInfoWaypointTracerouteMapReport(t *testing.T) {
	h, db, _, _ := newHandler(t)
	ctx := context.Background()

	ni := &meshpb.NeighborInfo{NodeId: nodeA, NodeBroadcastIntervalSecs: 900, Neighbors: []*meshpb.Neighbor{
		{NodeId: nodeB, Snr: 6.5},
		{NodeId: 0x01020304, Snr: -3},
	}}
	if err := h.HandleNeighborInfo(ctx, envelope(nodeA, meshpb.BroadcastAddr, 1, meshpb.PortNeighborInfo, nil), ni); err != nil {
		t.Fatalf("HandleNeighborInfo: %v", err)
	}
	edges, err := db.ListNeighbourEdges(ctx, nodeA)
	if err != nil {
		t.Fatalf("ListNeighbourEdges: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("edges = %d, want 2", len(edges))
	}
	n, _ := db.GetNode(ctx, nodeA)
	if n == nil || n.NeighboursUpdatedAt == nil || n.NeighbourBroadcastIntervalSecs == nil || *n.NeighbourBroadcastIntervalSecs != 900 {
		t.Errorf("node neighbour fields = %+v", n)
	}

	wp := &meshpb.Waypoint{Id: 42, Name: "LZ", LatitudeI: -337100000, LongitudeI: 1512100000}
	if err := h.HandleWaypoint(ctx, envelope(nodeA, meshpb.BroadcastAddr, 2, meshpb.PortWaypoint, nil), wp); err != nil {
		t.Fatalf("HandleWaypoint: %v", err)
	}
	wp.Name = "Landing"
	if err := h.HandleWaypoint(ctx, envelope(nodeA, meshpb.BroadcastAddr, 3, meshpb.PortWaypoint, nil), wp); err != nil {
		t.Fatalf("HandleWaypoint: %v", err)
	}
	wps, err := db.ListWaypoints(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListWaypoints: %v", err)
	}
	if len(wps) != 1 || wps[0].Name != "Landing" {
		t.Errorf("waypoints = %+v", wps)
	}

	var snr []byte
	snr = protowire.AppendVarint(snr, 24)
	snr = protowire.AppendVarint(snr, 12)
	tr := withLater(&meshpb.RouteDiscovery{Route: []uint32{nodeB}},
		protowire.AppendBytes(protowire.AppendTag(nil, meshpb.RouteSnrTowards, protowire.BytesType), snr))
	if err := h.HandleTraceroute(ctx, envelope(nodeA, nodeB, 4, meshpb.PortTraceroute, nil), tr); err != nil {
		t.Fatalf("HandleTraceroute: %v", err)
	}
	trs, err := db.ListTraceroutes(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("ListTraceroutes: %v", err)
	}
	if len(trs) != 1 || len(trs[0].Route) != 1 || trs[0].Route[0] != nodeB {
		t.Fatalf("traceroutes = %+v", trs)
	}
	if got := trs[0].SnrTowards; len(got) != 2 || got[0] != 24 || got[1] != 12 {
		t.Errorf("snr towards = %v, want [24 12]", got)
	}

	mr := &meshpb.MapReport{LongName: "Ridge Top", FirmwareVersion: "2.5.6", Region: 3, ModemPreset: 0, LatitudeI: -337000000, LongitudeI: 1512000000}
	if err := h.HandleMapReport(ctx, envelope(nodeA, meshpb.BroadcastAddr, 5, meshpb.PortMapReport, nil), mr); err != nil {
		t.Fatalf("HandleMapReport: %v", err)
	}
	reports, err := db.ListMapReports(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("ListMapReports: %v", err)
	}
	if len(reports) != 1 || reports[0].FirmwareVersion != "2.5.6" {
		t.Errorf("map reports = %+v", reports)
	}
	n, _ = db.GetNode(ctx, nodeA)
	if n.FirmwareVersion == nil || *n.FirmwareVersion != "2.5.6" || n.Region == nil || *n.Region != 3 {
		t.Errorf("node after map report = %+v", n.NodeFields)
	}
	if n.LongName == nil || *n.LongName != "Ridge Top" {
		t.Error("map report should set the long name")
	}
}

func TestEnvelopeAudit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	audit := EnvelopeAudit{DB: db}

	decoded := envelope(nodeA, meshpb.BroadcastAddr, 1, meshpb.PortTextMessage, []byte("hi"))
	if err := audit.SaveEnvelope(ctx, decoded, []byte{1, 2, 3}); err != nil {
		t.Fatalf("SaveEnvelope: %v", err)
	}
	encrypted := envelope(nodeA, meshpb.BroadcastAddr, 2, 0, nil)
	meshpb.SetEncrypted(encrypted.Packet, []byte{9, 9})
	if err := audit.SaveEnvelope(ctx, encrypted, []byte{4, 5}); err != nil {
		t.Fatalf("SaveEnvelope: %v", err)
	}

	rows, err := db.ListServiceEnvelopes(ctx, nil, 10)
	if err != nil {
		t.Fatalf("ListServiceEnvelopes: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// newest first
	if rows[0].Decrypted || rows[0].PortNum != nil {
		t.Errorf("encrypted row = %+v", rows[0])
	}
	if !rows[1].Decrypted || rows[1].PortNum == nil || *rows[1].PortNum != int64(meshpb.PortTextMessage) {
		t.Errorf("decoded row = %+v", rows[1])
	}
	if string(rows[1].Payload) != string([]byte{1, 2, 3}) || rows[1].Topic != decoded.Topic {
		t.Errorf("decoded row payload/topic = %v %q", rows[1].Payload, rows[1].Topic)
	}
}
