package meshpb

import (
	"errors"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

func marshal(t *testing.T, m proto.Message) []byte {
	t.Helper()
	b, err := proto.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func TestDecodeEnvelope(t *testing.T) {
	pos := &Position{LatitudeI: -337000000, LongitudeI: 1512000000, Altitude: -12, Time: 1700000000}
	pkt := &MeshPacket{From: 0x8d2abf01, To: BroadcastAddr, Id: 42, RxSnr: 6.25, RxRssi: -97}
	SetDecoded(pkt, &Data{Portnum: PortPosition, Payload: marshal(t, pos)})
	raw := marshal(t, &ServiceEnvelope{ChannelId: "LongFast", GatewayId: "!8d2abf01", Packet: pkt})

	got, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if got.GetChannelId() != "LongFast" || got.GetGatewayId() != "!8d2abf01" {
		t.Errorf("channel/gateway = %q/%q", got.GetChannelId(), got.GetGatewayId())
	}
	p := got.GetPacket()
	if p.GetFrom() != 0x8d2abf01 || p.GetTo() != BroadcastAddr || p.GetRxRssi() != -97 {
		t.Errorf("packet = %+v", p)
	}
	if IsEncrypted(p) || p.GetDecoded().GetPortnum() != PortPosition {
		t.Fatalf("decoded = %+v", p.GetDecoded())
	}

	var gotPos Position
	if err := proto.Unmarshal(p.GetDecoded().GetPayload(), &gotPos); err != nil {
		t.Fatalf("Position: %v", err)
	}
	if gotPos.LatitudeI != -337000000 || gotPos.LongitudeI != 1512000000 || gotPos.Altitude != -12 {
		t.Errorf("position = %+v", &gotPos)
	}
}

func TestDecodeEnvelopeKeepsNewerPacketFields(t *testing.T) {
	pkt := &MeshPacket{From: 1, Id: 2}
	SetEncrypted(pkt, []byte{1, 2, 3, 4})
	b := marshal(t, pkt)
	// relay_node from a newer firmware
	b = protowire.AppendTag(b, 19, protowire.VarintType)
	b = protowire.AppendVarint(b, 0x01)

	var raw []byte
	raw = protowire.AppendTag(raw, 1, protowire.BytesType)
	raw = protowire.AppendBytes(raw, b)

	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if !IsEncrypted(env.GetPacket()) {
		t.Error("packet should stay encrypted")
	}
	if v, ok := ReadLater(env.GetPacket()).Uint32(19); !ok || v != 1 {
		t.Errorf("relay node = %d, %v", v, ok)
	}
}

func TestDecodeEnvelopeTruncated(t *testing.T) {
	pkt := &MeshPacket{From: 1}
	SetEncrypted(pkt, []byte{1, 2, 3, 4})
	b := marshal(t, &ServiceEnvelope{ChannelId: "LongFast", Packet: pkt})
	if _, err := DecodeEnvelope(b[:len(b)-3]); err == nil {
		t.Fatal("expected error for truncated envelope")
	}
}

func TestDecodeDataStrict(t *testing.T) {
	base := marshal(t, &Data{Portnum: PortTextMessage, Payload: []byte("hi"), RequestId: 7})

	d, err := DecodeData(base)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if d.GetPortnum() != PortTextMessage || string(d.GetPayload()) != "hi" || d.GetRequestId() != 7 {
		t.Errorf("data = %+v", d)
	}

	withBitfield := protowire.AppendTag(append([]byte(nil), base...), DataBitfield, protowire.VarintType)
	withBitfield = protowire.AppendVarint(withBitfield, 1)
	if _, err := DecodeData(withBitfield); err != nil {
		t.Errorf("bitfield should be accepted: %v", err)
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{"unknown number", protowire.AppendVarint(protowire.AppendTag(append([]byte(nil), base...), 42, protowire.VarintType), 7)},
		{"bitfield as fixed32", protowire.AppendFixed32(protowire.AppendTag(append([]byte(nil), base...), DataBitfield, protowire.Fixed32Type), 1)},
		{"portnum as bytes", protowire.AppendBytes(protowire.AppendTag(nil, 1, protowire.BytesType), []byte{1})},
	}
	for _, tt := range tests {
		if _, err := DecodeData(tt.raw); !errors.Is(err, ErrUnknownField) {
			t.Errorf("%s: err = %v, want ErrUnknownField", tt.name, err)
		}
	}

	if _, err := DecodeData([]byte{0x0a, 0x05, 'x'}); err == nil {
		t.Error("malformed input should fail")
	}
}

func TestSetPayloadVariant(t *testing.T) {
	p := &MeshPacket{}
	SetEncrypted(p, []byte{9, 9})
	if !IsEncrypted(p) {
		t.Fatal("packet should be encrypted")
	}
	SetDecoded(p, &Data{Portnum: PortTextMessage})
	if IsEncrypted(p) || p.GetEncrypted() != nil {
		t.Error("SetDecoded should replace the ciphertext")
	}
	if IsEncrypted(&MeshPacket{}) {
		t.Error("empty packet is not encrypted")
	}
}

func TestReadLater(t *testing.T) {
	m := &User{LongName: "Launch Gate"}
	var raw []byte
	raw = protowire.AppendTag(raw, UserPublicKey, protowire.BytesType)
	raw = protowire.AppendBytes(raw, []byte{0xaa, 0xbb})
	raw = protowire.AppendTag(raw, UserIsUnmessagable, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 1)
	raw = protowire.AppendTag(raw, 30, protowire.Fixed32Type)
	raw = protowire.AppendFixed32(raw, math.Float32bits(2.5))
	b := append(marshal(t, m), raw...)

	var got User
	if err := proto.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	l := ReadLater(&got)
	if key := l.Bytes(UserPublicKey); len(key) != 2 || key[0] != 0xaa {
		t.Errorf("public key = %x", key)
	}
	if v, ok := l.Bool(UserIsUnmessagable); !ok || !v {
		t.Errorf("unmessagable = %v, %v", v, ok)
	}
	if f, ok := l.Float32(30); !ok || f != 2.5 {
		t.Errorf("float = %v, %v", f, ok)
	}
	if _, ok := l.Uint32(31); ok {
		t.Error("absent field should not be found")
	}
}

func TestReadLaterRepeated(t *testing.T) {
	rd := &RouteDiscovery{Route: []uint32{0x11, 0x22}}
	b := marshal(t, rd)

	var packed []byte
	for _, v := range []int32{24, -8} {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}
	b = protowire.AppendTag(b, RouteSnrTowards, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	// one more snr unpacked, then a packed route back
	b = protowire.AppendTag(b, RouteSnrTowards, protowire.VarintType)
	b = protowire.AppendVarint(b, 3)
	var back []byte
	back = protowire.AppendFixed32(back, 0x33)
	back = protowire.AppendFixed32(back, 0x44)
	b = protowire.AppendTag(b, RouteBack, protowire.BytesType)
	b = protowire.AppendBytes(b, back)

	var got RouteDiscovery
	if err := proto.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.GetRoute()) != 2 {
		t.Errorf("Route = %v", got.GetRoute())
	}
	l := ReadLater(&got)
	snr := l.Int32s(RouteSnrTowards)
	if len(snr) != 3 || snr[0] != 24 || snr[1] != -8 || snr[2] != 3 {
		t.Errorf("SnrTowards = %v, want [24 -8 3]", snr)
	}
	rb := l.Fixed32s(RouteBack)
	if len(rb) != 2 || rb[0] != 0x33 || rb[1] != 0x44 {
		t.Errorf("RouteBack = %v", rb)
	}
	if l.Int32s(RouteSnrBack) != nil {
		t.Error("SnrBack should be empty")
	}
}

func TestPortNumString(t *testing.T) {
	if PortTelemetry.String() != "TELEMETRY_APP" {
		t.Errorf("String = %q", PortTelemetry.String())
	}
}
