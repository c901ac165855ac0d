// Package meshpb binds the generated Meshtastic protobuf types used by the
// pipeline and decodes them.
//
// Envelopes and payloads decode leniently: fields the generated schema does
// not know are kept as unknown bytes. A decrypted Data message is decoded
// strictly, since unknown bytes there mean the key was wrong.
package meshpb

import (
	"errors"
	"fmt"

	pb "github.com/lmatte7/gomesh/github.com/meshtastic/gomeshproto"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

type (
	ServiceEnvelope    = pb.ServiceEnvelope
	MeshPacket         = pb.MeshPacket
	Data               = pb.Data
	PortNum            = pb.PortNum
	Position           = pb.Position
	User               = pb.User
	Waypoint           = pb.Waypoint
	NeighborInfo       = pb.NeighborInfo
	Neighbor           = pb.Neighbor
	RouteDiscovery     = pb.RouteDiscovery
	MapReport          = pb.MapReport
	Telemetry          = pb.Telemetry
	DeviceMetrics      = pb.DeviceMetrics
	EnvironmentMetrics = pb.EnvironmentMetrics
	PowerMetrics       = pb.PowerMetrics
	AirQualityMetrics  = pb.AirQualityMetrics
)

const (
	PortUnknown      = pb.PortNum_UNKNOWN_APP
	PortTextMessage  = pb.PortNum_TEXT_MESSAGE_APP
	PortPosition     = pb.PortNum_POSITION_APP
	PortNodeInfo     = pb.PortNum_NODEINFO_APP
	PortRouting      = pb.PortNum_ROUTING_APP
	PortWaypoint     = pb.PortNum_WAYPOINT_APP
	PortTelemetry    = pb.PortNum_TELEMETRY_APP
	PortTraceroute   = pb.PortNum_TRACEROUTE_APP
	PortNeighborInfo = pb.PortNum_NEIGHBORINFO_APP
	PortMapReport    = pb.PortNum_MAP_REPORT_APP
)

// BroadcastAddr is the destination used for packets addressed to every node.
const BroadcastAddr uint32 = 0xffffffff

// ErrUnknownField is returned by DecodeData when the input carries bytes the
// Data schema does not account for.
var ErrUnknownField = errors.New("meshpb: unrecognized field")

// dataLater lists Data fields that postdate the generated schema, with the
// wire type each must use.
var dataLater = map[protowire.Number]protowire.Type{
	DataBitfield: protowire.VarintType,
}

// DecodeEnvelope parses a gateway envelope.
func DecodeEnvelope(b []byte) (*ServiceEnvelope, error) {
	env := &ServiceEnvelope{}
	if err := proto.Unmarshal(b, env); err != nil {
		return nil, err
	}
	return env, nil
}

// DecodeData parses a Data message and fails with ErrUnknownField if any
// unknown bytes are left over.
func DecodeData(b []byte) (*Data, error) {
	d := &Data{}
	if err := proto.Unmarshal(b, d); err != nil {
		return nil, err
	}
	unknown := d.ProtoReflect().GetUnknown()
	for len(unknown) > 0 {
		num, typ, n := protowire.ConsumeField(unknown)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrUnknownField, protowire.ParseError(n))
		}
		if want, ok := dataLater[num]; !ok || want != typ {
			return nil, fmt.Errorf("%w: Data field %d (wire type %d)", ErrUnknownField, num, typ)
		}
		unknown = unknown[n:]
	}
	return d, nil
}

// IsEncrypted reports whether the packet still carries only ciphertext.
func IsEncrypted(p *MeshPacket) bool {
	return p.GetDecoded() == nil && len(p.GetEncrypted()) > 0
}

// SetDecoded installs a decoded payload in place of the ciphertext.
func SetDecoded(p *MeshPacket, d *Data) {
	p.PayloadVariant = &pb.MeshPacket_Decoded{Decoded: d}
}

// SetEncrypted installs ciphertext in place of any decoded payload.
func SetEncrypted(p *MeshPacket, b []byte) {
	p.PayloadVariant = &pb.MeshPacket_Encrypted{Encrypted: b}
}
