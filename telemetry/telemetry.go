// Package telemetry turns decoded telemetry payloads into metric records.
//
// A Metric carries only the fields the node actually reported; absent
// fields stay absent rather than reading as zero.
package telemetry

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/cyberorg/sparagliding-meshmap/meshpb"
)

// Family names a metric group. Each family is stored in its own table.
type Family string

const (
	FamilyDevice      Family = "device"
	FamilyEnvironment Family = "environment"
	FamilyPower       Family = "power"
	FamilyAirQuality  Family = "air_quality"
)

// Families lists every supported family.
var Families = []Family{FamilyDevice, FamilyEnvironment, FamilyPower, FamilyAirQuality}

var columns = map[Family][]string{
	FamilyDevice: {
		"battery_level", "voltage", "channel_utilization", "air_util_tx", "uptime_seconds",
	},
	FamilyEnvironment: {
		"temperature", "relative_humidity", "barometric_pressure", "gas_resistance",
		"voltage", "current", "iaq", "distance", "lux", "white_lux", "ir_lux", "uv_lux",
		"wind_direction", "wind_speed", "weight", "wind_gust", "wind_lull", "radiation",
		"rainfall_1h", "rainfall_24h",
	},
	FamilyPower: {
		"ch1_voltage", "ch1_current", "ch2_voltage", "ch2_current", "ch3_voltage", "ch3_current",
	},
	FamilyAirQuality: {
		"pm10_standard", "pm25_standard", "pm100_standard",
		"pm10_environmental", "pm25_environmental", "pm100_environmental",
		"particles_03um", "particles_05um", "particles_10um",
		"particles_25um", "particles_50um", "particles_100um", "co2",
	},
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	_, ok := columns[f]
	return ok
}

// Columns returns the measured fields of the family in storage order.
func (f Family) Columns() []string {
	return columns[f]
}

// Table is the SQL table holding the family's records.
func (f Family) Table() string {
	return string(f) + "_metrics"
}

// Metric is one telemetry reading from a node.
type Metric struct {
	ID        int64              `json:"id,omitempty"`
	NodeID    uint32             `json:"node_id"`
	Family    Family             `json:"family"`
	Values    map[string]float64 `json:"values"`
	CreatedAt time.Time          `json:"created_at"`
}

// Same reports whether a and b carry the same measured fields with equal
// values. Node, family and timestamps are not compared.
func Same(a, b *Metric) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for k, av := range a.Values {
		bv, ok := b.Values[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

// laterColumn is a measured field newer than the generated schema, read back
// from the message's unknown bytes.
type laterColumn struct {
	name  string
	num   protowire.Number
	float bool
}

var laterColumns = map[Family][]laterColumn{
	FamilyDevice: {
		{"uptime_seconds", 5, false},
	},
	FamilyEnvironment: {
		{"iaq", 7, false}, {"distance", 8, true}, {"lux", 9, true}, {"white_lux", 10, true},
		{"ir_lux", 11, true}, {"uv_lux", 12, true}, {"wind_direction", 13, false},
		{"wind_speed", 14, true}, {"weight", 15, true}, {"wind_gust", 16, true},
		{"wind_lull", 17, true}, {"radiation", 18, true}, {"rainfall_1h", 19, true},
		{"rainfall_24h", 20, true},
	},
	FamilyAirQuality: {
		{"co2", 13, false},
	},
}

// FromTelemetry builds a record from the family present in t. It returns nil
// when the payload carries no supported family.
func FromTelemetry(nodeID uint32, t *meshpb.Telemetry, at time.Time) *Metric {
	var (
		family Family
		m      proto.Message
	)
	switch {
	case t.GetDeviceMetrics() != nil:
		family, m = FamilyDevice, t.GetDeviceMetrics()
	case t.GetEnvironmentMetrics() != nil:
		family, m = FamilyEnvironment, t.GetEnvironmentMetrics()
	case t.GetPowerMetrics() != nil:
		family, m = FamilyPower, t.GetPowerMetrics()
	case t.GetAirQualityMetrics() != nil:
		family, m = FamilyAirQuality, t.GetAirQualityMetrics()
	default:
		return nil
	}
	return &Metric{NodeID: nodeID, Family: family, Values: measured(family, m), CreatedAt: at}
}

// measured collects the populated fields of m that are columns of family.
// Fields without presence only count when non-zero.
func measured(family Family, m proto.Message) map[string]float64 {
	known := make(map[string]bool, len(columns[family]))
	for _, c := range columns[family] {
		known[c] = true
	}

	v := make(map[string]float64)
	m.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, val protoreflect.Value) bool {
		name := string(fd.Name())
		if !known[name] {
			return true
		}
		switch fd.Kind() {
		case protoreflect.FloatKind, protoreflect.DoubleKind:
			v[name] = val.Float()
		case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
			v[name] = float64(val.Uint())
		case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
			protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
			v[name] = float64(val.Int())
		}
		return true
	})

	later := meshpb.ReadLater(m)
	for _, c := range laterColumns[family] {
		if c.float {
			if f, ok := later.Float32(c.num); ok {
				v[c.name] = float64(f)
			}
		} else if u, ok := later.Uint32(c.num); ok {
			v[c.name] = float64(u)
		}
	}
	return v
}
