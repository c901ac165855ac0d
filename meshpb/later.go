package meshpb

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// Field numbers added to the Meshtastic schema after the generated package
// was cut. Decoding keeps them as unknown bytes; Later reads them back.
const (
	DataBitfield protowire.Number = 9

	UserPublicKey      protowire.Number = 8
	UserIsUnmessagable protowire.Number = 9

	RouteSnrTowards protowire.Number = 2
	RouteBack       protowire.Number = 3
	RouteSnrBack    protowire.Number = 4
)

type laterField struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64
	bytes []byte
}

// Later holds the unknown fields of one message in wire order.
type Later []laterField

// ReadLater collects the unknown fields of m. Scanning stops at the first
// malformed field.
func ReadLater(m proto.Message) Later {
	b := m.ProtoReflect().GetUnknown()
	var l Later
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			break
		}
		b = b[n:]
		f := laterField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.value = uint64(v)
		case protowire.Fixed64Type:
			f.value, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			break
		}
		b = b[n:]
		l = append(l, f)
	}
	return l
}

func (l Later) last(num protowire.Number, typ protowire.Type) (laterField, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].num == num && l[i].typ == typ {
			return l[i], true
		}
	}
	return laterField{}, false
}

// Uint32 returns the last varint value of field num.
func (l Later) Uint32(num protowire.Number) (uint32, bool) {
	f, ok := l.last(num, protowire.VarintType)
	return uint32(f.value), ok
}

// Bool returns the last varint value of field num as a bool.
func (l Later) Bool(num protowire.Number) (bool, bool) {
	f, ok := l.last(num, protowire.VarintType)
	return f.value != 0, ok
}

// Float32 returns the last float value of field num.
func (l Later) Float32(num protowire.Number) (float32, bool) {
	f, ok := l.last(num, protowire.Fixed32Type)
	return math.Float32frombits(uint32(f.value)), ok
}

// Bytes returns the last length-delimited value of field num.
func (l Later) Bytes(num protowire.Number) []byte {
	f, _ := l.last(num, protowire.BytesType)
	return f.bytes
}

// Fixed32s returns every value of a repeated fixed32 field, packed or not.
func (l Later) Fixed32s(num protowire.Number) []uint32 {
	var out []uint32
	for _, f := range l {
		if f.num != num {
			continue
		}
		switch f.typ {
		case protowire.Fixed32Type:
			out = append(out, uint32(f.value))
		case protowire.BytesType:
			for b := f.bytes; len(b) > 0; {
				v, n := protowire.ConsumeFixed32(b)
				if n < 0 {
					break
				}
				out = append(out, v)
				b = b[n:]
			}
		}
	}
	return out
}

// Int32s returns every value of a repeated int32 field, packed or not.
func (l Later) Int32s(num protowire.Number) []int32 {
	var out []int32
	for _, f := range l {
		if f.num != num {
			continue
		}
		switch f.typ {
		case protowire.VarintType:
			out = append(out, int32(f.value))
		case protowire.BytesType:
			for b := f.bytes; len(b) > 0; {
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					break
				}
				out = append(out, int32(v))
				b = b[n:]
			}
		}
	}
	return out
}
