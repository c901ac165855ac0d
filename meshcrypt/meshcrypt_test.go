package meshcrypt

import (
	"bytes"
	"encoding/base64"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"

	"github.com/cyberorg/sparagliding-meshmap/meshpb"
)

func encryptedPacket(t *testing.T, key Key, data *meshpb.Data) *meshpb.MeshPacket {
	t.Helper()
	plain, err := proto.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return encryptedBytes(t, key, plain)
}

func encryptedBytes(t *testing.T, key Key, plain []byte) *meshpb.MeshPacket {
	t.Helper()
	const id, from = 0x1234abcd, 0x8d2abf01
	ct, err := Transform(key, id, from, plain)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	pkt := &meshpb.MeshPacket{Id: id, From: from, To: meshpb.BroadcastAddr}
	meshpb.SetEncrypted(pkt, ct)
	return pkt
}

func randomKey(b byte, n int) Key {
	k := make(Key, n)
	for i := range k {
		k[i] = b + byte(i)
	}
	return k
}

func TestParseKeyDefault(t *testing.T) {
	k, err := ParseKey(DefaultKeyBase64)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if !bytes.Equal(k, DefaultKey()) {
		t.Errorf("key = %x, want %x", k, DefaultKey())
	}
}

func TestParseKeyIndexShorthand(t *testing.T) {
	tests := []struct {
		in   byte
		last byte
	}{
		{1, 0x01},
		{2, 0x02},
		{10, 0x0a},
	}
	for _, tt := range tests {
		k, err := ParseKey(base64.StdEncoding.EncodeToString([]byte{tt.in}))
		if err != nil {
			t.Fatalf("ParseKey(%d): %v", tt.in, err)
		}
		if len(k) != 16 {
			t.Fatalf("len = %d, want 16", len(k))
		}
		if k[15] != tt.last {
			t.Errorf("index %d: last byte = %#x, want %#x", tt.in, k[15], tt.last)
		}
		if !bytes.Equal(k[:15], DefaultKey()[:15]) {
			t.Errorf("index %d: prefix differs from default key", tt.in)
		}
	}

	if _, err := ParseKey(base64.StdEncoding.EncodeToString([]byte{0})); err == nil {
		t.Error("index 0 should be rejected")
	}
}

func TestParseKeyPadding(t *testing.T) {
	k, err := ParseKey(base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if len(k) != 16 || k[3] != 4 || k[4] != 0 {
		t.Errorf("key = %x", k)
	}

	k, err = ParseKey(base64.StdEncoding.EncodeToString(make([]byte, 20)))
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if len(k) != 32 {
		t.Errorf("len = %d, want 32", len(k))
	}

	for _, bad := range []string{"", "not base64!", base64.StdEncoding.EncodeToString(make([]byte, 33))} {
		if _, err := ParseKey(bad); err == nil {
			t.Errorf("ParseKey(%q) should fail", bad)
		}
	}
}

func TestParseKeysKeepsOrder(t *testing.T) {
	a := base64.StdEncoding.EncodeToString(randomKey(0x10, 16))
	keys, err := ParseKeys([]string{a, DefaultKeyBase64})
	if err != nil {
		t.Fatalf("ParseKeys: %v", err)
	}
	if len(keys) != 2 || !bytes.Equal(keys[1], DefaultKey()) {
		t.Errorf("keys = %x", keys)
	}
	if _, err := ParseKeys([]string{a, "!!"}); err == nil {
		t.Error("expected error for invalid entry")
	}
}

func TestDecryptDefaultKeyInAnyPosition(t *testing.T) {
	data := &meshpb.Data{Portnum: meshpb.PortTextMessage, Payload: []byte("hello mesh")}
	pkt := encryptedPacket(t, DefaultKey(), data)

	others := []Key{randomKey(0x20, 16), randomKey(0x40, 32), randomKey(0x90, 16)}
	for pos := 0; pos <= len(others); pos++ {
		keys := append([]Key{}, others[:pos]...)
		keys = append(keys, DefaultKey())
		keys = append(keys, others[pos:]...)

		got := Decrypt(pkt, keys)
		if got == nil {
			t.Fatalf("position %d: decrypt failed", pos)
		}
		if got.GetPortnum() != meshpb.PortTextMessage || string(got.GetPayload()) != "hello mesh" {
			t.Errorf("position %d: got %v %q", pos, got.GetPortnum(), got.GetPayload())
		}
	}
}

func TestDecryptAES256(t *testing.T) {
	key := randomKey(0x01, 32)
	data := &meshpb.Data{Portnum: meshpb.PortPosition, Payload: []byte{0x0d, 1, 2, 3, 4}}
	pkt := encryptedPacket(t, key, data)

	got := Decrypt(pkt, []Key{DefaultKey(), key})
	if got == nil || got.GetPortnum() != meshpb.PortPosition {
		t.Fatalf("Decrypt = %+v", got)
	}
}

func TestDecryptNoMatchingKey(t *testing.T) {
	data := &meshpb.Data{Portnum: meshpb.PortTextMessage, Payload: []byte("secret")}
	pkt := encryptedPacket(t, randomKey(0x55, 16), data)

	if got := Decrypt(pkt, []Key{DefaultKey(), randomKey(0x66, 32)}); got != nil {
		t.Errorf("Decrypt = %+v, want nil", got)
	}
	if got := Decrypt(pkt, nil); got != nil {
		t.Errorf("Decrypt with no keys = %+v, want nil", got)
	}
}

func TestDecryptRejectsZeroPort(t *testing.T) {
	pkt := encryptedPacket(t, DefaultKey(), &meshpb.Data{Payload: []byte("x")})
	if got := Decrypt(pkt, []Key{DefaultKey()}); got != nil {
		t.Errorf("Decrypt = %+v, want nil for port 0", got)
	}
}

func TestDecryptAcceptsBitfield(t *testing.T) {
	plain, err := proto.Marshal(&meshpb.Data{Portnum: meshpb.PortTextMessage, Payload: []byte("gaggle over the ridge")})
	if err != nil {
		t.Fatal(err)
	}
	plain = protowire.AppendTag(plain, meshpb.DataBitfield, protowire.VarintType)
	plain = protowire.AppendVarint(plain, 1)

	got := Decrypt(encryptedBytes(t, DefaultKey(), plain), []Key{DefaultKey()})
	if got == nil || string(got.GetPayload()) != "gaggle over the ridge" {
		t.Fatalf("Decrypt = %+v", got)
	}
}

func TestDecryptRejectsUnrecognizedBytes(t *testing.T) {
	plain, err := proto.Marshal(&meshpb.Data{Portnum: meshpb.PortTextMessage, Payload: []byte("hi")})
	if err != nil {
		t.Fatal(err)
	}
	extra := protowire.AppendTag(append([]byte(nil), plain...), 42, protowire.VarintType)
	extra = protowire.AppendVarint(extra, 7)
	if got := Decrypt(encryptedBytes(t, DefaultKey(), extra), []Key{DefaultKey()}); got != nil {
		t.Errorf("Decrypt with unknown field = %+v, want nil", got)
	}

	// a bitfield sent with the wrong wire type is not the bitfield
	wrongType := protowire.AppendTag(append([]byte(nil), plain...), meshpb.DataBitfield, protowire.Fixed32Type)
	wrongType = protowire.AppendFixed32(wrongType, 1)
	if got := Decrypt(encryptedBytes(t, DefaultKey(), wrongType), []Key{DefaultKey()}); got != nil {
		t.Errorf("Decrypt with mistyped bitfield = %+v, want nil", got)
	}
}

func TestDecryptPlainPacket(t *testing.T) {
	pkt := &meshpb.MeshPacket{}
	meshpb.SetDecoded(pkt, &meshpb.Data{Portnum: meshpb.PortTextMessage})
	if got := Decrypt(pkt, []Key{DefaultKey()}); got != nil {
		t.Errorf("Decrypt on decoded packet = %+v, want nil", got)
	}
	if got := Decrypt(nil, []Key{DefaultKey()}); got != nil {
		t.Error("Decrypt(nil) should be nil")
	}
}
