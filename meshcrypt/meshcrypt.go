// Package meshcrypt implements channel decryption for mesh packets.
//
// Channel traffic is AES-CTR encrypted with a pre-shared key the gateway
// does not advertise, so decryption is a trial over an ordered key list:
// the first key whose plaintext parses as a well-formed Data message wins.
package meshcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/cyberorg/sparagliding-meshmap/meshpb"
)

// DefaultKeyBase64 is the publicly known key of the default channel.
const DefaultKeyBase64 = "1PG7OiApB1nwvP+rz05pAQ=="

var defaultKey = Key{0xd4, 0xf1, 0xbb, 0x3a, 0x20, 0x29, 0x07, 0x59, 0xf0, 0xbc, 0xff, 0xab, 0xcf, 0x4e, 0x69, 0x01}

// Key is an AES-128 or AES-256 channel key.
type Key []byte

// DefaultKey returns a copy of the default channel key.
func DefaultKey() Key {
	return append(Key(nil), defaultKey...)
}

// ParseKey decodes a base64 channel key. A single byte n >= 1 is the firmware
// shorthand for the default key with its last byte advanced by n-1; shorter
// keys are zero padded to the next AES size.
func ParseKey(s string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	switch n := len(raw); {
	case n == 0:
		return nil, fmt.Errorf("empty key")
	case n == 1:
		if raw[0] == 0 {
			return nil, fmt.Errorf("key index 0 means no encryption")
		}
		k := DefaultKey()
		k[len(k)-1] += raw[0] - 1
		return k, nil
	case n <= 16:
		k := make(Key, 16)
		copy(k, raw)
		return k, nil
	case n <= 32:
		k := make(Key, 32)
		copy(k, raw)
		return k, nil
	default:
		return nil, fmt.Errorf("key too long (%d bytes)", n)
	}
}

// ParseKeys decodes an ordered key list, preserving order.
func ParseKeys(list []string) ([]Key, error) {
	keys := make([]Key, 0, len(list))
	for i, s := range list {
		k, err := ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func nonce(packetID, from uint32) []byte {
	n := make([]byte, aes.BlockSize)
	binary.LittleEndian.PutUint64(n[0:8], uint64(packetID))
	binary.LittleEndian.PutUint32(n[8:12], from)
	return n
}

// Transform applies the AES-CTR keystream for a packet. Encryption and
// decryption are the same operation.
func Transform(key Key, packetID, from uint32, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, nonce(packetID, from)).XORKeyStream(out, in)
	return out, nil
}

// Decrypt tries each key in order against an encrypted packet and returns the
// first payload that decodes strictly with a non-zero port. It returns nil
// when the packet is not encrypted or no key yields a valid decode.
func Decrypt(pkt *meshpb.MeshPacket, keys []Key) *meshpb.Data {
	if pkt == nil || !meshpb.IsEncrypted(pkt) {
		return nil
	}
	for _, key := range keys {
		plain, err := Transform(key, pkt.GetId(), pkt.GetFrom(), pkt.GetEncrypted())
		if err != nil {
			continue
		}
		data, err := meshpb.DecodeData(plain)
		if err != nil {
			continue
		}
		if data.GetPortnum() == meshpb.PortUnknown {
			continue
		}
		return data
	}
	return nil
}
