// Package meshid handles mesh node identifiers and their "!xxxxxxxx" text form.
package meshid

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID is a 32-bit mesh node address.
type NodeID uint32

// Broadcast addresses every node.
const Broadcast NodeID = 0xffffffff

func (n NodeID) String() string {
	return fmt.Sprintf("!%08x", uint32(n))
}

// IsBroadcast reports whether n is the broadcast address.
func (n NodeID) IsBroadcast() bool {
	return n == Broadcast
}

// ParseHex interprets v as a hexadecimal number. Strings may carry a leading
// "!" and an optional "0x" prefix; integer values pass through unchanged.
// Empty, malformed or nil input yields ok=false.
func ParseHex(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case uint64:
		if x > 1<<63-1 {
			return 0, false
		}
		return int64(x), true
	case NodeID:
		return int64(x), true
	case string:
		return parseHexString(x)
	case *string:
		if x == nil {
			return 0, false
		}
		return parseHexString(*x)
	}
	return 0, false
}

func parseHexString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "!")
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Parse reads a node id such as "!8d2abf01" or "0x8d2abf01". Values outside
// the 32-bit address space are rejected.
func Parse(s string) (NodeID, bool) {
	n, ok := parseHexString(s)
	if !ok || n < 0 || n > 0xffffffff {
		return 0, false
	}
	return NodeID(n), true
}
