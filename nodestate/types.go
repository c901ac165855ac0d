package nodestate

import "time"

// ConnectionState is the last gateway connectivity report of a node.
type ConnectionState struct {
	NodeID    uint32    `json:"node_id"`
	NodeIDHex string    `json:"node_id_hex"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}
