package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NodeFields are the mergeable attributes of a node. Nil means unknown, or
// for a merge, leave unchanged.
type NodeFields struct {
	LongName            *string `json:"long_name"`
	ShortName           *string `json:"short_name"`
	MacAddress          *string `json:"mac_address"`
	HardwareModel       *int64  `json:"hardware_model"`
	Role                *int64  `json:"role"`
	IsLicensed          *bool   `json:"is_licensed"`
	IsUnmessagable      *bool   `json:"is_unmessagable"`
	PublicKey           *string `json:"public_key"`
	FirmwareVersion     *string `json:"firmware_version"`
	Region              *int64  `json:"region"`
	ModemPreset         *int64  `json:"modem_preset"`
	HasDefaultChannel   *bool   `json:"has_default_channel"`
	NumOnlineLocalNodes *int64  `json:"num_online_local_nodes"`
	PositionPrecision   *int64  `json:"position_precision"`

	Latitude          *float64   `json:"latitude"`
	Longitude         *float64   `json:"longitude"`
	Altitude          *int64     `json:"altitude"`
	PositionUpdatedAt *time.Time `json:"position_updated_at"`

	BatteryLevel       *int64   `json:"battery_level"`
	Voltage            *float64 `json:"voltage"`
	ChannelUtilization *float64 `json:"channel_utilization"`
	AirUtilTx          *float64 `json:"air_util_tx"`
	UptimeSeconds      *int64   `json:"uptime_seconds"`

	NeighboursUpdatedAt            *time.Time `json:"neighbours_updated_at"`
	NeighbourBroadcastIntervalSecs *int64     `json:"neighbour_broadcast_interval_secs"`

	MQTTConnectionState          *string    `json:"mqtt_connection_state"`
	MQTTConnectionStateUpdatedAt *time.Time `json:"mqtt_connection_state_updated_at"`
}

type nodeColumn struct {
	name string
	dst  any
}

func (f *NodeFields) columns() []nodeColumn {
	return []nodeColumn{
		{"long_name", &f.LongName},
		{"short_name", &f.ShortName},
		{"mac_address", &f.MacAddress},
		{"hardware_model", &f.HardwareModel},
		{"role", &f.Role},
		{"is_licensed", &f.IsLicensed},
		{"is_unmessagable", &f.IsUnmessagable},
		{"public_key", &f.PublicKey},
		{"firmware_version", &f.FirmwareVersion},
		{"region", &f.Region},
		{"modem_preset", &f.ModemPreset},
		{"has_default_channel", &f.HasDefaultChannel},
		{"num_online_local_nodes", &f.NumOnlineLocalNodes},
		{"position_precision", &f.PositionPrecision},
		{"latitude", &f.Latitude},
		{"longitude", &f.Longitude},
		{"altitude", &f.Altitude},
		{"position_updated_at", &f.PositionUpdatedAt},
		{"battery_level", &f.BatteryLevel},
		{"voltage", &f.Voltage},
		{"channel_utilization", &f.ChannelUtilization},
		{"air_util_tx", &f.AirUtilTx},
		{"uptime_seconds", &f.UptimeSeconds},
		{"neighbours_updated_at", &f.NeighboursUpdatedAt},
		{"neighbour_broadcast_interval_secs", &f.NeighbourBroadcastIntervalSecs},
		{"mqtt_connection_state", &f.MQTTConnectionState},
		{"mqtt_connection_state_updated_at", &f.MQTTConnectionStateUpdatedAt},
	}
}

// Node is a mesh participant.
type Node struct {
	NodeID    uint32 `json:"node_id"`
	NodeIDHex string `json:"node_id_hex"`
	NodeFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Name returns the short name, else the long name, else the hex id.
func (n *Node) Name() string {
	if n.ShortName != nil && *n.ShortName != "" {
		return *n.ShortName
	}
	if n.LongName != nil && *n.LongName != "" {
		return *n.LongName
	}
	return n.NodeIDHex
}

var nodeSelectCols = func() string {
	cols := []string{"node_id"}
	for _, c := range (&NodeFields{}).columns() {
		cols = append(cols, c.name)
	}
	return strings.Join(append(cols, "created_at", "updated_at"), ", ")
}()

func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	var n Node
	fields := n.columns()
	var nodeID int64
	var createdAt, updatedAt any
	raw := make([]any, len(fields))
	dest := make([]any, 0, len(fields)+3)
	dest = append(dest, &nodeID)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	dest = append(dest, &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, c := range fields {
		assignScanned(c.dst, raw[i])
	}
	n.NodeID = uint32(nodeID)
	n.NodeIDHex = fmt.Sprintf("!%08x", n.NodeID)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return &n, nil
}

// MergeNode creates the node if needed and overwrites only the fields set in
// changes. It returns the merged node.
func (db *DB) MergeNode(ctx context.Context, nodeID uint32, changes NodeFields, at time.Time) (*Node, error) {
	cols := []string{"node_id"}
	args := []any{int64(nodeID)}
	var sets []string
	for _, c := range changes.columns() {
		v, ok := db.optionalValue(c.dst)
		if !ok {
			continue
		}
		cols = append(cols, c.name)
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=excluded.%s", c.name, c.name))
	}
	cols = append(cols, "created_at", "updated_at")
	args = append(args, db.ts(at), db.ts(at))
	sets = append(sets, "updated_at=excluded.updated_at")

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`INSERT INTO nodes (%s) VALUES (%s) ON CONFLICT(node_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "), marks, strings.Join(sets, ", "))
	if _, err := db.ExecContext(ctx, db.Q(query), args...); err != nil {
		return nil, fmt.Errorf("merge node %08x: %w", nodeID, err)
	}
	return db.GetNode(ctx, nodeID)
}

func (db *DB) GetNode(ctx context.Context, nodeID uint32) (*Node, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`SELECT %s FROM nodes WHERE node_id=?`, nodeSelectCols)), int64(nodeID))
	return scanNode(row)
}

// ListNodes returns nodes updated at or after since, newest first. A zero
// since lists every node.
func (db *DB) ListNodes(ctx context.Context, since time.Time) ([]*Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM nodes`, nodeSelectCols)
	var args []any
	if !since.IsZero() {
		query += ` WHERE updated_at >= ?`
		args = append(args, db.ts(since))
	}
	query += ` ORDER BY updated_at DESC`
	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListConnectionStates returns every node with a recorded connection state.
func (db *DB) ListConnectionStates(ctx context.Context) ([]*Node, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM nodes WHERE mqtt_connection_state IS NOT NULL ORDER BY node_id`, nodeSelectCols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
