package store

import (
	"context"
	"fmt"
	"time"
)

// Position is one entry of a node's position history.
type Position struct {
	ID            int64     `json:"id"`
	NodeID        uint32    `json:"node_id"`
	To            uint32    `json:"to"`
	PacketID      uint32    `json:"packet_id"`
	ChannelID     string    `json:"channel_id"`
	GatewayID     string    `json:"gateway_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Altitude      *int64    `json:"altitude"`
	GroundSpeed   *int64    `json:"ground_speed"`
	GroundTrack   *int64    `json:"ground_track"`
	SatsInView    *int64    `json:"sats_in_view"`
	PrecisionBits *int64    `json:"precision_bits"`
	PositionTime  uint32    `json:"position_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// SamePosition reports whether two fixes are at the same place.
func SamePosition(a, b *Position) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Latitude == b.Latitude && a.Longitude == b.Longitude && equalInt(a.Altitude, b.Altitude)
}

func equalInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

const positionSelectCols = `id, node_id, to_node, packet_id, channel_id, gateway_id, latitude, longitude, altitude, ground_speed, ground_track, sats_in_view, precision_bits, position_time, created_at`

func scanPosition(row interface{ Scan(...any) error }) (*Position, error) {
	var p Position
	var nodeID, to, packetID, positionTime int64
	var alt, speed, track, sats, prec, createdAt any
	err := row.Scan(&p.ID, &nodeID, &to, &packetID, &p.ChannelID, &p.GatewayID, &p.Latitude, &p.Longitude,
		&alt, &speed, &track, &sats, &prec, &positionTime, &createdAt)
	if err != nil {
		return nil, err
	}
	p.NodeID, p.To, p.PacketID, p.PositionTime = uint32(nodeID), uint32(to), uint32(packetID), uint32(positionTime)
	p.Altitude, p.GroundSpeed, p.GroundTrack = anyInt(alt), anyInt(speed), anyInt(track)
	p.SatsInView, p.PrecisionBits = anyInt(sats), anyInt(prec)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (db *DB) SavePosition(ctx context.Context, p *Position) error {
	id, err := db.insertID(ctx, `INSERT INTO positions (node_id, to_node, packet_id, channel_id, gateway_id, latitude, longitude, altitude, ground_speed, ground_track, sats_in_view, precision_bits, position_time, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(p.NodeID), int64(p.To), int64(p.PacketID), p.ChannelID, p.GatewayID, p.Latitude, p.Longitude,
		optInt(p.Altitude), optInt(p.GroundSpeed), optInt(p.GroundTrack), optInt(p.SatsInView), optInt(p.PrecisionBits), int64(p.PositionTime), db.ts(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	p.ID = id
	return nil
}

// FindRecentPosition returns the newest position of a node created at or
// after since.
func (db *DB) FindRecentPosition(ctx context.Context, nodeID uint32, since time.Time) (*Position, bool, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`SELECT %s FROM positions WHERE node_id=? AND created_at >= ? ORDER BY created_at DESC, id DESC LIMIT 1`, positionSelectCols)),
		int64(nodeID), db.ts(since))
	p, err := scanPosition(row)
	found, err := notFound(err)
	if !found {
		return nil, false, err
	}
	return p, true, nil
}

// ListPositions returns a node's positions since the given time, oldest first.
func (db *DB) ListPositions(ctx context.Context, nodeID uint32, since time.Time, limit int) ([]*Position, error) {
	rows, err := db.QueryContext(ctx, db.Q(fmt.Sprintf(`SELECT %s FROM positions WHERE node_id=? AND created_at >= ? ORDER BY created_at LIMIT ?`, positionSelectCols)),
		int64(nodeID), db.ts(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
