package store

import (
	"context"
	"fmt"
	"time"
)

// Waypoint is a user-placed map marker, keyed by its own identifier.
type Waypoint struct {
	WaypointID  uint32    `json:"waypoint_id"`
	From        uint32    `json:"from"`
	To          uint32    `json:"to"`
	ChannelID   string    `json:"channel_id"`
	GatewayID   string    `json:"gateway_id"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Expire      uint32    `json:"expire"`
	LockedTo    uint32    `json:"locked_to"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        uint32    `json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertWaypoint creates the waypoint or replaces its contents.
func (db *DB) UpsertWaypoint(ctx context.Context, w *Waypoint) error {
	_, err := db.ExecContext(ctx, db.Q(`INSERT INTO waypoints (waypoint_id, from_node, to_node, channel_id, gateway_id, latitude, longitude, expire, locked_to, name, description, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(waypoint_id) DO UPDATE SET from_node=excluded.from_node, to_node=excluded.to_node,
			channel_id=excluded.channel_id, gateway_id=excluded.gateway_id, latitude=excluded.latitude,
			longitude=excluded.longitude, expire=excluded.expire, locked_to=excluded.locked_to, name=excluded.name,
			description=excluded.description, icon=excluded.icon, updated_at=excluded.updated_at`),
		int64(w.WaypointID), int64(w.From), int64(w.To), w.ChannelID, w.GatewayID, optFloat(w.Latitude), optFloat(w.Longitude),
		int64(w.Expire), int64(w.LockedTo), w.Name, w.Description, int64(w.Icon), db.ts(w.CreatedAt), db.ts(w.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert waypoint %d: %w", w.WaypointID, err)
	}
	return nil
}

// ListWaypoints returns waypoints updated since the given time. Expired
// waypoints are excluded when now is non-zero.
func (db *DB) ListWaypoints(ctx context.Context, since, now time.Time) ([]*Waypoint, error) {
	query := `SELECT waypoint_id, from_node, to_node, channel_id, gateway_id, latitude, longitude, expire, locked_to, name, description, icon, created_at, updated_at FROM waypoints WHERE updated_at >= ?`
	args := []any{db.ts(since)}
	if !now.IsZero() {
		query += ` AND (expire = 0 OR expire > ?)`
		args = append(args, now.Unix())
	}
	query += ` ORDER BY updated_at DESC`
	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Waypoint
	for rows.Next() {
		var w Waypoint
		var id, from, to, expire, locked, icon int64
		var lat, lon, createdAt, updatedAt any
		if err := rows.Scan(&id, &from, &to, &w.ChannelID, &w.GatewayID, &lat, &lon, &expire, &locked,
			&w.Name, &w.Description, &icon, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		w.WaypointID, w.From, w.To = uint32(id), uint32(from), uint32(to)
		w.Expire, w.LockedTo, w.Icon = uint32(expire), uint32(locked), uint32(icon)
		w.Latitude, w.Longitude = anyFloat(lat), anyFloat(lon)
		w.CreatedAt, w.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
		out = append(out, &w)
	}
	return out, rows.Err()
}
