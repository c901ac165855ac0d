package store

import (
	"context"
	"fmt"
	"time"
)

// MapReport is a node's periodic self-description.
type MapReport struct {
	ID                  int64     `json:"id"`
	NodeID              uint32    `json:"node_id"`
	LongName            string    `json:"long_name"`
	ShortName           string    `json:"short_name"`
	Role                int32     `json:"role"`
	HardwareModel       int32     `json:"hardware_model"`
	FirmwareVersion     string    `json:"firmware_version"`
	Region              int32     `json:"region"`
	ModemPreset         int32     `json:"modem_preset"`
	HasDefaultChannel   bool      `json:"has_default_channel"`
	Latitude            *float64  `json:"latitude"`
	Longitude           *float64  `json:"longitude"`
	Altitude            int32     `json:"altitude"`
	PositionPrecision   uint32    `json:"position_precision"`
	NumOnlineLocalNodes uint32    `json:"num_online_local_nodes"`
	CreatedAt           time.Time `json:"created_at"`
}

func (db *DB) SaveMapReport(ctx context.Context, r *MapReport) error {
	id, err := db.insertID(ctx, `INSERT INTO map_reports (node_id, long_name, short_name, role, hardware_model, firmware_version, region, modem_preset, has_default_channel, latitude, longitude, altitude, position_precision, num_online_local_nodes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(r.NodeID), r.LongName, r.ShortName, int64(r.Role), int64(r.HardwareModel), r.FirmwareVersion,
		int64(r.Region), int64(r.ModemPreset), r.HasDefaultChannel, optFloat(r.Latitude), optFloat(r.Longitude),
		int64(r.Altitude), int64(r.PositionPrecision), int64(r.NumOnlineLocalNodes), db.ts(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("save map report: %w", err)
	}
	r.ID = id
	return nil
}

// ListMapReports returns map reports since the given time, newest first.
func (db *DB) ListMapReports(ctx context.Context, since time.Time, limit int) ([]*MapReport, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id, node_id, long_name, short_name, role, hardware_model, firmware_version, region, modem_preset, has_default_channel, latitude, longitude, altitude, position_precision, num_online_local_nodes, created_at FROM map_reports WHERE created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`),
		db.ts(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*MapReport
	for rows.Next() {
		var r MapReport
		var nodeID, role, hw, region, preset, alt, prec, online int64
		var lat, lon, createdAt any
		if err := rows.Scan(&r.ID, &nodeID, &r.LongName, &r.ShortName, &role, &hw, &r.FirmwareVersion, &region, &preset,
			&r.HasDefaultChannel, &lat, &lon, &alt, &prec, &online, &createdAt); err != nil {
			return nil, err
		}
		r.NodeID, r.Role, r.HardwareModel = uint32(nodeID), int32(role), int32(hw)
		r.Region, r.ModemPreset, r.Altitude = int32(region), int32(preset), int32(alt)
		r.PositionPrecision, r.NumOnlineLocalNodes = uint32(prec), uint32(online)
		r.Latitude, r.Longitude = anyFloat(lat), anyFloat(lon)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}
