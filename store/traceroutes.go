package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Traceroute is a discovered route between two nodes.
type Traceroute struct {
	ID           int64     `json:"id"`
	From         uint32    `json:"from"`
	To           uint32    `json:"to"`
	PacketID     uint32    `json:"packet_id"`
	RequestID    uint32    `json:"request_id"`
	WantResponse bool      `json:"want_response"`
	ChannelID    string    `json:"channel_id"`
	GatewayID    string    `json:"gateway_id"`
	Route        []uint32  `json:"route"`
	RouteBack    []uint32  `json:"route_back"`
	SnrTowards   []int32   `json:"snr_towards"`
	SnrBack      []int32   `json:"snr_back"`
	RxTime       uint32    `json:"rx_time"`
	CreatedAt    time.Time `json:"created_at"`
}

func marshalList[T any](v []T) string {
	if v == nil {
		v = []T{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (db *DB) SaveTraceroute(ctx context.Context, tr *Traceroute) error {
	id, err := db.insertID(ctx, `INSERT INTO traceroutes (from_node, to_node, packet_id, request_id, want_response, channel_id, gateway_id, route, route_back, snr_towards, snr_back, rx_time, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(tr.From), int64(tr.To), int64(tr.PacketID), int64(tr.RequestID), tr.WantResponse, tr.ChannelID, tr.GatewayID,
		marshalList(tr.Route), marshalList(tr.RouteBack), marshalList(tr.SnrTowards), marshalList(tr.SnrBack),
		int64(tr.RxTime), db.ts(tr.CreatedAt))
	if err != nil {
		return fmt.Errorf("save traceroute: %w", err)
	}
	tr.ID = id
	return nil
}

// ListTraceroutes returns traceroutes since the given time, newest first.
func (db *DB) ListTraceroutes(ctx context.Context, since time.Time, limit int) ([]*Traceroute, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id, from_node, to_node, packet_id, request_id, want_response, channel_id, gateway_id, route, route_back, snr_towards, snr_back, rx_time, created_at FROM traceroutes WHERE created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`),
		db.ts(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Traceroute
	for rows.Next() {
		var tr Traceroute
		var from, to, packetID, requestID, rxTime int64
		var wantResponse bool
		var route, routeBack, snrTowards, snrBack string
		var createdAt any
		if err := rows.Scan(&tr.ID, &from, &to, &packetID, &requestID, &wantResponse, &tr.ChannelID, &tr.GatewayID,
			&route, &routeBack, &snrTowards, &snrBack, &rxTime, &createdAt); err != nil {
			return nil, err
		}
		tr.From, tr.To, tr.PacketID, tr.RequestID, tr.RxTime = uint32(from), uint32(to), uint32(packetID), uint32(requestID), uint32(rxTime)
		tr.WantResponse = wantResponse
		json.Unmarshal([]byte(route), &tr.Route)
		json.Unmarshal([]byte(routeBack), &tr.RouteBack)
		json.Unmarshal([]byte(snrTowards), &tr.SnrTowards)
		json.Unmarshal([]byte(snrBack), &tr.SnrBack)
		tr.CreatedAt = parseTime(createdAt)
		out = append(out, &tr)
	}
	return out, rows.Err()
}
