package store

import (
	"context"
	"fmt"
	"time"
)

// TextMessage is a chat message seen on the mesh.
type TextMessage struct {
	ID        int64     `json:"id"`
	From      uint32    `json:"from"`
	To        uint32    `json:"to"`
	PacketID  uint32    `json:"packet_id"`
	Channel   uint32    `json:"channel"`
	ChannelID string    `json:"channel_id"`
	GatewayID string    `json:"gateway_id"`
	Text      string    `json:"text"`
	RxTime    uint32    `json:"rx_time"`
	RxSnr     float32   `json:"rx_snr"`
	RxRssi    int32     `json:"rx_rssi"`
	HopLimit  uint32    `json:"hop_limit"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveTextMessage stores m unless the same packet from the same sender was
// already stored through another gateway. created reports whether a row was
// written.
func (db *DB) SaveTextMessage(ctx context.Context, m *TextMessage) (created bool, err error) {
	res, err := db.ExecContext(ctx, db.Q(`INSERT INTO text_messages (from_node, to_node, packet_id, channel, channel_id, gateway_id, text, rx_time, rx_snr, rx_rssi, hop_limit, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(from_node, packet_id) DO NOTHING`),
		int64(m.From), int64(m.To), int64(m.PacketID), int64(m.Channel), m.ChannelID, m.GatewayID, m.Text,
		int64(m.RxTime), float64(m.RxSnr), int64(m.RxRssi), int64(m.HopLimit), db.ts(m.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("save text message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTextMessages returns messages since the given time, newest first.
// A non-nil to restricts the result to one destination.
func (db *DB) ListTextMessages(ctx context.Context, since time.Time, to *uint32, limit int) ([]*TextMessage, error) {
	query := `SELECT id, from_node, to_node, packet_id, channel, channel_id, gateway_id, text, rx_time, rx_snr, rx_rssi, hop_limit, created_at FROM text_messages WHERE created_at >= ?`
	args := []any{db.ts(since)}
	if to != nil {
		query += ` AND to_node = ?`
		args = append(args, int64(*to))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*TextMessage
	for rows.Next() {
		var m TextMessage
		var from, to, packetID, channel, rxTime, rssi, hop int64
		var snr float64
		var createdAt any
		if err := rows.Scan(&m.ID, &from, &to, &packetID, &channel, &m.ChannelID, &m.GatewayID, &m.Text,
			&rxTime, &snr, &rssi, &hop, &createdAt); err != nil {
			return nil, err
		}
		m.From, m.To, m.PacketID, m.Channel = uint32(from), uint32(to), uint32(packetID), uint32(channel)
		m.RxTime, m.RxSnr, m.RxRssi, m.HopLimit = uint32(rxTime), float32(snr), int32(rssi), uint32(hop)
		m.CreatedAt = parseTime(createdAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}
