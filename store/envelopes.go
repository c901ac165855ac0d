package store

import (
	"context"
	"fmt"
	"time"
)

// ServiceEnvelope is the raw audit record of one transport message.
type ServiceEnvelope struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	ChannelID string    `json:"channel_id"`
	GatewayID string    `json:"gateway_id"`
	PacketID  uint32    `json:"packet_id"`
	From      uint32    `json:"from"`
	To        uint32    `json:"to"`
	PortNum   *int64    `json:"portnum"`
	Decrypted bool      `json:"decrypted"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func (db *DB) SaveServiceEnvelope(ctx context.Context, e *ServiceEnvelope) error {
	id, err := db.insertID(ctx, `INSERT INTO service_envelopes (topic, channel_id, gateway_id, packet_id, from_node, to_node, portnum, decrypted, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Topic, e.ChannelID, e.GatewayID, int64(e.PacketID), int64(e.From), int64(e.To), optInt(e.PortNum), e.Decrypted, e.Payload, db.ts(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("save service envelope: %w", err)
	}
	e.ID = id
	return nil
}

// ListServiceEnvelopes returns the most recent envelopes, newest first.
// A non-nil gatewayID restricts the result to one gateway.
func (db *DB) ListServiceEnvelopes(ctx context.Context, gatewayID *string, limit int) ([]*ServiceEnvelope, error) {
	query := `SELECT id, topic, channel_id, gateway_id, packet_id, from_node, to_node, portnum, decrypted, payload, created_at FROM service_envelopes`
	var args []any
	if gatewayID != nil {
		query += ` WHERE gateway_id = ?`
		args = append(args, *gatewayID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ServiceEnvelope
	for rows.Next() {
		var e ServiceEnvelope
		var packetID, from, to int64
		var portnum, createdAt any
		if err := rows.Scan(&e.ID, &e.Topic, &e.ChannelID, &e.GatewayID, &packetID, &from, &to, &portnum,
			&e.Decrypted, &e.Payload, &createdAt); err != nil {
			return nil, err
		}
		e.PacketID, e.From, e.To = uint32(packetID), uint32(from), uint32(to)
		e.PortNum = anyInt(portnum)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
