package store

import (
	"context"
	"fmt"
	"time"
)

// NeighbourEdge is a radio link reported by a node's neighbour info.
type NeighbourEdge struct {
	NodeID                uint32    `json:"node_id"`
	NeighbourNodeID       uint32    `json:"neighbour_node_id"`
	Snr                   float32   `json:"snr"`
	LastRxTime            uint32    `json:"last_rx_time"`
	BroadcastIntervalSecs uint32    `json:"broadcast_interval_secs"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// UpsertNeighbourEdges creates or refreshes every edge in one transaction.
func (db *DB) UpsertNeighbourEdges(ctx context.Context, edges []*NeighbourEdge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, e := range edges {
		_, err := tx.ExecContext(ctx, db.Q(`INSERT INTO neighbour_edges (node_id, neighbour_node_id, snr, last_rx_time, broadcast_interval_secs, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(node_id, neighbour_node_id) DO UPDATE SET snr=excluded.snr, last_rx_time=excluded.last_rx_time,
				broadcast_interval_secs=excluded.broadcast_interval_secs, updated_at=excluded.updated_at`),
			int64(e.NodeID), int64(e.NeighbourNodeID), float64(e.Snr), int64(e.LastRxTime), int64(e.BroadcastIntervalSecs),
			db.ts(e.CreatedAt), db.ts(e.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert neighbour %08x->%08x: %w", e.NodeID, e.NeighbourNodeID, err)
		}
	}
	return tx.Commit()
}

// ListNeighbourEdges returns the edges reported by a node.
func (db *DB) ListNeighbourEdges(ctx context.Context, nodeID uint32) ([]*NeighbourEdge, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT node_id, neighbour_node_id, snr, last_rx_time, broadcast_interval_secs, created_at, updated_at FROM neighbour_edges WHERE node_id=? ORDER BY neighbour_node_id`), int64(nodeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*NeighbourEdge
	for rows.Next() {
		var e NeighbourEdge
		var node, neighbour, lastRx, interval int64
		var snr float64
		var createdAt, updatedAt any
		if err := rows.Scan(&node, &neighbour, &snr, &lastRx, &interval, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.NodeID, e.NeighbourNodeID, e.Snr = uint32(node), uint32(neighbour), float32(snr)
		e.LastRxTime, e.BroadcastIntervalSecs = uint32(lastRx), uint32(interval)
		e.CreatedAt, e.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
