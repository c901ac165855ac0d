// Package nodestate tracks gateway connectivity reported on status topics.
package nodestate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/meshid"
	"github.com/cyberorg/sparagliding-meshmap/store"
)

// Manager provides write-through connectivity state: SQL first, then Redis.
// A nil RedisStore disables the mirror.
type Manager struct {
	db    *store.DB
	redis *RedisStore
	now   func() time.Time
}

func NewManager(db *store.DB, redis *RedisStore) *Manager {
	return &Manager{db: db, redis: redis, now: time.Now}
}

// SetClock overrides the time source.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// HandleStatus records the payload text as the connection state of the node
// named by the last topic segment. Topics whose trailing token is not a hex
// node id are dropped and return a nil state.
func (m *Manager) HandleStatus(ctx context.Context, topic string, payload []byte) (*ConnectionState, error) {
	token := topic[strings.LastIndex(topic, "/")+1:]
	nodeID, ok := meshid.Parse(token)
	if !ok || nodeID == 0 {
		return nil, nil
	}

	state := string(payload)
	at := m.now().UTC()
	if _, err := m.db.MergeNode(ctx, uint32(nodeID), store.NodeFields{
		MQTTConnectionState:          &state,
		MQTTConnectionStateUpdatedAt: &at,
	}, at); err != nil {
		return nil, fmt.Errorf("record status of %s: %w", nodeID, err)
	}

	cs := &ConnectionState{NodeID: uint32(nodeID), NodeIDHex: nodeID.String(), State: state, UpdatedAt: at}
	if m.redis != nil {
		if err := m.redis.SetState(ctx, cs); err != nil {
			log.Printf("nodestate: mirror %s to redis: %v", nodeID, err)
		}
	}
	return cs, nil
}

// GetState reads a node's state from Redis, falls back to SQL. It returns
// nil when the node has never reported.
func (m *Manager) GetState(ctx context.Context, nodeID uint32) (*ConnectionState, error) {
	if m.redis != nil {
		s, err := m.redis.GetState(ctx, nodeID)
		if err == nil && s != nil {
			return s, nil
		}
	}

	// Fall back to SQL
	node, err := m.db.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return fromNode(node), nil
}

// GetAllStates reads every known state, preferring Redis.
func (m *Manager) GetAllStates(ctx context.Context) (map[uint32]*ConnectionState, error) {
	states := make(map[uint32]*ConnectionState)

	if m.redis != nil {
		ids, err := m.redis.GetAllNodeIDs(ctx)
		if err == nil && len(ids) > 0 {
			for _, id := range ids {
				s, err := m.GetState(ctx, id)
				if err == nil && s != nil {
					states[id] = s
				}
			}
			return states, nil
		}
	}

	// Fall back to SQL
	nodes, err := m.db.ListConnectionStates(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if s := fromNode(n); s != nil {
			states[n.NodeID] = s
		}
	}
	return states, nil
}

// SyncRedisFromSQL rebuilds the Redis mirror from SQL. Called on startup.
func (m *Manager) SyncRedisFromSQL(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}
	m.redis.FlushAll(ctx)

	nodes, err := m.db.ListConnectionStates(ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		s := fromNode(n)
		if s == nil {
			continue
		}
		if err := m.redis.SetState(ctx, s); err != nil {
			log.Printf("nodestate: sync %s: %v", n.NodeIDHex, err)
			return err
		}
	}

	log.Printf("nodestate: synced %d nodes to redis", len(nodes))
	return nil
}

func fromNode(n *store.Node) *ConnectionState {
	if n.MQTTConnectionState == nil {
		return nil
	}
	s := &ConnectionState{NodeID: n.NodeID, NodeIDHex: n.NodeIDHex, State: *n.MQTTConnectionState}
	if n.MQTTConnectionStateUpdatedAt != nil {
		s.UpdatedAt = *n.MQTTConnectionStateUpdatedAt
	}
	return s
}
