package nodestate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func statusKey(nodeID uint32) string {
	return fmt.Sprintf("meshmap:node:%d:status", nodeID)
}

const allNodesKey = "meshmap:nodes"

func (r *RedisStore) SetState(ctx context.Context, s *ConnectionState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, statusKey(s.NodeID), data, 0)
	pipe.SAdd(ctx, allNodesKey, s.NodeID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetState(ctx context.Context, nodeID uint32) (*ConnectionState, error) {
	data, err := r.client.Get(ctx, statusKey(nodeID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s ConnectionState
	return &s, json.Unmarshal(data, &s)
}

func (r *RedisStore) GetAllNodeIDs(ctx context.Context) ([]uint32, error) {
	members, err := r.client.SMembers(ctx, allNodesKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

// FlushAll drops every mirrored state in one round trip.
func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.GetAllNodeIDs(ctx)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, statusKey(id))
	}
	pipe.Del(ctx, allNodesKey)
	_, err = pipe.Exec(ctx)
	return err
}
