package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dexrouter/internal/constants"
	"dexrouter/internal/models"
)

// RedisStore keeps the last-known token and pool records in two hashes
// keyed by address, so a restart can serve routes before the first fetch
// completes. It also carries the refresh-event channel.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

// SaveRecords replaces both hashes with the given record set in one
// transaction, so a concurrent load never sees half of an update.
func (s *RedisStore) SaveRecords(ctx context.Context, tokens []models.Token, pools []models.Pool) error {
	tokenFields := make(map[string]interface{}, len(tokens))
	for _, t := range tokens {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal token %s: %w", t.Address, err)
		}
		tokenFields[t.Address] = b
	}

	poolFields := make(map[string]interface{}, len(pools))
	for _, p := range pools {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pool %s: %w", p.Address, err)
		}
		poolFields[p.Address] = b
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, constants.RedisKeyTokens, constants.RedisKeyPools)
	if len(tokenFields) > 0 {
		pipe.HSet(ctx, constants.RedisKeyTokens, tokenFields)
	}
	if len(poolFields) > 0 {
		pipe.HSet(ctx, constants.RedisKeyPools, poolFields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}

// LoadRecords returns everything currently cached. Missing hashes yield
// empty slices, corrupt entries are dropped.
func (s *RedisStore) LoadRecords(ctx context.Context) ([]models.Token, []models.Pool, error) {
	tokenVals, err := s.client.HGetAll(ctx, constants.RedisKeyTokens).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("load tokens: %w", err)
	}
	poolVals, err := s.client.HGetAll(ctx, constants.RedisKeyPools).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("load pools: %w", err)
	}

	tokens := make([]models.Token, 0, len(tokenVals))
	for _, v := range tokenVals {
		var t models.Token
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue
		}
		tokens = append(tokens, t)
	}

	pools := make([]models.Pool, 0, len(poolVals))
	for _, v := range poolVals {
		var p models.Pool
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		pools = append(pools, p)
	}

	return tokens, pools, nil
}

// PublishRefresh announces a newly published snapshot to subscribers.
func (s *RedisStore) PublishRefresh(ctx context.Context, event models.RefreshEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal refresh event: %w", err)
	}
	if err := s.client.Publish(ctx, constants.PubSubChannelRefreshes, data).Err(); err != nil {
		return fmt.Errorf("publish refresh event: %w", err)
	}
	return nil
}

// SubscribeRefreshes invokes handler for every refresh event until ctx is
// done. Corrupt payloads are skipped.
func (s *RedisStore) SubscribeRefreshes(ctx context.Context, handler func(models.RefreshEvent)) error {
	sub := s.client.Subscribe(ctx, constants.PubSubChannelRefreshes)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe refreshes: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.RefreshEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			handler(event)
		}
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
