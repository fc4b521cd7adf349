package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"shopstream/internal/domain"
)

// RedisStore implements domain.ConversationStore on Redis. Expiry rides on
// native key TTLs, refreshed on every write, so SweepExpired has nothing to
// do.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis instance at redisURL. ttl bounds the
// lifetime of all session keys; zero falls back to 24h.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func convKey(sessionID string, handler domain.HandlerKind) string {
	return "ss:conv:" + sessionID + "#" + string(handler)
}

func contextKey(sessionID string) string { return "ss:ctx:" + sessionID }

func sessionKey(sessionID string) string { return "ss:sess:" + sessionID }

// LoadHistory implements domain.ConversationStore.
func (s *RedisStore) LoadHistory(ctx context.Context, sessionID string, handler domain.HandlerKind, limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		limit = maxMessages
	}

	raw, err := s.client.LRange(ctx, convKey(sessionID, handler), int64(-limit), -1).Result()
	if err != nil {
		return nil, storeErr("load history", err)
	}

	msgs := make([]domain.StoredMessage, 0, len(raw))
	for _, item := range raw {
		var msg domain.StoredMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, storeErr("decode message", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// AppendMessage implements domain.ConversationStore.
func (s *RedisStore) AppendMessage(ctx context.Context, sessionID string, handler domain.HandlerKind, msg domain.StoredMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return storeErr("encode message", err)
	}

	key := convKey(sessionID, handler)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	llen := pipe.LLen(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("append message", err)
	}

	if llen.Val() > maxMessages {
		if err := s.client.LTrim(ctx, key, int64(-trimTarget), -1).Err(); err != nil {
			return storeErr("trim conversation", err)
		}
	}
	return nil
}

// SharedContext implements domain.ConversationStore.
func (s *RedisStore) SharedContext(ctx context.Context, sessionID string) (*domain.SharedContext, error) {
	data, err := s.client.Get(ctx, contextKey(sessionID)).Result()
	if err == redis.Nil {
		return &domain.SharedContext{}, nil
	}
	if err != nil {
		return nil, storeErr("load shared context", err)
	}

	sc := &domain.SharedContext{}
	if err := json.Unmarshal([]byte(data), sc); err != nil {
		return nil, storeErr("decode shared context", err)
	}
	return sc, nil
}

// MergeSharedContext implements domain.ConversationStore. Turns for one
// session run sequentially, so read-modify-write without a lock is safe.
func (s *RedisStore) MergeSharedContext(ctx context.Context, sessionID string, update domain.SharedContextUpdate) error {
	sc, err := s.SharedContext(ctx, sessionID)
	if err != nil {
		return err
	}

	mergeContext(sc, update)

	data, err := json.Marshal(sc)
	if err != nil {
		return storeErr("encode shared context", err)
	}
	if err := s.client.Set(ctx, contextKey(sessionID), data, s.ttl).Err(); err != nil {
		return storeErr("save shared context", err)
	}
	return nil
}

// TouchSession implements domain.ConversationStore.
func (s *RedisStore) TouchSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	err := s.client.HSet(ctx, sessionKey(sessionID),
		"user_id", userID,
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return storeErr("touch session", err)
	}
	if err := s.client.Expire(ctx, sessionKey(sessionID), ttl).Err(); err != nil {
		return storeErr("touch session", err)
	}
	return nil
}

// SweepExpired implements domain.ConversationStore. Redis expires keys
// natively.
func (s *RedisStore) SweepExpired(_ context.Context) (int, error) {
	return 0, nil
}

var _ domain.ConversationStore = (*RedisStore)(nil)
