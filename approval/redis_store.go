package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/trustflow/types"
)

// RedisStore is a Redis-backed Store for distributed deployments. Request
// data lives under a string key; sorted sets index pending requests and
// per-subject history by creation time.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing client. keyPrefix defaults to "trustflow:".
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "trustflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "approval:",
	}
}

func (s *RedisStore) requestKey(id string) string { return s.keyPrefix + "data:" + id }
func (s *RedisStore) pendingKey() string          { return s.keyPrefix + "pending" }
func (s *RedisStore) subjectKey(id string) string { return s.keyPrefix + "subject:" + id }

func (s *RedisStore) Save(ctx context.Context, req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal approval request: %w", err)
	}

	score := float64(req.CreatedAt.UnixNano())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.requestKey(req.ID), data, 0)
	if req.State == StatePending {
		pipe.ZAdd(ctx, s.pendingKey(), redis.Z{Score: score, Member: req.ID})
	} else {
		pipe.ZRem(ctx, s.pendingKey(), req.ID)
	}
	pipe.ZAdd(ctx, s.subjectKey(req.SubjectID), redis.Z{Score: score, Member: req.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Request, error) {
	data, err := s.client.Get(ctx, s.requestKey(id)).Bytes()
	if err == redis.Nil {
		return nil, types.NewErrorf(types.ErrNotFound, "approval request %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *RedisStore) ListPending(ctx context.Context) ([]*Request, error) {
	ids, err := s.client.ZRange(ctx, s.pendingKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		// the index can lag the data key briefly
		if req.State == StatePending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *RedisStore) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Request, error) {
	ids, err := s.client.ZRange(ctx, s.subjectKey(subjectID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	req, err := s.Get(ctx, id)
	if err != nil {
		if types.IsCode(err, types.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.requestKey(id))
	pipe.ZRem(ctx, s.pendingKey(), id)
	pipe.ZRem(ctx, s.subjectKey(req.SubjectID), id)
	_, err = pipe.Exec(ctx)
	return err
}

var _ Store = (*RedisStore)(nil)
