package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const orderTTL = 2 * time.Hour

// RedisBoard is a Board backed by Redis so multiple API instances share
// one pool of open orders. Claim races are settled with SETNX: exactly one
// accepting driver wins, everyone else sees ErrOrderClaimed.
type RedisBoard struct {
	client *redis.Client
}

// NewRedisBoard creates a Redis-backed order board.
func NewRedisBoard(client *redis.Client) *RedisBoard {
	return &RedisBoard{client: client}
}

func (b *RedisBoard) Put(ctx context.Context, o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	return b.client.Set(ctx, orderKey(o.ID), data, orderTTL).Err()
}

func (b *RedisBoard) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	data, err := b.client.Get(ctx, orderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &o, nil
}

func (b *RedisBoard) Claim(ctx context.Context, id uuid.UUID, driverID int64) error {
	exists, err := b.client.Exists(ctx, orderKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if exists == 0 {
		return ErrOrderNotFound
	}

	ok, err := b.client.SetNX(ctx, claimKey(id), driverID, orderTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to claim order: %w", err)
	}
	if !ok {
		return ErrOrderClaimed
	}
	return nil
}

func (b *RedisBoard) Unclaim(ctx context.Context, id uuid.UUID, driverID int64) error {
	owner, err := b.client.Get(ctx, claimKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read claim: %w", err)
	}
	if owner != driverID {
		return nil
	}
	return b.client.Del(ctx, claimKey(id)).Err()
}

func (b *RedisBoard) Exclude(ctx context.Context, id uuid.UUID, driverID int64) (*Order, error) {
	o, err := b.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, ex := range o.Excluded {
		if ex == driverID {
			return o, nil
		}
	}
	o.Excluded = append(o.Excluded, driverID)
	if o.OfferedTo != nil && *o.OfferedTo == driverID {
		o.OfferedTo = nil
	}
	if err := b.Put(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (b *RedisBoard) SetOffered(ctx context.Context, id uuid.UUID, driverID *int64) error {
	o, err := b.Get(ctx, id)
	if err != nil {
		return err
	}
	o.OfferedTo = driverID
	return b.Put(ctx, o)
}

func (b *RedisBoard) Remove(ctx context.Context, id uuid.UUID) error {
	return b.client.Del(ctx, orderKey(id), claimKey(id)).Err()
}

func orderKey(id uuid.UUID) string { return "order:" + id.String() }
func claimKey(id uuid.UUID) string { return "order:" + id.String() + ":claim" }
