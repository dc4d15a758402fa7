// Package devicestate keeps per-device UI state (active business, viewed notification
// sets, synthetic-notification fingerprint) in Redis, namespaced by device id.
package devicestate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	apperrors "business-inventory/internal/common/errors"
)

const (
	keyActiveBusiness      = "active_business_id"
	keyViewedNotifications = "viewed_notifications"
	keyViewedStatic        = "viewed_static"
	keyStaticHash          = "static_hash"
)

type Store struct {
	rdb    redis.Cmdable
	prefix string
}

func New(rdb redis.Cmdable, deviceID string) *Store {
	return &Store{rdb: rdb, prefix: fmt.Sprintf("device:%s:", deviceID)}
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// ActiveBusinessID returns the persisted active business id, or "" when none was stored.
func (s *Store) ActiveBusinessID(ctx context.Context) (string, error) {
	id, err := s.rdb.Get(ctx, s.key(keyActiveBusiness)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewLocalStateFailedError(keyActiveBusiness, err)
	}
	return id, nil
}

func (s *Store) SetActiveBusinessID(ctx context.Context, id string) error {
	if err := s.rdb.Set(ctx, s.key(keyActiveBusiness), id, 0).Err(); err != nil {
		return apperrors.NewLocalStateFailedError(keyActiveBusiness, err)
	}
	return nil
}

func (s *Store) ClearActiveBusinessID(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key(keyActiveBusiness)).Err(); err != nil {
		return apperrors.NewLocalStateFailedError(keyActiveBusiness, err)
	}
	return nil
}

// ViewedNotifications returns the ids of server notifications this device has shown.
func (s *Store) ViewedNotifications(ctx context.Context) (map[string]struct{}, error) {
	return s.members(ctx, keyViewedNotifications)
}

// ViewedStatic returns the ids of synthetic notifications this device has shown.
func (s *Store) ViewedStatic(ctx context.Context) (map[string]struct{}, error) {
	return s.members(ctx, keyViewedStatic)
}

func (s *Store) members(ctx context.Context, name string) (map[string]struct{}, error) {
	ids, err := s.rdb.SMembers(ctx, s.key(name)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.NewLocalStateFailedError(name, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// MarkViewed adds both id lists to their viewed sets in one transaction.
func (s *Store) MarkViewed(ctx context.Context, notificationIDs, staticIDs []string) error {
	if len(notificationIDs) == 0 && len(staticIDs) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(notificationIDs) > 0 {
			pipe.SAdd(ctx, s.key(keyViewedNotifications), toArgs(notificationIDs)...)
		}
		if len(staticIDs) > 0 {
			pipe.SAdd(ctx, s.key(keyViewedStatic), toArgs(staticIDs)...)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewLocalStateFailedError("viewed", err)
	}
	return nil
}

// StaticHash returns the stored fingerprint and whether one was stored at all.
func (s *Store) StaticHash(ctx context.Context) (string, bool, error) {
	hash, err := s.rdb.Get(ctx, s.key(keyStaticHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewLocalStateFailedError(keyStaticHash, err)
	}
	return hash, true, nil
}

// ReplaceStaticHash stores hash and, when clearViewed is set, empties the synthetic viewed set
// in the same transaction.
func (s *Store) ReplaceStaticHash(ctx context.Context, hash string, clearViewed bool) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if clearViewed {
			pipe.Del(ctx, s.key(keyViewedStatic))
		}
		pipe.Set(ctx, s.key(keyStaticHash), hash, 0)
		return nil
	})
	if err != nil {
		return apperrors.NewLocalStateFailedError(keyStaticHash, err)
	}
	return nil
}

func toArgs(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
