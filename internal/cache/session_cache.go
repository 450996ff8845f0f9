package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docuchat/internal/model"
)

// SessionCache is a short-TTL read-through cache for a session's message log.
// A dirty marker is set around every append so that a concurrent reader never
// re-populates the cache with a log that is about to grow.
type SessionCache struct {
	client         *redisv9.Client
	messagesTTL    time.Duration
	dirtyMarkerTTL time.Duration
}

func NewSessionCache(client *redisv9.Client, messagesTTL, dirtyMarkerTTL time.Duration) *SessionCache {
	if messagesTTL <= 0 {
		messagesTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &SessionCache{
		client:         client,
		messagesTTL:    messagesTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *SessionCache) GetMessages(ctx context.Context, sessionID uint) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, c.messagesKey(sessionID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session messages failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached messages failed: %w", err)
	}
	return messages, true, nil
}

func (c *SessionCache) SetMessages(ctx context.Context, sessionID uint, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal session messages failed: %w", err)
	}
	if err := c.client.Set(ctx, c.messagesKey(sessionID), payload, c.messagesTTL).Err(); err != nil {
		return fmt.Errorf("redis set session messages failed: %w", err)
	}
	return nil
}

func (c *SessionCache) Invalidate(ctx context.Context, sessionID uint) error {
	if err := c.client.Del(ctx, c.messagesKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session messages failed: %w", err)
	}
	return nil
}

func (c *SessionCache) MarkDirty(ctx context.Context, sessionID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(sessionID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *SessionCache) IsDirty(ctx context.Context, sessionID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *SessionCache) messagesKey(sessionID uint) string {
	return fmt.Sprintf("chat:session:%d:messages", sessionID)
}

func (c *SessionCache) dirtyKey(sessionID uint) string {
	return fmt.Sprintf("chat:session:%d:dirty", sessionID)
}
