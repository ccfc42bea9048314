// Package history keeps the recent chat messages of a conversation, passed
// to the answer engine as context.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrHistory = errors.New("HISTORY_FAILURE")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type History interface {
	Append(ctx context.Context, conversationID string, msgs ...Message) error
	// Recent returns up to the window size of messages, oldest first
	Recent(ctx context.Context, conversationID string) ([]Message, error)
}

type Memory struct {
	mu     sync.Mutex
	window int
	data   map[string][]Message
}

func NewMemory(window int) *Memory {
	if window <= 0 {
		window = 6
	}
	return &Memory{window: window, data: make(map[string][]Message)}
}

func (m *Memory) Append(ctx context.Context, conversationID string, msgs ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := append(m.data[conversationID], msgs...)
	if len(all) > m.window {
		all = append([]Message(nil), all[len(all)-m.window:]...)
	}
	m.data[conversationID] = all
	return nil
}

func (m *Memory) Recent(ctx context.Context, conversationID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.data[conversationID]...), nil
}

// Redis stores the newest message at the head of chat:{id}:messages
type Redis struct {
	client redis.Cmdable
	window int
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, window int, ttl time.Duration) *Redis {
	if window <= 0 {
		window = 6
	}
	return &Redis{client: client, window: window, ttl: ttl}
}

func key(conversationID string) string {
	return "chat:" + conversationID + ":messages"
}

func (r *Redis) Append(ctx context.Context, conversationID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("%w: encode: %v", ErrHistory, err)
		}
		values = append(values, b)
	}

	k := key(conversationID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, k, values...)
	pipe.LTrim(ctx, k, 0, int64(r.window-1))
	if r.ttl > 0 {
		pipe.Expire(ctx, k, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrHistory, err)
	}
	return nil
}

func (r *Redis) Recent(ctx context.Context, conversationID string) ([]Message, error) {
	raw, err := r.client.LRange(ctx, key(conversationID), 0, int64(r.window-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistory, err)
	}

	out := make([]Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg Message
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
