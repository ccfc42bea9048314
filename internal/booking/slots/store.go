package slots

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"booking-assistant/internal/models"
)

var ErrStateStore = errors.New("STATE_STORE_FAILURE")

// State is everything kept per conversation
type State struct {
	ConversationID string              `json:"conversationId"`
	Phase          models.Phase        `json:"phase"`
	Slots          models.BookingSlots `json:"slots"`
	// Generation increments every time a new booking attempt starts
	Generation int       `json:"generation"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s *State) Snapshot() models.BookingState {
	return models.BookingState{
		ConversationID: s.ConversationID,
		Phase:          s.Phase,
		Slots:          s.Slots,
		Missing:        s.Slots.Missing(),
	}
}

// IdempotencyKey identifies the current booking attempt at collaborator
// boundaries. Retrying identical slots reuses the key; a corrected slot
// yields a new one.
func (s *State) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d:%s", s.ConversationID, s.Generation, slotDigest(s.Slots))
}

func slotDigest(b models.BookingSlots) string {
	when := ""
	if b.When != nil {
		when = b.When.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{b.Name, b.Phone, b.Email, when, b.Timezone}, "\x1f")))
	return hex.EncodeToString(sum[:4])
}

func (s *State) clone() *State {
	c := *s
	return &c
}

// Store persists conversation state. Load reports false for unknown ids.
type Store interface {
	Load(ctx context.Context, conversationID string) (*State, bool, error)
	Save(ctx context.Context, state *State) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (m *MemoryStore) Load(ctx context.Context, conversationID string) (*State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[conversationID]
	if !ok {
		return nil, false, nil
	}
	return s.clone(), true, nil
}

func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.ConversationID] = state.clone()
	return nil
}

const stateKeyPrefix = "booking:state:"

// RedisStore keeps each state as one JSON document
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore stores states under booking:state:{id}; ttl 0 keeps them forever
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func stateKey(conversationID string) string {
	return stateKeyPrefix + conversationID
}

func (r *RedisStore) Load(ctx context.Context, conversationID string) (*State, bool, error) {
	data, err := r.client.Get(ctx, stateKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", ErrStateStore, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("%w: decode: %v", ErrStateStore, err)
	}
	return &s, true, nil
}

func (r *RedisStore) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStateStore, err)
	}
	if err := r.client.Set(ctx, stateKey(state.ConversationID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrStateStore, err)
	}
	return nil
}
