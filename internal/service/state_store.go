package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginStateTTL acota la ventana entre el redirect de autorización y el
// callback del proveedor.
const LoginStateTTL = 5 * time.Minute

// LoginStateStore guarda los valores state (anti-CSRF) emitidos al iniciar
// un login OAuth y permite consumirlos exactamente una vez en el callback.
type LoginStateStore interface {
	Store(state, provider string, ttl time.Duration) error
	Consume(state, provider string) (bool, error)
}

// GenerateLoginState produce un valor state aleatorio apto para URL.
func GenerateLoginState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type memoryLoginStateStore struct {
	mu    sync.Mutex
	items map[string]stateEntry
}

type stateEntry struct {
	provider  string
	expiresAt time.Time
}

func NewMemoryLoginStateStore() LoginStateStore {
	return &memoryLoginStateStore{
		items: make(map[string]stateEntry),
	}
}

func (s *memoryLoginStateStore) Store(state, provider string, ttl time.Duration) error {
	if strings.TrimSpace(state) == "" {
		return errors.New("empty state")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state] = stateEntry{
		provider:  provider,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *memoryLoginStateStore) Consume(state, provider string) (bool, error) {
	if strings.TrimSpace(state) == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[state]
	if !ok {
		return false, nil
	}
	delete(s.items, state)
	if time.Now().UTC().After(entry.expiresAt) {
		return false, nil
	}
	return entry.provider == provider, nil
}

type redisLoginStateStore struct {
	client *redis.Client
	prefix string
}

func NewRedisLoginStateStore(client *redis.Client) LoginStateStore {
	if client == nil {
		return nil
	}
	return &redisLoginStateStore{
		client: client,
		prefix: "auth:state:",
	}
}

func (s *redisLoginStateStore) Store(state, provider string, ttl time.Duration) error {
	if strings.TrimSpace(state) == "" {
		return errors.New("empty state")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+state, provider, ttl).Err()
}

func (s *redisLoginStateStore) Consume(state, provider string) (bool, error) {
	if strings.TrimSpace(state) == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	stored, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == provider, nil
}
