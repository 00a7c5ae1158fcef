package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore хранит коллекции в памяти процесса. Используется в тестах
// и как эфемерный бэкенд.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[string][]byte
	notifier *notifier
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payloads: make(map[string][]byte),
		notifier: newNotifier(),
	}
}

// Load читает коллекцию. Отсутствующая коллекция равнозначна пустой.
func (s *MemoryStore) Load(ctx context.Context, collection string, dest any) error {
	const op = "storage.MemoryStore.Load"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	loads.WithLabelValues(collection).Inc()

	s.mu.RLock()
	payload := s.payloads[collection]
	s.mu.RUnlock()

	decodePayload(collection, payload, dest)
	return nil
}

// Save замещает коллекцию целиком и публикует событие изменения.
func (s *MemoryStore) Save(ctx context.Context, collection string, value any) error {
	const op = "storage.MemoryStore.Save"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	s.payloads[collection] = payload
	s.mu.Unlock()

	saves.WithLabelValues(collection).Inc()
	s.notifier.Publish(Event{Collection: collection})
	return nil
}

// Subscribe выдаёт канал событий изменения перечисленных коллекций,
// без аргументов — всех.
func (s *MemoryStore) Subscribe(collections ...string) (<-chan Event, func()) {
	return s.notifier.Subscribe(collections...)
}

// Close закрывает каналы подписчиков.
func (s *MemoryStore) Close() error {
	s.notifier.Close()
	return nil
}
