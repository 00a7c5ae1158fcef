package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/piratproject/pirat-backend/internal/config"
	"github.com/piratproject/pirat-backend/internal/lib/sl"
)

const (
	redisKeyPrefix = "pirat:collection:"
	redisChannel   = "pirat:changes"
)

// RedisStore хранит каждую коллекцию под отдельным ключом и разносит
// события изменения через pub/sub. Собственная публикация возвращается
// подписчику тем же каналом, поэтому локальная рассылка не дублируется.
type RedisStore struct {
	db       *redis.Client
	log      *slog.Logger
	notifier *notifier
	pubsub   *redis.PubSub
	done     chan struct{}
}

// NewRedisStore подключается к Redis и подписывается на канал изменений.
func NewRedisStore(ctx context.Context, cfg config.RedisConnection, log *slog.Logger) (*RedisStore, error) {
	const op = "storage.NewRedisStore"

	db := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pubsub := db.Subscribe(ctx, redisChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &RedisStore{
		db:       db,
		log:      log,
		notifier: newNotifier(),
		pubsub:   pubsub,
		done:     make(chan struct{}),
	}
	go s.listen()
	return s, nil
}

// Load читает коллекцию по ключу. Отсутствующий ключ равнозначен пустой
// коллекции.
func (s *RedisStore) Load(ctx context.Context, collection string, dest any) error {
	const op = "storage.RedisStore.Load"

	loads.WithLabelValues(collection).Inc()

	payload, err := s.db.Get(ctx, redisKeyPrefix+collection).Bytes()
	if err == redis.Nil {
		clearDest(dest)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if decodePayload(collection, payload, dest) {
		s.log.Warn("corrupt collection payload, starting empty", sl.Collection(collection))
	}
	return nil
}

// Save замещает значение ключа и публикует имя коллекции в канал изменений.
func (s *RedisStore) Save(ctx context.Context, collection string, value any) error {
	const op = "storage.RedisStore.Save"

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.db.Set(ctx, redisKeyPrefix+collection, payload, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	saves.WithLabelValues(collection).Inc()

	if err := s.db.Publish(ctx, redisChannel, collection).Err(); err != nil {
		s.log.Warn("failed to publish change event", sl.Collection(collection), sl.Err(err))
	}
	return nil
}

// Subscribe выдаёт канал событий изменения перечисленных коллекций,
// без аргументов — всех.
func (s *RedisStore) Subscribe(collections ...string) (<-chan Event, func()) {
	return s.notifier.Subscribe(collections...)
}

func (s *RedisStore) listen() {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.notifier.Publish(Event{Collection: msg.Payload})
		}
	}
}

// Close останавливает подписку и закрывает соединение.
func (s *RedisStore) Close() error {
	close(s.done)
	s.pubsub.Close()
	s.notifier.Close()
	return s.db.Close()
}
