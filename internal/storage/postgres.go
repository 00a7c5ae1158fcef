package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/piratproject/pirat-backend/internal/lib/sl"
)

const pgChannel = "pirat_changes"

// PostgresStore хранит коллекции строками одной таблицы и разносит события
// изменения через pg_notify. Уведомления слушает отдельное соединение:
// LISTEN несовместим с пулом database/sql.
type PostgresStore struct {
	db       *sql.DB
	listener *pgx.Conn
	log      *slog.Logger
	notifier *notifier
	cancel   context.CancelFunc
}

// NewPostgresStore открывает пул, создаёт таблицу коллекций и запускает
// слушателя уведомлений.
func NewPostgresStore(ctx context.Context, connString string, log *slog.Logger) (*PostgresStore, error) {
	const op = "storage.NewPostgresStore"

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pirat_collections (
			name       TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listener, err := pgx.Connect(ctx, connString)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := listener.Exec(ctx, "LISTEN "+pgChannel); err != nil {
		listener.Close(ctx)
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{
		db:       db,
		listener: listener,
		log:      log,
		notifier: newNotifier(),
		cancel:   cancel,
	}
	go s.listen(listenCtx)
	return s, nil
}

// Load читает строку коллекции. Отсутствующая строка равнозначна пустой
// коллекции.
func (s *PostgresStore) Load(ctx context.Context, collection string, dest any) error {
	const op = "storage.PostgresStore.Load"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	loads.WithLabelValues(collection).Inc()

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM pirat_collections WHERE name = $1", collection).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		clearDest(dest)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if decodePayload(collection, []byte(payload), dest) {
		s.log.Warn("corrupt collection payload, starting empty", sl.Collection(collection))
	}
	return nil
}

// Save выполняет upsert строки и рассылает имя коллекции через pg_notify.
// Уведомление возвращается собственному слушателю, локальная рассылка
// не дублируется.
func (s *PostgresStore) Save(ctx context.Context, collection string, value any) error {
	const op = "storage.PostgresStore.Save"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pirat_collections (name, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = now()`,
		collection, string(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	saves.WithLabelValues(collection).Inc()

	if _, err := s.db.ExecContext(ctx,
		"SELECT pg_notify($1, $2)", pgChannel, collection); err != nil {
		s.log.Warn("failed to publish change event", sl.Collection(collection), sl.Err(err))
	}
	return nil
}

// Subscribe выдаёт канал событий изменения перечисленных коллекций,
// без аргументов — всех.
func (s *PostgresStore) Subscribe(collections ...string) (<-chan Event, func()) {
	return s.notifier.Subscribe(collections...)
}

func (s *PostgresStore) listen(ctx context.Context) {
	for {
		notification, err := s.listener.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("notification listener stopped", sl.Err(err))
			return
		}
		s.notifier.Publish(Event{Collection: notification.Payload})
	}
}

// Close останавливает слушателя и закрывает соединения.
func (s *PostgresStore) Close() error {
	s.cancel()
	ctx := context.Background()
	err := s.listener.Close(ctx)
	s.notifier.Close()
	if dbErr := s.db.Close(); dbErr != nil && err == nil {
		err = dbErr
	}
	return err
}
