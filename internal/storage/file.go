package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/piratproject/pirat-backend/internal/lib/sl"
)

// FileStore держит каждую коллекцию в отдельном JSON-файле каталога данных.
// Каталог наблюдается через fsnotify: изменения, внесённые соседними
// процессами, тоже превращаются в события подписчиков. Собственная запись
// публикуется и напрямую, и через наблюдателя, дубликаты допустимы.
type FileStore struct {
	dir      string
	log      *slog.Logger
	mu       sync.Mutex
	notifier *notifier
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewFileStore создаёт каталог данных при необходимости и запускает
// наблюдение за ним.
func NewFileStore(dir string, log *slog.Logger) (*FileStore, error) {
	const op = "storage.NewFileStore"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &FileStore{
		dir:      dir,
		log:      log,
		notifier: newNotifier(),
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	go s.watch()
	return s, nil
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// Load читает файл коллекции. Отсутствующий файл равнозначен пустой
// коллекции.
func (s *FileStore) Load(ctx context.Context, collection string, dest any) error {
	const op = "storage.FileStore.Load"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	loads.WithLabelValues(collection).Inc()

	s.mu.Lock()
	payload, err := os.ReadFile(s.path(collection))
	s.mu.Unlock()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if decodePayload(collection, payload, dest) {
		s.log.Warn("corrupt collection payload, starting empty", sl.Collection(collection))
	}
	return nil
}

// Save атомарно замещает файл коллекции через временный файл и rename.
func (s *FileStore) Save(ctx context.Context, collection string, value any) error {
	const op = "storage.FileStore.Save"

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
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), s.path(collection)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}

	saves.WithLabelValues(collection).Inc()
	s.notifier.Publish(Event{Collection: collection})
	return nil
}

// Subscribe выдаёт канал событий изменения перечисленных коллекций,
// без аргументов — всех.
func (s *FileStore) Subscribe(collections ...string) (<-chan Event, func()) {
	return s.notifier.Subscribe(collections...)
}

// watch превращает события файловой системы в события коллекций.
func (s *FileStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			s.notifier.Publish(Event{Collection: strings.TrimSuffix(name, ".json")})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("file watcher error", sl.Err(err))
		}
	}
}

// Close останавливает наблюдателя и закрывает каналы подписчиков.
func (s *FileStore) Close() error {
	close(s.done)
	err := s.watcher.Close()
	s.notifier.Close()
	return err
}
