// Путь: internal/snapshot/store.go
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v3"

	"zoho-crm-pulse/internal/domain"
)

// Ключи снимков
const (
	KeyLatestSummary = "summary/latest"
	KeyDashboard     = "dashboard/latest"
)

// Entry - сохраненный снимок и момент его записи
type Entry struct {
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// Store - локальный кэш последних успешных ответов (BadgerDB)
type Store struct {
	db *badger.DB
}

// Open открывает кэш в каталоге dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory - кэш без диска (тесты, запуск без CACHE_DIR)
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory snapshot cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Put сохраняет значение как JSON
func (s *Store) Put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", key, err)
	}
	entry, err := json.Marshal(Entry{SavedAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), entry)
	})
}

// Get читает снимок в out. Нет снимка - domain.ErrNotFound.
func (s *Store) Get(key string, out interface{}) (time.Time, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		return entry.SavedAt, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return entry.SavedAt, nil
}

// Close закрывает кэш
func (s *Store) Close() error {
	return s.db.Close()
}
