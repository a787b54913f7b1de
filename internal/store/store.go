// Package store implements the namespaced local store backing unauthenticated
// persistence: an encrypted half for sensitive data (todos) and a plain half
// for low-sensitivity data (settings, sync flags, mirrored tokens).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/crypto/storecrypto"
	"github.com/alexandre-rey/utodo-sub000/internal/errs"
)

// Well-known store keys.
const (
	KeyTodos          = "secure_todos"
	KeySettings       = "userSettings"
	KeyTodosSynced    = "todos_synced"
	KeySettingsSynced = "settings_synced"
	KeyTokens         = "session_tokens"

	keyDevice   = "_app_key"
	legacyTodos = "todos"
)

// Key prefixes partitioning the shared badger namespace.
const (
	securePrefix = "secure/"
	plainPrefix  = "plain/"
)

// Config holds storage configuration.
type Config struct {
	// Path is the directory for the database files. Ignored when InMemory is true.
	Path string
	// InMemory disables disk persistence (tests).
	InMemory bool
}

// Store is a badger-backed key/value store with an encrypted namespace.
// Decryption and parse failures on reads degrade to errs.ErrNotFound so
// callers treat corrupted data the same as absent data.
type Store struct {
	db  *badger.DB
	log *zap.Logger

	mu  sync.Mutex
	key []byte // derived store key, created on first secure access
}

// Open opens (or creates) the store at the configured path.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SetPlain stores value as JSON without encryption.
func (s *Store) SetPlain(name string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", name, err)
	}
	return s.put(plainPrefix+name, b)
}

// GetPlain loads a plain value into out. Absent or unparseable data yields
// errs.ErrNotFound.
func (s *Store) GetPlain(name string, out any) error {
	b, err := s.get(plainPrefix + name)
	if err != nil {
		return errs.ErrNotFound
	}
	if err := json.Unmarshal(b, out); err != nil {
		s.log.Warn("store: discarding unparseable plain value", zap.String("key", name), zap.Error(err))
		return errs.ErrNotFound
	}
	return nil
}

// SetSecure stores value as JSON encrypted with the device-derived store key.
// The device key material is created on first use.
func (s *Store) SetSecure(name string, value any) error {
	key, err := s.storeKey()
	if err != nil {
		return err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", name, err)
	}
	blob, err := storecrypto.Seal(key, name, b)
	if err != nil {
		return fmt.Errorf("store: encrypt %s: %w", name, err)
	}
	return s.put(securePrefix+name, blob)
}

// GetSecure loads and decrypts a secure value into out. Absence, decryption
// failure and parse failure are all reported as errs.ErrNotFound. On the
// first miss for the todos key a legacy unencrypted copy is migrated.
func (s *Store) GetSecure(name string, out any) error {
	blob, err := s.get(securePrefix + name)
	if err != nil {
		if name == KeyTodos {
			return s.migrateLegacyTodos(out)
		}
		return errs.ErrNotFound
	}
	key, err := s.storeKey()
	if err != nil {
		s.log.Warn("store: no store key for decrypt", zap.String("key", name), zap.Error(err))
		return errs.ErrNotFound
	}
	b, err := storecrypto.Open(key, name, blob)
	if err != nil {
		s.log.Warn("store: discarding undecryptable value", zap.String("key", name), zap.Error(err))
		return errs.ErrNotFound
	}
	if err := json.Unmarshal(b, out); err != nil {
		s.log.Warn("store: discarding unparseable secure value", zap.String("key", name), zap.Error(err))
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a name from both namespaces.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(securePrefix + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(plainPrefix + name))
	})
}

// migrateLegacyTodos probes the bare legacy todos key left by the
// pre-encryption format; if present the data is re-saved through SetSecure
// and the legacy record deleted, so the migration runs at most once.
func (s *Store) migrateLegacyTodos(out any) error {
	raw, err := s.get(legacyTodos)
	if err != nil {
		return errs.ErrNotFound
	}
	var parsed json.RawMessage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.log.Warn("store: discarding unparseable legacy todos", zap.Error(err))
		return errs.ErrNotFound
	}
	if err := s.SetSecure(KeyTodos, parsed); err != nil {
		return fmt.Errorf("store: migrate legacy todos: %w", err)
	}
	if err := s.del(legacyTodos); err != nil {
		return fmt.Errorf("store: drop legacy todos: %w", err)
	}
	s.log.Info("store: migrated legacy todos to encrypted storage")
	if err := json.Unmarshal(parsed, out); err != nil {
		return errs.ErrNotFound
	}
	return nil
}

// storeKey returns the derived store key, creating device key material on
// first use. The device identifier is stored unencrypted: it is an
// obfuscation key, not a secret.
func (s *Store) storeKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		return s.key, nil
	}
	deviceID, err := s.get(plainPrefix + keyDevice)
	if err != nil {
		deviceID, err = storecrypto.NewDeviceID()
		if err != nil {
			return nil, fmt.Errorf("store: generate device id: %w", err)
		}
		if err := s.put(plainPrefix+keyDevice, deviceID); err != nil {
			return nil, err
		}
	}
	key, err := storecrypto.DeriveKey(deviceID)
	if err != nil {
		return nil, fmt.Errorf("store: derive key: %w", err)
	}
	s.key = key
	return key, nil
}

func (s *Store) put(k string, v []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(k), v)
	})
}

func (s *Store) get(k string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get([]byte(k))
		if err != nil {
			return err
		}
		out, err = it.ValueCopy(nil)
		return err
	})
	return out, err
}

func (s *Store) del(k string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(k))
	})
}
