package identity

import (
	"context"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// userKeyPrefix namespaces user entries inside the badger keyspace.
const userKeyPrefix = "user/"

func userKey(username string) []byte {
	return []byte(userKeyPrefix + username)
}

// BadgerStore persists credential entries in a badger database so that
// admin-provisioned credentials survive broker restarts. Values are
// JSON-encoded User records under "user/<name>" keys.
type BadgerStore struct {
	db *badgerdb.DB
}

var _ Admin = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) the credential database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("identity: open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Lookup implements Store.
func (s *BadgerStore) Lookup(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user *User
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(userKey(username))
		if err == badgerdb.ErrKeyNotFound {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var u User
			if err := json.Unmarshal(val, &u); err != nil {
				return fmt.Errorf("decode user %s: %w", username, err)
			}
			user = &u
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Upsert implements Admin.
func (s *BadgerStore) Upsert(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", user.Username, err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(userKey(user.Username), val)
	})
}

// Delete implements Admin.
func (s *BadgerStore) Delete(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(userKey(username)); err == badgerdb.ErrKeyNotFound {
			return ErrUserNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(userKey(username))
	})
}

// List implements Admin.
func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var names []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(userKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			names = append(names, key[len(userKeyPrefix):])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
