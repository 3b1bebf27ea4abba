// File: storage/bolt_store.go
package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"voting-ledger/models"
)

const accountBucket = "accounts"

// BoltStore keeps accounts in a BoltDB file. Bolt allows a single writer at
// a time, which gives Update the per-record serialization the ledger needs.
type BoltStore struct {
	db *bbolt.DB
}

var _ AccountStore = (*BoltStore)(nil)

// OpenBolt opens or creates the account database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open account db")
	}

	store := &BoltStore{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucket))
		if bucket == nil {
			return errors.New("account bucket is missing")
		}
		return fn(&boltTx{bucket: bucket, writable: true})
	})
}

func (s *BoltStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucket))
		if bucket == nil {
			return errors.New("account bucket is missing")
		}
		return fn(&boltTx{bucket: bucket})
	})
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(accountBucket)); err != nil {
			return errors.Wrap(err, "create account bucket")
		}
		return nil
	})
}

type boltTx struct {
	bucket   *bbolt.Bucket
	writable bool
}

func (t *boltTx) Get(address models.Pubkey) ([]byte, error) {
	v := t.bucket.Get(address[:])
	if v == nil {
		return nil, ErrNotFound
	}
	// bolt memory is only valid for the life of the transaction
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *boltTx) Create(address models.Pubkey, data []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	if t.bucket.Get(address[:]) != nil {
		return ErrAlreadyInitialized
	}
	return errors.Wrap(t.bucket.Put(address[:], data), "create account")
}

func (t *boltTx) Put(address models.Pubkey, data []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	if t.bucket.Get(address[:]) == nil {
		return ErrNotFound
	}
	return errors.Wrap(t.bucket.Put(address[:], data), "put account")
}

func (t *boltTx) ForEach(fn func(address models.Pubkey, data []byte) error) error {
	return t.bucket.ForEach(func(k, v []byte) error {
		address, err := models.PubkeyFromBytes(k)
		if err != nil {
			return errors.Wrapf(err, "corrupt account key %x", k)
		}
		return fn(address, v)
	})
}
