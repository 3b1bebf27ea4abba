// File: storage/storage.go
package storage

import (
	"context"

	"github.com/pkg/errors"

	"voting-ledger/models"
)

var (
	// ErrNotFound indicates no record is stored at an address.
	ErrNotFound = errors.New("account not found")
	// ErrAlreadyInitialized indicates an insert-if-absent hit an occupied address.
	ErrAlreadyInitialized = errors.New("account already initialized")
	ErrReadOnly           = errors.New("transaction is read-only")
)

// Tx is a view of account storage inside one atomic unit of work.
type Tx interface {
	Get(address models.Pubkey) ([]byte, error)
	// Create stores data at an empty address. It never overwrites.
	Create(address models.Pubkey, data []byte) error
	// Put replaces the data of an existing record.
	Put(address models.Pubkey, data []byte) error
	// ForEach visits every record. data is only valid during the call.
	ForEach(fn func(address models.Pubkey, data []byte) error) error
}

// AccountStore is durable keyed storage for ledger records. Update runs fn
// in a transaction that commits only if fn returns nil; concurrent Updates
// touching the same record are serialized.
type AccountStore interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// BlockStore persists hash-chained journal blocks.
type BlockStore interface {
	SaveBlock(chain string, block *models.Block) error
	LoadChain(chain string) ([]*models.Block, error)
}
