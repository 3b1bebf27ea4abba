// File: blockchain/journal.go
package blockchain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"voting-ledger/models"
	"voting-ledger/storage"
)

// JournalChain is the chain name receipts are stored under.
const JournalChain = "journal"

// Journal is the append-only, hash-chained record of every transaction the
// ledger processed, committed or rejected.
type Journal struct {
	mu         sync.RWMutex
	store      storage.BlockStore
	blocks     []*models.Block
	difficulty uint8
	log        zerolog.Logger
}

func NewJournal(store storage.BlockStore, difficulty uint8, log zerolog.Logger) (*Journal, error) {
	blocks, err := store.LoadChain(JournalChain)
	if err != nil {
		return nil, errors.Wrap(err, "load journal")
	}
	if err := models.VerifyChain(blocks); err != nil {
		return nil, errors.Wrap(err, "journal is corrupt")
	}

	log.Info().Int("blocks", len(blocks)).Msg("journal loaded")
	return &Journal{
		store:      store,
		blocks:     blocks,
		difficulty: difficulty,
		log:        log,
	}, nil
}

// Append mines a block holding receipt and persists it.
func (j *Journal) Append(receipt *models.Receipt) (*models.Block, error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, errors.Wrap(err, "marshal receipt")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var lastTimestamp int64
	if n := len(j.blocks); n > 0 {
		lastTimestamp = j.blocks[n-1].Timestamp
	}

	block := models.NewBlock(
		uint64(len(j.blocks)),
		ensureUniqueTimestamp(lastTimestamp),
		data,
		j.lastHashLocked(),
		j.difficulty,
	)
	if err := j.store.SaveBlock(JournalChain, block); err != nil {
		return nil, errors.Wrap(err, "save journal block")
	}
	j.blocks = append(j.blocks, block)

	j.log.Debug().
		Uint64("index", block.Index).
		Str("tx", receipt.TransactionID.String()).
		Hex("hash", block.Hash).
		Msg("journal block appended")
	return block, nil
}

func (j *Journal) Blocks() []*models.Block {
	j.mu.RLock()
	defer j.mu.RUnlock()

	blocks := make([]*models.Block, len(j.blocks))
	copy(blocks, j.blocks)
	return blocks
}

func (j *Journal) Block(index uint64) (*models.Block, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if index >= uint64(len(j.blocks)) {
		return nil, fmt.Errorf("block %d not found", index)
	}
	return j.blocks[index], nil
}

// Receipt decodes the receipt stored in block index.
func (j *Journal) Receipt(index uint64) (*models.Receipt, error) {
	block, err := j.Block(index)
	if err != nil {
		return nil, err
	}
	var receipt models.Receipt
	if err := json.Unmarshal(block.Data, &receipt); err != nil {
		return nil, errors.Wrapf(err, "decode receipt in block %d", index)
	}
	return &receipt, nil
}

func (j *Journal) Validate() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return models.VerifyChain(j.blocks)
}

func (j *Journal) lastHashLocked() []byte {
	if len(j.blocks) == 0 {
		return make([]byte, 32)
	}
	return j.blocks[len(j.blocks)-1].Hash
}

func ensureUniqueTimestamp(lastTimestamp int64) int64 {
	now := time.Now().UnixMilli()
	if now <= lastTimestamp {
		return lastTimestamp + 1
	}
	return now
}
