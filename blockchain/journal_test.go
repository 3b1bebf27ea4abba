package blockchain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-ledger/models"
	"voting-ledger/storage"
)

func TestJournalAppendAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewJSONStore(dir)
	require.NoError(t, err)

	journal, err := NewJournal(store, 1, zerolog.Nop())
	require.NoError(t, err)

	first := &models.Receipt{TransactionID: uuid.New(), Instruction: models.InstructionCreateCandidate, Status: models.TxCommitted}
	second := &models.Receipt{TransactionID: uuid.New(), Instruction: models.InstructionCastVote, Status: models.TxRejected, ErrorCode: "ALREADY_VOTED"}
	for _, r := range []*models.Receipt{first, second} {
		_, err := journal.Append(r)
		require.NoError(t, err)
	}
	require.NoError(t, journal.Validate())

	reopenedStore, err := storage.NewJSONStore(dir)
	require.NoError(t, err)
	reopened, err := NewJournal(reopenedStore, 1, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, reopened.Blocks(), 2)

	got, err := reopened.Receipt(1)
	require.NoError(t, err)
	assert.Equal(t, second.TransactionID, got.TransactionID)
	assert.Equal(t, "ALREADY_VOTED", got.ErrorCode)

	_, err = reopened.Block(2)
	assert.Error(t, err)
}

func TestJournalTimestampsIncrease(t *testing.T) {
	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	journal, err := NewJournal(store, 0, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := journal.Append(&models.Receipt{TransactionID: uuid.New()})
		require.NoError(t, err)
	}
	blocks := journal.Blocks()
	for i := 1; i < len(blocks); i++ {
		assert.Greater(t, blocks[i].Timestamp, blocks[i-1].Timestamp)
	}
}

func TestJournalRejectsCorruptChain(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewJSONStore(dir)
	require.NoError(t, err)
	genesis := models.NewBlock(0, 1, []byte("{}"), make([]byte, 32), 0)
	genesis.Data = []byte(`{"tampered":true}`)
	require.NoError(t, store.SaveBlock(JournalChain, genesis))

	_, err = NewJournal(store, 0, zerolog.Nop())
	assert.Error(t, err)
}
