package service

import (
	"context"
	"crypto/ecdsa"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-ledger/blockchain"
	"voting-ledger/models"
	"voting-ledger/program"
	"voting-ledger/signing"
	"voting-ledger/storage"
)

type harness struct {
	ledger   *LedgerService
	accounts *storage.BoltStore
	keys     *signing.Service
	payer    *ecdsa.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	accounts, err := storage.OpenBolt(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { accounts.Close() })

	blocks, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	journal, err := blockchain.NewJournal(blocks, 0, zerolog.Nop())
	require.NoError(t, err)

	ledger, err := NewLedgerService(Options{Accounts: accounts, Journal: journal, Logger: zerolog.Nop()})
	require.NoError(t, err)

	h := &harness{ledger: ledger, accounts: accounts, keys: signing.NewService()}
	h.payer, _ = h.newKey(t)
	return h
}

func (h *harness) newKey(t *testing.T) (*ecdsa.PrivateKey, models.Pubkey) {
	t.Helper()
	key, err := h.keys.GenerateKeyPair()
	require.NoError(t, err)
	return key, h.keys.IdentityOf(&key.PublicKey)
}

func (h *harness) id(key *ecdsa.PrivateKey) models.Pubkey {
	return h.keys.IdentityOf(&key.PublicKey)
}

func (h *harness) submit(t *testing.T, tx *models.Transaction, signers ...*ecdsa.PrivateKey) (*models.Receipt, error) {
	t.Helper()
	require.NoError(t, h.keys.SignTransaction(tx, signers...))
	return h.ledger.Submit(context.Background(), tx)
}

func (h *harness) createCandidate(t *testing.T, owner *ecdsa.PrivateKey) models.Pubkey {
	t.Helper()
	tx := program.NewCreateCandidateTransaction(h.id(h.payer), h.id(owner))
	_, err := h.submit(t, tx, h.payer, owner)
	require.NoError(t, err)
	return tx.Accounts[program.SlotRecord]
}

func (h *harness) createVoter(t *testing.T, owner *ecdsa.PrivateKey, hash models.IdentityHash) models.Pubkey {
	t.Helper()
	tx := program.NewCreateVoterTransaction(h.id(h.payer), h.id(owner), hash)
	_, err := h.submit(t, tx, h.payer, owner)
	require.NoError(t, err)
	return tx.Accounts[program.SlotRecord]
}

func (h *harness) vote(t *testing.T, signer *ecdsa.PrivateKey, voter, candidate models.Pubkey) error {
	t.Helper()
	tx := program.NewCastVoteTransaction(h.id(h.payer), h.id(signer), voter, candidate)
	_, err := h.submit(t, tx, h.payer, signer)
	return err
}

func (h *harness) candidate(t *testing.T, address models.Pubkey) models.Candidate {
	t.Helper()
	c, err := h.ledger.GetCandidate(context.Background(), address)
	require.NoError(t, err)
	return *c
}

func (h *harness) voter(t *testing.T, address models.Pubkey) models.Voter {
	t.Helper()
	v, err := h.ledger.GetVoter(context.Background(), address)
	require.NoError(t, err)
	return *v
}

func TestExampleScenario(t *testing.T) {
	h := newHarness(t)
	c1, c1ID := h.newKey(t)
	v1, v1ID := h.newKey(t)
	hash := signing.IdentityHash("079201000123")

	candidateAddr := h.createCandidate(t, c1)
	assert.Equal(t, h.ledger.CandidateAddress(c1ID), candidateAddr)
	assert.Equal(t, models.Candidate{Owner: c1ID}, h.candidate(t, candidateAddr))

	voterAddr := h.createVoter(t, v1, hash)
	assert.Equal(t, h.ledger.VoterAddress(v1ID), voterAddr)
	assert.Equal(t, models.Voter{Owner: v1ID, IdentityHash: hash}, h.voter(t, voterAddr))

	require.NoError(t, h.vote(t, v1, voterAddr, candidateAddr))
	assert.Equal(t, uint64(1), h.candidate(t, candidateAddr).NumVotes)
	voter := h.voter(t, voterAddr)
	assert.True(t, voter.Voted)
	assert.Equal(t, candidateAddr, voter.VoteWho)

	err := h.vote(t, v1, voterAddr, candidateAddr)
	assert.ErrorIs(t, err, program.ErrAlreadyVoted)
	assert.Equal(t, uint64(1), h.candidate(t, candidateAddr).NumVotes)
}

func TestCreateTwiceLeavesFirstRecord(t *testing.T) {
	h := newHarness(t)
	c1, _ := h.newKey(t)
	v1, _ := h.newKey(t)
	candidateAddr := h.createCandidate(t, c1)
	voterAddr := h.createVoter(t, v1, models.IdentityHash{1})
	require.NoError(t, h.vote(t, v1, voterAddr, candidateAddr))

	receipt, err := h.submit(t, program.NewCreateCandidateTransaction(h.id(h.payer), h.id(c1)), h.payer, c1)
	assert.ErrorIs(t, err, program.ErrAlreadyExists)
	assert.Equal(t, models.TxRejected, receipt.Status)
	assert.Equal(t, "ALREADY_EXISTS", receipt.ErrorCode)
	assert.Equal(t, uint64(1), h.candidate(t, candidateAddr).NumVotes)

	_, err = h.submit(t, program.NewCreateVoterTransaction(h.id(h.payer), h.id(v1), models.IdentityHash{2}), h.payer, v1)
	assert.ErrorIs(t, err, program.ErrAlreadyExists)
	voter := h.voter(t, voterAddr)
	assert.Equal(t, models.IdentityHash{1}, voter.IdentityHash)
	assert.True(t, voter.Voted)
}

func TestDuplicateIdentityHashAllowed(t *testing.T) {
	h := newHarness(t)
	v1, _ := h.newKey(t)
	v2, _ := h.newKey(t)
	hash := signing.IdentityHash("same")

	a := h.createVoter(t, v1, hash)
	b := h.createVoter(t, v2, hash)
	assert.NotEqual(t, a, b)
}

func TestCastVoteNotOwner(t *testing.T) {
	h := newHarness(t)
	c1, _ := h.newKey(t)
	v1, _ := h.newKey(t)
	mallory, _ := h.newKey(t)
	candidateAddr := h.createCandidate(t, c1)
	voterAddr := h.createVoter(t, v1, models.IdentityHash{})

	err := h.vote(t, mallory, voterAddr, candidateAddr)
	assert.ErrorIs(t, err, program.ErrNotOwner)
	assert.Equal(t, uint64(0), h.candidate(t, candidateAddr).NumVotes)
	assert.False(t, h.voter(t, voterAddr).Voted)

	require.NoError(t, h.vote(t, v1, voterAddr, candidateAddr))
}

func TestSecondVoteOtherCandidate(t *testing.T) {
	h := newHarness(t)
	ca, _ := h.newKey(t)
	cb, _ := h.newKey(t)
	v1, _ := h.newKey(t)
	first := h.createCandidate(t, ca)
	second := h.createCandidate(t, cb)
	voterAddr := h.createVoter(t, v1, models.IdentityHash{})

	require.NoError(t, h.vote(t, v1, voterAddr, first))
	assert.ErrorIs(t, h.vote(t, v1, voterAddr, second), program.ErrAlreadyVoted)

	assert.Equal(t, uint64(1), h.candidate(t, first).NumVotes)
	assert.Equal(t, uint64(0), h.candidate(t, second).NumVotes)
	assert.Equal(t, first, h.voter(t, voterAddr).VoteWho)
}

func TestMissingSignature(t *testing.T) {
	h := newHarness(t)
	_, ownerID := h.newKey(t)

	tx := program.NewCreateCandidateTransaction(h.id(h.payer), ownerID)
	_, err := h.submit(t, tx, h.payer)
	assert.Equal(t, program.CodeMissingSignature, program.CodeOf(err))

	_, err = h.ledger.GetCandidate(context.Background(), tx.Accounts[program.SlotRecord])
	assert.Equal(t, program.CodeAccountNotInitialized, program.CodeOf(err))
}

func TestTamperedTransaction(t *testing.T) {
	h := newHarness(t)
	owner, _ := h.newKey(t)
	_, otherID := h.newKey(t)

	tx := program.NewCreateCandidateTransaction(h.id(h.payer), h.id(owner))
	require.NoError(t, h.keys.SignTransaction(tx, h.payer, owner))
	// swap the owner after signing
	tx.Accounts[program.SlotOwner] = otherID
	tx.Accounts[program.SlotRecord] = h.ledger.CandidateAddress(otherID)

	_, err := h.ledger.Submit(context.Background(), tx)
	assert.Equal(t, program.CodeMissingSignature, program.CodeOf(err))
}

func TestRecordAddressMustBeDerived(t *testing.T) {
	h := newHarness(t)
	owner, ownerID := h.newKey(t)

	tx := program.NewCreateVoterTransaction(h.id(h.payer), ownerID, models.IdentityHash{})
	tx.Accounts[program.SlotRecord] = h.ledger.CandidateAddress(ownerID)
	_, err := h.submit(t, tx, h.payer, owner)
	assert.Equal(t, program.CodeAddressMismatch, program.CodeOf(err))
}

func TestVoteAccountChecks(t *testing.T) {
	h := newHarness(t)
	c1, _ := h.newKey(t)
	v1, _ := h.newKey(t)
	v2, _ := h.newKey(t)
	candidateAddr := h.createCandidate(t, c1)
	voterAddr := h.createVoter(t, v1, models.IdentityHash{})
	otherVoter := h.createVoter(t, v2, models.IdentityHash{})

	err := h.vote(t, v1, voterAddr, otherVoter)
	assert.Equal(t, program.CodeAccountKindMismatch, program.CodeOf(err))

	err = h.vote(t, v1, candidateAddr, candidateAddr)
	assert.Equal(t, program.CodeInvalidInstruction, program.CodeOf(err))

	err = h.vote(t, v1, voterAddr, h.ledger.CandidateAddress(h.id(v2)))
	assert.Equal(t, program.CodeAccountNotInitialized, program.CodeOf(err))

	assert.False(t, h.voter(t, voterAddr).Voted)
}

func TestConcurrentVotesSameCandidate(t *testing.T) {
	h := newHarness(t)
	c1, _ := h.newKey(t)
	candidateAddr := h.createCandidate(t, c1)

	const voters = 16
	type ballot struct {
		key     *ecdsa.PrivateKey
		address models.Pubkey
	}
	ballots := make([]ballot, voters)
	for i := range ballots {
		key, _ := h.newKey(t)
		ballots[i] = ballot{key: key, address: h.createVoter(t, key, models.IdentityHash{byte(i)})}
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for _, b := range ballots {
		tx := program.NewCastVoteTransaction(h.id(h.payer), h.id(b.key), b.address, candidateAddr)
		require.NoError(t, h.keys.SignTransaction(tx, h.payer, b.key))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Submit(context.Background(), tx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, uint64(voters), h.candidate(t, candidateAddr).NumVotes)
	report, err := h.ledger.VerifyTally(context.Background())
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.Equal(t, voters, report.VotesCast)
}

func TestConcurrentDoubleVote(t *testing.T) {
	h := newHarness(t)
	v1, _ := h.newKey(t)
	voterAddr := h.createVoter(t, v1, models.IdentityHash{})

	const attempts = 8
	candidates := make([]models.Pubkey, attempts)
	txs := make([]*models.Transaction, attempts)
	for i := range candidates {
		owner, _ := h.newKey(t)
		candidates[i] = h.createCandidate(t, owner)
		txs[i] = program.NewCastVoteTransaction(h.id(h.payer), h.id(v1), voterAddr, candidates[i])
		require.NoError(t, h.keys.SignTransaction(txs[i], h.payer, v1))
	}

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *models.Transaction) {
			defer wg.Done()
			_, err := h.ledger.Submit(context.Background(), tx)
			results <- err
		}(tx)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, program.ErrAlreadyVoted)
	}
	assert.Equal(t, 1, succeeded)

	var total uint64
	for _, c := range candidates {
		total += h.candidate(t, c).NumVotes
	}
	assert.Equal(t, uint64(1), total)
	assert.Contains(t, candidates, h.voter(t, voterAddr).VoteWho)
}

func TestJournalAndMetrics(t *testing.T) {
	h := newHarness(t)
	c1, _ := h.newKey(t)
	h.createCandidate(t, c1)
	_, err := h.submit(t, program.NewCreateCandidateTransaction(h.id(h.payer), h.id(c1)), h.payer, c1)
	require.Error(t, err)

	journal := h.ledger.Journal()
	require.NoError(t, journal.Validate())
	require.Len(t, journal.Blocks(), 2)
	first, err := journal.Receipt(0)
	require.NoError(t, err)
	assert.Equal(t, models.TxCommitted, first.Status)
	assert.ElementsMatch(t, []models.Pubkey{h.id(h.payer), h.id(c1)}, first.Signers)
	second, err := journal.Receipt(1)
	require.NoError(t, err)
	assert.Equal(t, models.TxRejected, second.Status)

	m := h.ledger.Metrics().GetMetrics().Instructions[string(models.InstructionCreateCandidate)]
	assert.Equal(t, 2, m.Submitted)
	assert.Equal(t, 1, m.Committed)
	assert.Equal(t, 1, m.Rejections["ALREADY_EXISTS"])
	assert.Equal(t, 0, m.InFlight)
}

func TestVerifyTallyDetectsMismatch(t *testing.T) {
	h := newHarness(t)
	c1, _ := h.newKey(t)
	v1, _ := h.newKey(t)
	candidateAddr := h.createCandidate(t, c1)
	voterAddr := h.createVoter(t, v1, models.IdentityHash{})
	require.NoError(t, h.vote(t, v1, voterAddr, candidateAddr))

	report, err := h.ledger.VerifyTally(context.Background())
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.Equal(t, uint64(1), report.Results[candidateAddr.String()])

	// inflate the stored tally behind the program's back
	require.NoError(t, h.accounts.Update(context.Background(), func(tx storage.Tx) error {
		data, err := (&models.Candidate{Owner: h.id(c1), NumVotes: 5}).MarshalBinary()
		require.NoError(t, err)
		return tx.Put(candidateAddr, data)
	}))

	report, err = h.ledger.VerifyTally(context.Background())
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, TallyMismatch{Candidate: candidateAddr, Recorded: 5, Counted: 1}, report.Mismatches[0])
}

func TestSubmitNil(t *testing.T) {
	h := newHarness(t)
	_, err := h.ledger.Submit(context.Background(), nil)
	assert.Equal(t, program.CodeInvalidInstruction, program.CodeOf(err))
}
