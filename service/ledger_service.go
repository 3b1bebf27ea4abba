package service

import (
	"context"
	"encoding"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"voting-ledger/blockchain"
	"voting-ledger/models"
	"voting-ledger/program"
	"voting-ledger/signing"
	"voting-ledger/storage"
)

// Options wires a LedgerService. Accounts and Journal are required.
type Options struct {
	Accounts storage.AccountStore
	Journal  *blockchain.Journal
	Signing  *signing.Service
	Metrics  *MetricsCollector
	Logger   zerolog.Logger
	Tracer   trace.Tracer
}

// LedgerService runs submitted transactions: it checks who signed, loads
// the referenced records, applies the program handler and commits the
// result in one storage transaction.
type LedgerService struct {
	accounts storage.AccountStore
	journal  *blockchain.Journal
	signing  *signing.Service
	metrics  *MetricsCollector
	log      zerolog.Logger
	tracer   trace.Tracer
}

func NewLedgerService(opts Options) (*LedgerService, error) {
	if opts.Accounts == nil {
		return nil, errors.New("account store is required")
	}
	if opts.Journal == nil {
		return nil, errors.New("journal is required")
	}
	if opts.Signing == nil {
		opts.Signing = signing.NewService()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetricsCollector()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("voting-ledger/service")
	}

	return &LedgerService{
		accounts: opts.Accounts,
		journal:  opts.Journal,
		signing:  opts.Signing,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		tracer:   opts.Tracer,
	}, nil
}

// Submit executes tx and journals its receipt. A rejected transaction
// returns both the receipt and the error; no record is changed.
func (ls *LedgerService) Submit(ctx context.Context, tx *models.Transaction) (*models.Receipt, error) {
	if tx == nil {
		return nil, program.Reject(program.CodeInvalidInstruction, "transaction is required")
	}

	ctx, span := ls.tracer.Start(ctx, "ledger.submit", trace.WithAttributes(
		attribute.String("tx.id", tx.ID.String()),
		attribute.String("tx.instruction", string(tx.Instruction)),
	))
	defer span.End()

	startTime := time.Now()
	ls.metrics.RecordSubmitStart(tx.Instruction)

	signers, err := ls.execute(ctx, tx)

	receipt := &models.Receipt{
		TransactionID: tx.ID,
		Instruction:   tx.Instruction,
		Accounts:      tx.Accounts,
		Signers:       signers,
		Status:        models.TxCommitted,
		Timestamp:     time.Now().Unix(),
	}
	var code program.Code
	if err != nil {
		code = program.CodeOf(err)
		receipt.Status = models.TxRejected
		receipt.ErrorCode = string(code)
		receipt.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(code))
	}
	ls.metrics.RecordSubmitEnd(tx.Instruction, code, time.Since(startTime))

	if _, jerr := ls.journal.Append(receipt); jerr != nil {
		ls.log.Warn().Err(jerr).Str("tx", tx.ID.String()).Msg("failed to journal receipt")
	}

	var event *zerolog.Event
	if err != nil {
		event = ls.log.Warn().Str("code", string(code)).Err(err)
	} else {
		event = ls.log.Info()
	}
	event.Str("tx", tx.ID.String()).
		Str("instruction", string(tx.Instruction)).
		Dur("took", time.Since(startTime)).
		Msg(string(receipt.Status))

	return receipt, err
}

func (ls *LedgerService) execute(ctx context.Context, tx *models.Transaction) ([]models.Pubkey, error) {
	layout, err := program.CheckShape(tx)
	if err != nil {
		return nil, err
	}

	signers, err := ls.signing.RecoverSigners(tx)
	if err != nil {
		return nil, program.Reject(program.CodeInvalidSignature, err.Error())
	}
	signed := make(map[models.Pubkey]bool, len(signers))
	for _, s := range signers {
		signed[s] = true
	}
	for _, slot := range layout.Signers {
		if key := tx.Accounts[slot]; !signed[key] {
			return signers, program.Reject(program.CodeMissingSignature,
				fmt.Sprintf("account %d (%s) must sign %s", slot, key, tx.Instruction))
		}
	}

	switch tx.Instruction {
	case models.InstructionCreateCandidate:
		err = ls.createCandidate(ctx, tx)
	case models.InstructionCreateVoter:
		err = ls.createVoter(ctx, tx)
	case models.InstructionCastVote:
		err = ls.castVote(ctx, tx)
	default:
		err = program.Reject(program.CodeInvalidInstruction, fmt.Sprintf("unknown instruction %q", tx.Instruction))
	}
	return signers, err
}

func (ls *LedgerService) createCandidate(ctx context.Context, tx *models.Transaction) error {
	payer := program.Signer{Key: tx.Accounts[program.SlotPayer]}
	owner := program.Signer{Key: tx.Accounts[program.SlotOwner]}
	address := tx.Accounts[program.SlotRecord]
	if want := models.CandidateAddress(program.ID, owner.Key); address != want {
		return addressMismatch(address, want)
	}

	return ls.accounts.Update(ctx, func(stx storage.Tx) error {
		candidate := program.Account[models.Candidate]{Address: address, Data: &models.Candidate{}}
		if err := allocate(stx, address, candidate.Data); err != nil {
			return err
		}
		program.CreateCandidate(payer, owner, candidate)
		return store(stx, address, candidate.Data)
	})
}

func (ls *LedgerService) createVoter(ctx context.Context, tx *models.Transaction) error {
	payer := program.Signer{Key: tx.Accounts[program.SlotPayer]}
	owner := program.Signer{Key: tx.Accounts[program.SlotOwner]}
	address := tx.Accounts[program.SlotRecord]
	if want := models.VoterAddress(program.ID, owner.Key); address != want {
		return addressMismatch(address, want)
	}
	var identityHash models.IdentityHash
	copy(identityHash[:], tx.Data)

	return ls.accounts.Update(ctx, func(stx storage.Tx) error {
		voter := program.Account[models.Voter]{Address: address, Data: &models.Voter{}}
		if err := allocate(stx, address, voter.Data); err != nil {
			return err
		}
		program.CreateVoter(payer, owner, voter, identityHash)
		return store(stx, address, voter.Data)
	})
}

func (ls *LedgerService) castVote(ctx context.Context, tx *models.Transaction) error {
	payer := program.Signer{Key: tx.Accounts[program.SlotPayer]}
	voterSigner := program.Signer{Key: tx.Accounts[program.SlotVoterSigner]}
	voterAddress := tx.Accounts[program.SlotVoter]
	candidateAddress := tx.Accounts[program.SlotCandidate]
	if voterAddress == candidateAddress {
		return program.Reject(program.CodeInvalidInstruction, "voter and candidate must be different accounts")
	}

	return ls.accounts.Update(ctx, func(stx storage.Tx) error {
		voter := program.Account[models.Voter]{Address: voterAddress, Data: &models.Voter{}}
		if err := load(stx, voterAddress, voter.Data); err != nil {
			return err
		}
		candidate := program.Account[models.Candidate]{Address: candidateAddress, Data: &models.Candidate{}}
		if err := load(stx, candidateAddress, candidate.Data); err != nil {
			return err
		}

		if err := program.CastVote(payer, voterSigner, voter, candidate); err != nil {
			return err
		}

		if err := store(stx, candidateAddress, candidate.Data); err != nil {
			return err
		}
		return store(stx, voterAddress, voter.Data)
	})
}

// GetCandidate returns the candidate stored at address.
func (ls *LedgerService) GetCandidate(ctx context.Context, address models.Pubkey) (*models.Candidate, error) {
	var candidate models.Candidate
	err := ls.accounts.View(ctx, func(stx storage.Tx) error {
		return load(stx, address, &candidate)
	})
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// GetVoter returns the voter stored at address.
func (ls *LedgerService) GetVoter(ctx context.Context, address models.Pubkey) (*models.Voter, error) {
	var voter models.Voter
	err := ls.accounts.View(ctx, func(stx storage.Tx) error {
		return load(stx, address, &voter)
	})
	if err != nil {
		return nil, err
	}
	return &voter, nil
}

func (ls *LedgerService) CandidateAddress(owner models.Pubkey) models.Pubkey {
	return models.CandidateAddress(program.ID, owner)
}

func (ls *LedgerService) VoterAddress(owner models.Pubkey) models.Pubkey {
	return models.VoterAddress(program.ID, owner)
}

func (ls *LedgerService) Journal() *blockchain.Journal {
	return ls.journal
}

func (ls *LedgerService) Metrics() *MetricsCollector {
	return ls.metrics
}

type record interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// allocate reserves address for a zero-valued record. It fails if the
// address already holds anything.
func allocate(stx storage.Tx, address models.Pubkey, empty record) error {
	data, err := empty.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return accountError(stx.Create(address, data), address)
}

func load(stx storage.Tx, address models.Pubkey, into record) error {
	data, err := stx.Get(address)
	if err != nil {
		return accountError(err, address)
	}
	if err := into.UnmarshalBinary(data); err != nil {
		return program.Reject(program.CodeAccountKindMismatch, fmt.Sprintf("account %s: %v", address, err))
	}
	return nil
}

func store(stx storage.Tx, address models.Pubkey, rec record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return accountError(stx.Put(address, data), address)
}

func accountError(err error, address models.Pubkey) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrAlreadyInitialized):
		return program.Reject(program.CodeAlreadyExists, fmt.Sprintf("account %s already in use", address))
	case errors.Is(err, storage.ErrNotFound):
		return program.Reject(program.CodeAccountNotInitialized, fmt.Sprintf("account %s is not initialized", address))
	default:
		return err
	}
}

func addressMismatch(got, want models.Pubkey) error {
	return program.Reject(program.CodeAddressMismatch, fmt.Sprintf("record address %s does not match derived address %s", got, want))
}
