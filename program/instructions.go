package program

import (
	"fmt"

	"github.com/google/uuid"

	"voting-ledger/models"
)

// Account slot positions inside Transaction.Accounts.
const (
	SlotPayer = 0
	SlotOwner = 1
	// SlotRecord is the record allocated by create_candidate and create_voter.
	SlotRecord = 2

	SlotVoterSigner = 1
	SlotVoter       = 2
	SlotCandidate   = 3
)

// Layout describes the envelope shape an instruction accepts.
type Layout struct {
	Accounts int
	Signers  []int
	DataLen  int
}

var layouts = map[models.Instruction]Layout{
	models.InstructionCreateCandidate: {Accounts: 3, Signers: []int{SlotPayer, SlotOwner}},
	models.InstructionCreateVoter:     {Accounts: 3, Signers: []int{SlotPayer, SlotOwner}, DataLen: 32},
	models.InstructionCastVote:        {Accounts: 4, Signers: []int{SlotPayer, SlotVoterSigner}},
}

// CheckShape validates account count and data length of tx.
func CheckShape(tx *models.Transaction) (Layout, error) {
	layout, ok := layouts[tx.Instruction]
	if !ok {
		return Layout{}, Reject(CodeInvalidInstruction, fmt.Sprintf("unknown instruction %q", tx.Instruction))
	}
	if tx.ProgramID != ID {
		return Layout{}, Reject(CodeInvalidInstruction, fmt.Sprintf("transaction targets program %s", tx.ProgramID))
	}
	if len(tx.Accounts) != layout.Accounts {
		return Layout{}, Reject(CodeInvalidInstruction,
			fmt.Sprintf("%s expects %d accounts, got %d", tx.Instruction, layout.Accounts, len(tx.Accounts)))
	}
	if len(tx.Data) != layout.DataLen {
		return Layout{}, Reject(CodeInvalidInstruction,
			fmt.Sprintf("%s expects %d data bytes, got %d", tx.Instruction, layout.DataLen, len(tx.Data)))
	}
	return layout, nil
}

func newTransaction(ins models.Instruction, accounts []models.Pubkey, data []byte) *models.Transaction {
	return &models.Transaction{
		ID:          uuid.New(),
		ProgramID:   ID,
		Instruction: ins,
		Accounts:    accounts,
		Data:        data,
	}
}

func NewCreateCandidateTransaction(payer, owner models.Pubkey) *models.Transaction {
	return newTransaction(models.InstructionCreateCandidate, []models.Pubkey{
		payer,
		owner,
		models.CandidateAddress(ID, owner),
	}, nil)
}

func NewCreateVoterTransaction(payer, owner models.Pubkey, identityHash models.IdentityHash) *models.Transaction {
	return newTransaction(models.InstructionCreateVoter, []models.Pubkey{
		payer,
		owner,
		models.VoterAddress(ID, owner),
	}, identityHash[:])
}

// NewCastVoteTransaction references records by address; voter and
// candidate are record addresses, not owner keys.
func NewCastVoteTransaction(payer, voterSigner, voter, candidate models.Pubkey) *models.Transaction {
	return newTransaction(models.InstructionCastVote, []models.Pubkey{
		payer,
		voterSigner,
		voter,
		candidate,
	}, nil)
}
