// File: models/transaction.go
package models

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

type Instruction string

const (
	InstructionCreateCandidate Instruction = "create_candidate"
	InstructionCreateVoter     Instruction = "create_voter"
	InstructionCastVote        Instruction = "cast_vote"
)

// Transaction is the envelope a caller submits to the ledger. Accounts are
// positional; each instruction defines which slot means what.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	ProgramID   Pubkey          `json:"program_id"`
	Instruction Instruction     `json:"instruction"`
	Accounts    []Pubkey        `json:"accounts"`
	Data        hexutil.Bytes   `json:"data,omitempty"`
	Signatures  []hexutil.Bytes `json:"signatures"`
}

// Message returns the bytes covered by signatures. Signatures themselves
// are excluded.
func (t *Transaction) Message() []byte {
	buf := make([]byte, 0, 16+PubkeyLength*(len(t.Accounts)+1)+len(t.Instruction)+len(t.Data)+16)
	buf = append(buf, t.ID[:]...)
	buf = append(buf, t.ProgramID[:]...)
	buf = binary.AppendUvarint(buf, uint64(len(t.Instruction)))
	buf = append(buf, t.Instruction...)
	buf = binary.AppendUvarint(buf, uint64(len(t.Accounts)))
	for _, acc := range t.Accounts {
		buf = append(buf, acc[:]...)
	}
	buf = binary.AppendUvarint(buf, uint64(len(t.Data)))
	buf = append(buf, t.Data...)
	return buf
}

type TxStatus string

const (
	TxCommitted TxStatus = "committed"
	TxRejected  TxStatus = "rejected"
)

// Receipt records the outcome of one submitted transaction.
type Receipt struct {
	TransactionID uuid.UUID   `json:"transaction_id"`
	Instruction   Instruction `json:"instruction"`
	Accounts      []Pubkey    `json:"accounts"`
	Signers       []Pubkey    `json:"signers"`
	Status        TxStatus    `json:"status"`
	ErrorCode     string      `json:"error_code,omitempty"`
	Error         string      `json:"error,omitempty"`
	Timestamp     int64       `json:"timestamp"`
}
