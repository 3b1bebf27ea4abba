// Package program holds the voting state transitions. Handlers operate on
// records already loaded by the runtime and never touch storage; the
// runtime commits or discards their mutations as one unit.
package program

import (
	"math"

	"github.com/ethereum/go-ethereum/crypto"

	"voting-ledger/models"
)

// ID identifies this program in derived addresses and transactions.
var ID = models.Pubkey(crypto.Keccak256Hash([]byte("voting-ledger/program/v1")))

// Signer is an identity that authorized the current transaction.
type Signer struct {
	Key models.Pubkey
}

// Account is a record loaded for the duration of a single instruction.
type Account[T any] struct {
	Address models.Pubkey
	Data    *T
}

func CreateCandidate(payer, owner Signer, candidate Account[models.Candidate]) {
	candidate.Data.Owner = owner.Key
	candidate.Data.NumVotes = 0
}

// CreateVoter stores identityHash as given. Its content is not checked.
func CreateVoter(payer, owner Signer, voter Account[models.Voter], identityHash models.IdentityHash) {
	voter.Data.Owner = owner.Key
	voter.Data.IdentityHash = identityHash
	voter.Data.VoteWho = models.Pubkey{}
	voter.Data.Voted = false
}

// CastVote credits candidate with the vote of voter. Preconditions are
// checked before any field is written.
func CastVote(payer, voterSigner Signer, voter Account[models.Voter], candidate Account[models.Candidate]) error {
	if voter.Data.Voted {
		return ErrAlreadyVoted
	}
	if voterSigner.Key != voter.Data.Owner {
		return ErrNotOwner
	}
	if candidate.Data.NumVotes == math.MaxUint64 {
		return ErrTallyOverflow
	}

	candidate.Data.NumVotes++
	voter.Data.Voted = true
	voter.Data.VoteWho = candidate.Address
	return nil
}
