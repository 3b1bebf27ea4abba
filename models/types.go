// File: models/types.go
package models

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// PubkeyLength is the size of identity keys and record addresses.
const PubkeyLength = 32

// Pubkey is a participant identity key or a derived record address.
type Pubkey [PubkeyLength]byte

// IdentityHash is an external credential digest stored on a voter record.
type IdentityHash [32]byte

func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeyLength {
		return pk, fmt.Errorf("invalid pubkey length: got %d, want %d", len(b), PubkeyLength)
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePubkey decodes a 0x-prefixed hex string.
func ParsePubkey(s string) (Pubkey, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("failed to decode pubkey %q: %w", s, err)
	}
	return PubkeyFromBytes(b)
}

func (pk Pubkey) Bytes() []byte { return pk[:] }

func (pk Pubkey) IsZero() bool { return pk == Pubkey{} }

func (pk Pubkey) Equal(other Pubkey) bool { return bytes.Equal(pk[:], other[:]) }

func (pk Pubkey) String() string { return hexutil.Encode(pk[:]) }

func (pk Pubkey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

func (h IdentityHash) String() string { return hexutil.Encode(h[:]) }

func (h IdentityHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *IdentityHash) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("failed to decode identity hash: %w", err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("invalid identity hash length: got %d, want %d", len(b), len(h))
	}
	copy(h[:], b)
	return nil
}

// Seed tags for record address derivation.
const (
	CandidateSeed = "candidate"
	VoterSeed     = "voter"
)

const addressMarker = "ProgramDerivedAddress"

// DeriveAddress maps seeds and the owning program to a record address.
// The same inputs always produce the same address, so the existence of a
// record for an owner is answerable by address lookup alone.
func DeriveAddress(programID Pubkey, seeds ...[]byte) Pubkey {
	parts := make([][]byte, 0, len(seeds)+2)
	parts = append(parts, seeds...)
	parts = append(parts, programID[:], []byte(addressMarker))
	return Pubkey(crypto.Keccak256Hash(parts...))
}

func CandidateAddress(programID, owner Pubkey) Pubkey {
	return DeriveAddress(programID, owner[:], []byte(CandidateSeed))
}

func VoterAddress(programID, owner Pubkey) Pubkey {
	return DeriveAddress(programID, owner[:], []byte(VoterSeed))
}
