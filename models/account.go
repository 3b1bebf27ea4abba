// File: models/account.go
package models

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// DiscriminatorLength is the size of the record kind prefix.
const DiscriminatorLength = 8

var (
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrInvalidLength         = errors.New("invalid account data length")
)

// Kind names a record type stored on the ledger.
type Kind string

const (
	KindCandidate Kind = "Candidate"
	KindVoter     Kind = "Voter"
)

// Discriminator returns the fixed prefix that tags stored data with its kind.
func (k Kind) Discriminator() [DiscriminatorLength]byte {
	var d [DiscriminatorLength]byte
	copy(d[:], crypto.Keccak256([]byte("account:"+string(k))))
	return d
}

// KindOf reports which record kind a stored buffer holds.
func KindOf(data []byte) (Kind, error) {
	if len(data) < DiscriminatorLength {
		return "", ErrInvalidLength
	}
	for _, k := range []Kind{KindCandidate, KindVoter} {
		d := k.Discriminator()
		if bytes.Equal(data[:DiscriminatorLength], d[:]) {
			return k, nil
		}
	}
	return "", ErrDiscriminatorMismatch
}

func checkHeader(data []byte, kind Kind, size int) error {
	if len(data) < DiscriminatorLength {
		return fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(data))
	}
	d := kind.Discriminator()
	if !bytes.Equal(data[:DiscriminatorLength], d[:]) {
		return fmt.Errorf("%w: expected %s", ErrDiscriminatorMismatch, kind)
	}
	if len(data) != size {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidLength, kind, size, len(data))
	}
	return nil
}
