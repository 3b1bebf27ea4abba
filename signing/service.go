package signing

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"voting-ledger/models"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Service verifies who authorized a transaction. The ledger consumes its
// output only as a set of identity keys.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// GenerateKeyPair generates a new secp256k1 key pair
func (s *Service) GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Keccak256 computes Keccak-256 hash
func (s *Service) Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// IdentityOf derives the identity key of a public key.
func (s *Service) IdentityOf(pub *ecdsa.PublicKey) models.Pubkey {
	var pk models.Pubkey
	if pub == nil || pub.X == nil || pub.Y == nil {
		return pk
	}
	copy(pk[:], s.Keccak256(crypto.FromECDSAPub(pub)[1:]))
	return pk
}

// Sign creates a recoverable signature of data using private key
func (s *Service) Sign(data []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(s.Keccak256(data), privateKey)
}

// Recover returns the identity that produced signature over data.
func (s *Service) Recover(data, signature []byte) (models.Pubkey, error) {
	if len(signature) != crypto.SignatureLength {
		return models.Pubkey{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	pub, err := crypto.SigToPub(s.Keccak256(data), signature)
	if err != nil {
		return models.Pubkey{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return s.IdentityOf(pub), nil
}

// VerifySignature verifies the signature of data against an identity key
func (s *Service) VerifySignature(data, signature []byte, identity models.Pubkey) bool {
	signer, err := s.Recover(data, signature)
	if err != nil {
		return false
	}
	return signer == identity
}

// SignTransaction appends one signature per key over the transaction message.
func (s *Service) SignTransaction(tx *models.Transaction, keys ...*ecdsa.PrivateKey) error {
	msg := tx.Message()
	for _, key := range keys {
		sig, err := s.Sign(msg, key)
		if err != nil {
			return fmt.Errorf("failed to sign transaction: %w", err)
		}
		tx.Signatures = append(tx.Signatures, sig)
	}
	return nil
}

// RecoverSigners returns the distinct identities that signed tx, in
// signature order.
func (s *Service) RecoverSigners(tx *models.Transaction) ([]models.Pubkey, error) {
	msg := tx.Message()
	seen := make(map[models.Pubkey]bool, len(tx.Signatures))
	signers := make([]models.Pubkey, 0, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		signer, err := s.Recover(msg, sig)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		if seen[signer] {
			continue
		}
		seen[signer] = true
		signers = append(signers, signer)
	}
	return signers, nil
}

// IdentityHash digests an external credential, such as a national ID
// number, into the form stored on voter records.
func IdentityHash(credential string) models.IdentityHash {
	return models.IdentityHash(sha256.Sum256([]byte(credential)))
}
