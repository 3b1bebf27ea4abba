// File: models/block.go
package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Block is one entry of the transaction journal. Data holds an encoded
// Receipt.
type Block struct {
	Index      uint64 `json:"index"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
	Data       []byte `json:"data"`
	PrevHash   []byte `json:"prev_hash"`
	Hash       []byte `json:"hash"`
	Nonce      uint64 `json:"nonce"`
	Difficulty uint8  `json:"difficulty"` // leading zero bytes required
}

func NewBlock(index uint64, timestamp int64, data []byte, prevHash []byte, difficulty uint8) *Block {
	block := &Block{
		Index:      index,
		Timestamp:  timestamp,
		Data:       data,
		PrevHash:   prevHash,
		Difficulty: difficulty,
	}
	block.Mine()
	return block
}

func (b *Block) Mine() {
	target := make([]byte, b.Difficulty)
	for nonce := uint64(0); ; nonce++ {
		b.Nonce = nonce
		b.Hash = b.calculateHash()
		if bytes.HasPrefix(b.Hash, target) {
			return
		}
	}
}

func (b *Block) calculateHash() []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, b.Index)
	binary.Write(buffer, binary.BigEndian, b.Timestamp)
	buffer.Write(b.Data)
	buffer.Write(b.PrevHash)
	binary.Write(buffer, binary.BigEndian, b.Nonce)
	buffer.WriteByte(b.Difficulty)

	hash := sha256.Sum256(buffer.Bytes())
	return hash[:]
}

func (b *Block) Validate() bool {
	calculatedHash := b.calculateHash()
	if !bytes.Equal(calculatedHash, b.Hash) {
		return false
	}
	target := make([]byte, b.Difficulty)
	return bytes.HasPrefix(calculatedHash, target)
}

// VerifyChain reports the first broken link in blocks, if any.
func VerifyChain(blocks []*Block) error {
	for i, current := range blocks {
		if !current.Validate() {
			return fmt.Errorf("block %d has invalid hash", i)
		}
		if i == 0 {
			continue
		}
		previous := blocks[i-1]
		if !bytes.Equal(current.PrevHash, previous.Hash) {
			return fmt.Errorf("block %d has invalid previous hash link", i)
		}
		if current.Index != previous.Index+1 {
			return fmt.Errorf("block %d has invalid index", i)
		}
		if current.Timestamp <= previous.Timestamp {
			return fmt.Errorf("block %d has invalid timestamp", i)
		}
	}
	return nil
}

// ValidateChain validates the entire journal.
func ValidateChain(blocks []*Block) bool {
	return VerifyChain(blocks) == nil
}
