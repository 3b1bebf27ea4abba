// File: models/candidate.go
package models

import "encoding/binary"

// CandidateSize is the stored size of a Candidate including its discriminator.
const CandidateSize = DiscriminatorLength + PubkeyLength + 8

// Candidate is a registered candidate and its vote tally.
type Candidate struct {
	Owner    Pubkey `json:"owner"`
	NumVotes uint64 `json:"num_votes"`
}

func (c *Candidate) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CandidateSize)
	d := KindCandidate.Discriminator()
	off := copy(buf, d[:])
	off += copy(buf[off:], c.Owner[:])
	binary.LittleEndian.PutUint64(buf[off:], c.NumVotes)
	return buf, nil
}

func (c *Candidate) UnmarshalBinary(data []byte) error {
	if err := checkHeader(data, KindCandidate, CandidateSize); err != nil {
		return err
	}
	off := DiscriminatorLength
	off += copy(c.Owner[:], data[off:off+PubkeyLength])
	c.NumVotes = binary.LittleEndian.Uint64(data[off:])
	return nil
}
