// File: models/voter.go
package models

// VoterSize is the stored size of a Voter including its discriminator.
const VoterSize = DiscriminatorLength + PubkeyLength + 32 + PubkeyLength + 1

// Voter is a registered voter. Once Voted is set it never reverts, and
// VoteWho is only meaningful while Voted is true.
type Voter struct {
	Owner        Pubkey       `json:"owner"`
	IdentityHash IdentityHash `json:"identity_hash"`
	VoteWho      Pubkey       `json:"vote_who"`
	Voted        bool         `json:"voted"`
}

func (v *Voter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, VoterSize)
	d := KindVoter.Discriminator()
	off := copy(buf, d[:])
	off += copy(buf[off:], v.Owner[:])
	off += copy(buf[off:], v.IdentityHash[:])
	off += copy(buf[off:], v.VoteWho[:])
	if v.Voted {
		buf[off] = 1
	}
	return buf, nil
}

func (v *Voter) UnmarshalBinary(data []byte) error {
	if err := checkHeader(data, KindVoter, VoterSize); err != nil {
		return err
	}
	off := DiscriminatorLength
	off += copy(v.Owner[:], data[off:off+PubkeyLength])
	off += copy(v.IdentityHash[:], data[off:off+32])
	off += copy(v.VoteWho[:], data[off:off+PubkeyLength])
	v.Voted = data[off] != 0
	return nil
}
