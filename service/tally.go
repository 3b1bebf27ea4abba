package service

import (
	"bytes"
	"context"
	"sort"

	"github.com/pkg/errors"

	"voting-ledger/models"
	"voting-ledger/storage"
)

// TallyReport compares every candidate's stored tally with the votes
// recorded on voter records.
type TallyReport struct {
	Candidates int               `json:"candidates"`
	Voters     int               `json:"voters"`
	VotesCast  int               `json:"votes_cast"`
	Results    map[string]uint64 `json:"results"`
	Mismatches []TallyMismatch   `json:"mismatches,omitempty"`
	IsValid    bool              `json:"is_valid"`
}

// TallyMismatch is a candidate address whose stored count disagrees with
// the voters pointing at it. Recorded is zero when no candidate exists
// at that address.
type TallyMismatch struct {
	Candidate models.Pubkey `json:"candidate"`
	Recorded  uint64        `json:"recorded"`
	Counted   uint64        `json:"counted"`
}

// VerifyTally scans all records in one read transaction.
func (ls *LedgerService) VerifyTally(ctx context.Context) (*TallyReport, error) {
	recorded := make(map[models.Pubkey]uint64)
	counted := make(map[models.Pubkey]uint64)
	report := &TallyReport{Results: make(map[string]uint64)}

	err := ls.accounts.View(ctx, func(stx storage.Tx) error {
		return stx.ForEach(func(address models.Pubkey, data []byte) error {
			kind, err := models.KindOf(data)
			if err != nil {
				return errors.Wrapf(err, "account %s", address)
			}
			switch kind {
			case models.KindCandidate:
				var c models.Candidate
				if err := c.UnmarshalBinary(data); err != nil {
					return errors.Wrapf(err, "candidate %s", address)
				}
				recorded[address] = c.NumVotes
				report.Candidates++
			case models.KindVoter:
				var v models.Voter
				if err := v.UnmarshalBinary(data); err != nil {
					return errors.Wrapf(err, "voter %s", address)
				}
				report.Voters++
				if v.Voted {
					counted[v.VoteWho]++
					report.VotesCast++
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for address, n := range recorded {
		report.Results[address.String()] = n
		if counted[address] != n {
			report.Mismatches = append(report.Mismatches, TallyMismatch{Candidate: address, Recorded: n, Counted: counted[address]})
		}
	}
	for address, n := range counted {
		if _, ok := recorded[address]; !ok {
			report.Mismatches = append(report.Mismatches, TallyMismatch{Candidate: address, Counted: n})
		}
	}
	sort.Slice(report.Mismatches, func(i, j int) bool {
		return bytes.Compare(report.Mismatches[i].Candidate[:], report.Mismatches[j].Candidate[:]) < 0
	})
	report.IsValid = len(report.Mismatches) == 0
	return report, nil
}
