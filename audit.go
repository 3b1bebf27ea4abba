package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(auditCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check candidate tallies against voter records and validate the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode(cfg)
		if err != nil {
			return err
		}
		defer n.Close()

		report, err := n.ledger.VerifyTally(cmd.Context())
		if err != nil {
			return err
		}
		for _, m := range report.Mismatches {
			n.log.Error().
				Stringer("candidate", m.Candidate).
				Uint64("recorded", m.Recorded).
				Uint64("counted", m.Counted).
				Msg("tally mismatch")
		}

		journalErr := n.ledger.Journal().Validate()
		if journalErr != nil {
			n.log.Error().Err(journalErr).Msg("journal is invalid")
		}

		n.log.Info().
			Int("candidates", report.Candidates).
			Int("voters", report.Voters).
			Int("votes_cast", report.VotesCast).
			Int("journal_blocks", len(n.ledger.Journal().Blocks())).
			Bool("tally_valid", report.IsValid).
			Msg("audit finished")

		if !report.IsValid {
			return fmt.Errorf("%d candidate tallies do not match voter records", len(report.Mismatches))
		}
		return journalErr
	},
}
