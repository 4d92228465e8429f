package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rasike-dev/chronosops/internal/audit"
)

var verifySessionID string

var verifyChainCmd = &cobra.Command{
	Use:   "verify-chain",
	Short: "Verify the audit hash chain of an investigation session",
	Long: `Walk a session's audit chain in sequence order and recompute every
hash. Reports the first tampered, reordered, or missing event, or confirms
the chain is intact.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.shutdown(ctx)

		chainID := "session:" + verifySessionID
		events, err := a.db.ListAuditEvents(ctx, chainID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return fmt.Errorf("no audit events for session %s", verifySessionID)
		}

		res := audit.Verify(events)
		if !res.OK {
			return fmt.Errorf("chain %s broken at seq %d after %d verified event(s): %s",
				chainID, res.FirstFailureIndex, res.VerifiedCount, res.FirstFailureReason)
		}
		fmt.Printf("chain %s: %d event(s) verified, chain intact\n", chainID, res.VerifiedCount)
		return nil
	},
}

func init() {
	verifyChainCmd.Flags().StringVar(&verifySessionID, "session", "", "session id (required)")
	_ = verifyChainCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(verifyChainCmd)
}
