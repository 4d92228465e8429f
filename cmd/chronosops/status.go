package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var statusSessionID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current state of an investigation session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sessionID, err := uuid.Parse(statusSessionID)
		if err != nil {
			return fmt.Errorf("parse --session: %w", err)
		}

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.shutdown(ctx)

		view, err := a.db.SessionStatus(ctx, sessionID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSessionID, "session", "", "session id (required)")
	_ = statusCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(statusCmd)
}
