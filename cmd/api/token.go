package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/theatre-api/pkg/auth"
)

// tokenCmd mints an access token for local use and integration tests.
func tokenCmd() *cobra.Command {
	var userID, facilityID string
	var roles []string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			fid := uuid.Nil
			if facilityID != "" {
				if fid, err = uuid.Parse(facilityID); err != nil {
					return fmt.Errorf("invalid --facility: %w", err)
				}
			}

			token, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL).
				GenerateAccessToken(uid, fid, roles...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&facilityID, "facility", "", "facility id; empty grants every facility")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role claim, repeatable")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
