package main

import (
	"fmt"

	"github.com/coderheist/rest.ai-sub000/internal/server"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed API token",
	Long:  "Mints a JWT for the given tenant and user with the configured secret. Intended for local development and scripts.",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

var (
	tokenTenant string
	tokenUser   string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "Tenant ID (required)")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID (required)")

	if err := tokenCmd.MarkFlagRequired("tenant"); err != nil {
		panic(fmt.Sprintf("failed to mark tenant flag as required: %v", err))
	}
	if err := tokenCmd.MarkFlagRequired("user"); err != nil {
		panic(fmt.Sprintf("failed to mark user flag as required: %v", err))
	}

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	tenantID, err := uuid.Parse(tokenTenant)
	if err != nil {
		return fmt.Errorf("invalid tenant ID %q: %w", tokenTenant, err)
	}
	userID, err := uuid.Parse(tokenUser)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", tokenUser, err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jwtConfig, err := cfg.Auth.JWT()
	if err != nil {
		return err
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(tenantID, userID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
