package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"civicportal/internal/session/models"
	"civicportal/internal/session/token"
	id "civicportal/pkg/domain"
)

type tokenOutput struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Expires  string `json:"expires_in"`
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with session tokens",
	}

	var (
		userID   string
		tenantID string
		role     string
		asJSON   bool
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a session token signed with the configured key",
		Long: `Mint a session token for local testing.

The token is signed with the configured session key, so it only works
against a portal sharing that key. A user ID is generated when omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tenant, err := id.ParseTenantID(tenantID)
			if err != nil {
				return fmt.Errorf("--tenant: %w", err)
			}
			user := id.UserID(uuid.New())
			if userID != "" {
				if user, err = id.ParseUserID(userID); err != nil {
					return fmt.Errorf("--user: %w", err)
				}
			}
			r, ok := models.ParseRole(role)
			if !ok || r == models.RoleNone {
				return fmt.Errorf("--role must be citizen, staff or admin")
			}

			svc := token.New(cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.Audience, cfg.Session.TTL)
			signed, err := svc.Mint(cmd.Context(), user, tenant, r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, signed)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tokenOutput{
				Token:    signed,
				UserID:   user.String(),
				TenantID: tenant.String(),
				Role:     string(r),
				Expires:  cfg.Session.TTL.String(),
			})
		},
	}
	mint.Flags().StringVar(&tenantID, "tenant", "", "tenant ID (UUID)")
	mint.Flags().StringVar(&userID, "user", "", "user ID (UUID); generated when empty")
	mint.Flags().StringVar(&role, "role", "citizen", "citizen, staff or admin")
	mint.Flags().BoolVar(&asJSON, "json", false, "print JSON with the token's identity")
	_ = mint.MarkFlagRequired("tenant")

	cmd.AddCommand(mint)
	return cmd
}
