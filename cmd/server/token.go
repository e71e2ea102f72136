package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jrsteele09/go-studio-gateway/internal/config"
	"github.com/jrsteele09/go-studio-gateway/sessions/local"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect bearer tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var expiry time.Duration
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a local provider token for the seeded administrator",
		Long: "Issue a token the local session provider will accept. The gateway must share " +
			"JWT_SECRET, TOKEN_ISSUER and ADMIN_EMAIL with this command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := local.OptionsFromConfig(cfg)
			if len(opts.Secret) == 0 {
				return errors.New("JWT_SECRET must be set to issue tokens")
			}
			if expiry > 0 {
				opts.Expiry = expiry
			}

			repo := users.NewInMemoryUserRepo()
			if _, err := local.EnsureAdmin(repo, cfg.GetAdminEmail(), cfg.GetAdminPassword()); err != nil {
				return err
			}
			admin, err := repo.GetByEmail(cfg.GetAdminEmail())
			if err != nil {
				return err
			}
			provider, err := local.New(repo, opts)
			if err != nil {
				return err
			}
			session, err := provider.Issue(admin)
			if err != nil {
				return err
			}
			cmd.Println(session.Token)
			return nil
		},
	}
	issueCmd.Flags().DurationVar(&expiry, "expiry", 0, "Token lifetime. Defaults to ACCESS_TOKEN_EXPIRY.")

	verifyCmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token with the configured session provider and print its identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.GetSessionProvider() == config.ProviderLocal {
				return errors.New("local tokens are bound to the issuing server's user store; call GET /api/me instead")
			}
			parts, err := buildComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer parts.Close()

			identity, err := parts.verifier.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := identity.Validate(time.Now()); err != nil {
				return err
			}
			role, err := parts.resolver.ResolveRole(cmd.Context(), identity)
			if err != nil {
				return err
			}
			identity.Role = role

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(identity)
		},
	}

	tokenCmd.AddCommand(issueCmd, verifyCmd)
	return tokenCmd
}
