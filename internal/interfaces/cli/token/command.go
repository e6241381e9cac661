package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orris-inc/docpilot/internal/infrastructure/auth"
	"github.com/orris-inc/docpilot/internal/infrastructure/config"
	"github.com/orris-inc/docpilot/internal/shared/authorization"
)

var (
	env      string
	userID   uint
	role     string
	tenantID string
	service  string
	ttl      time.Duration
)

// NewCommand mints bearer tokens for local testing and for backend callers
// that consume points on behalf of users.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed API token",
		Long: `Mint a user access token, or with --service a long-lived service token.
Tokens are signed with auth.jwt_secret from the loaded configuration.`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().UintVar(&userID, "user-id", 0, "User ID for an access token")
	cmd.Flags().StringVar(&role, "role", string(authorization.RoleUser), "Role for an access token (user, admin)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID embedded in the token")
	cmd.Flags().StringVar(&service, "service", "", "Service name; mints a service token instead of an access token")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Lifetime of a service token")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessExpMinutes)

	token, err := mint(svc)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func mint(svc *auth.JWTService) (string, error) {
	if service != "" {
		if ttl <= 0 {
			return "", errors.New("--ttl must be positive")
		}
		return svc.GenerateService(service, ttl)
	}
	if userID == 0 {
		return "", errors.New("--user-id or --service is required")
	}
	r := authorization.ParseUserRole(role)
	if r == authorization.RoleService {
		return "", errors.New("use --service for service tokens")
	}
	return svc.Generate(userID, r, tenantID)
}
