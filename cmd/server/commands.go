package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	jwttoken "miriesgo/internal/jwt_token"
	"miriesgo/internal/platform/config"
	"miriesgo/internal/platform/database"
	"miriesgo/internal/platform/logger"
	"miriesgo/internal/seeder"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/secrets"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.Up), string(database.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck // short-lived command

			if err := database.Migrate(pool.DB(), database.Direction(args[0])); err != nil {
				return err
			}
			version, dirty, err := database.Version(pool.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo companies, clients, loans and an administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			pool, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck // short-lived command

			if err := database.Migrate(pool.DB(), database.Up); err != nil {
				return err
			}
			st := postgresStores(pool)
			res, err := seeder.New(seeder.Stores{
				Companies: st.companies,
				Clients:   st.clients,
				Loans:     st.loans,
				Users:     st.users,
			}, st.tx, logger.New(cfg.LogLevel)).Seed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "companies=%d clients=%d loans=%d\n", res.Companies, res.Clients, res.Loans)
			if res.AdminPassword != "" {
				fmt.Fprintf(out, "administrator %s password: %s\n", seeder.AdminEmail, res.AdminPassword)
			}
			return nil
		},
	}
}

// newHashPasswordCmd prints a bcrypt hash for provisioning users by hand.
// The password is read from stdin so it stays out of shell history.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1024))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(string(raw), "\r\n")
			if password == "" {
				return errors.New("empty password")
			}
			hash, err := secrets.Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// newTokenCmd signs an access token with the configured key so API calls can
// be scripted against a local instance without logging in.
func newTokenCmd() *cobra.Command {
	var (
		userID    int64
		email     string
		role      string
		companyID int64
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if !cfg.IsDevelopment() {
				return errors.New("token issuing is only available in development")
			}
			r, err := id.ParseRole(role)
			if err != nil {
				return err
			}
			if userID <= 0 || email == "" {
				return errors.New("--user-id and --email are required")
			}
			sub := jwttoken.Subject{UserID: id.UserID(userID), Email: email, Role: r}
			if companyID > 0 {
				cid := id.CompanyID(companyID)
				sub.CompanyID = &cid
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			svc := jwttoken.NewJWTService(cfg.Auth.SecretKey, cfg.Auth.Issuer, cfg.Auth.Audience, ttl)
			tok, err := svc.GenerateAccessToken(cmd.Context(), sub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&userID, "user-id", 0, "user id the token is issued for")
	f.StringVar(&email, "email", "", "user email, used as the token subject")
	f.StringVar(&role, "role", string(id.RoleAnalyst), "admin, manager or analyst")
	f.Int64Var(&companyID, "company-id", 0, "company the user belongs to")
	f.DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to ACCESS_TOKEN_EXPIRE_MINUTES)")
	return cmd
}

func openDatabase(ctx context.Context) (*database.Pool, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	dbCfg.ConnectAttempts = 1
	pool, err := database.New(ctx, dbCfg, logger.New(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, errors.New("DATABASE_URL is required for this command")
	}
	return pool, nil
}
