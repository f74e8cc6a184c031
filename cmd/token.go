package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/handler"
	"github.com/spf13/cobra"
)

var tokenOpts struct {
	userID int64
	ttl    time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "issue an API token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()
		secret := os.Getenv("DISPATCHD_JWT_SECRET")
		if secret == "" {
			return errors.New("DISPATCHD_JWT_SECRET is required")
		}
		cfg, err := repository.NewConfigRepository(configPath)
		if err != nil {
			return err
		}
		if _, err := cfg.UserByID(context.Background(), tokenOpts.userID); err != nil {
			return err
		}
		token, err := handler.NewAuthenticator(secret, cfg, nil).IssueToken(tokenOpts.userID, tokenOpts.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenOpts.userID, "user", 0, "user id")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
