package main

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/seatpack-sync/internal/config"
	"github.com/iliyamo/seatpack-sync/internal/middleware"
	"github.com/iliyamo/seatpack-sync/internal/utils"
)

func newTokenCommand() *cobra.Command {
	var (
		subject string
		role    string
		ttl     int
		secret  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a scraper worker or operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToUpper(strings.TrimSpace(role))
			if role != middleware.RoleWorker && role != middleware.RoleOperator {
				return errors.New("role must be WORKER or OPERATOR")
			}
			config.LoadDotEnv()
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if ttl <= 0 {
				ttl = config.WorkerTokenTTL()
			}
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tok, err := utils.NewWorkerToken(secret, subject, role, ttl)
			if err != nil {
				return err
			}
			return writeJSON(cmd, tok)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, e.g. the worker name")
	cmd.Flags().StringVar(&role, "role", middleware.RoleWorker, "WORKER or OPERATOR")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "Lifetime in minutes (default WORKER_TOKEN_TTL_MIN)")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (default JWT_SECRET)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
