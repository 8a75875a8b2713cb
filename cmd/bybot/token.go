package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bybot/pagare-worker/internal/server"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the review API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ttl := a.cfg.Server.TokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		jwtService, err := server.NewJWTService(a.cfg.Server.JWTSecret, ttl)
		if err != nil {
			return err
		}
		token, err := jwtService.GenerateToken(tokenSubject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Reviewer name stored as the token subject (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to JWT_TTL)")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}
