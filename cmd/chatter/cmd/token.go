package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nfrund/chatter/internal/identity"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Mint a development token",
	Long: `Mint a bearer token for username, signed with JWT_SECRET.

Examples:
  chatter token alice
  chatter token bob --ttl 15m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		oracle, err := identity.NewJWTOracle(secret)
		if err != nil {
			return err
		}
		tok, err := oracle.Issue(args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
