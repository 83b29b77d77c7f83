package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsarna/parley/pkg/parley/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint an access token for local development",
	Long: `Mint an HS256 access token for the given user id, signed with the same
secret as the server's auth.hmac_secret.

The secret defaults to the PARLEY_SECRET environment variable.

Examples:
  parley token alice --secret dev-secret
  PARLEY_SECRET=dev-secret parley token bob --ttl 1h`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

var (
	tokenSecret   string
	tokenTTL      time.Duration
	tokenAudience string
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "HMAC secret (default $PARLEY_SECRET)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenAudience, "audience", "", "audience claim")
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := tokenSecret
	if secret == "" {
		secret = os.Getenv("PARLEY_SECRET")
	}

	verifier, err := auth.NewHMACVerifier(secret, 0)
	if err != nil {
		return err
	}
	verifier.WithAudience(tokenAudience)

	token, err := verifier.Sign(args[0], tokenTTL)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
