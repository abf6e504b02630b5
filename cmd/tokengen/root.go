package main

import (
	"encoding/json"
	"fmt"
	"time"

	"custody-vault/config"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/service"

	"github.com/spf13/cobra"
)

// Options holds the flags of the tokengen command.
type Options struct {
	ConfigPath string
	Secret     string
	Issuer     string
	Expiry     time.Duration
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

type tokenOutput struct {
	Account   string    `json:"account"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRootCommand creates the tokengen command. Flags override values read
// from the vault configuration (file or CV_ environment variables).
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "tokengen <account>",
		Short: "Mint a bearer token for a vault account",
		Long: "Mint an HS256 bearer token whose subject is the given account identity.\n" +
			"The signing secret must match the vault's jwt.secret.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokengen(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the vault config file")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "signing secret (overrides jwt.secret)")
	cmd.Flags().StringVar(&opts.Issuer, "issuer", "", "token issuer (overrides jwt.issuer)")
	cmd.Flags().DurationVar(&opts.Expiry, "expiry", 0, "token lifetime (overrides jwt.expiry)")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

func runTokengen(cmd *cobra.Command, opts *Options, raw string) error {
	if !isValidFormat(opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
	}

	account := domain.AccountID(raw)
	if !account.Valid() {
		return fmt.Errorf("invalid account identity %q", raw)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	secret, issuer, expiry := cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry
	if opts.Secret != "" {
		secret = opts.Secret
	}
	if opts.Issuer != "" {
		issuer = opts.Issuer
	}
	if opts.Expiry > 0 {
		expiry = opts.Expiry
	}
	if secret == "" {
		return fmt.Errorf("no signing secret: set --secret or jwt.secret")
	}
	if expiry <= 0 {
		return fmt.Errorf("token lifetime must be positive, got %s", expiry)
	}

	token, expiresAt, err := service.NewJWTTokenService(secret, expiry, issuer).Generate(account)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tokenOutput{Account: account.String(), Token: token, ExpiresAt: expiresAt.UTC()})
	}
	fmt.Fprintln(out, token)
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
