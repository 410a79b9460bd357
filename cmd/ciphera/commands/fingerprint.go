package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/primitives"
)

// fingerprintCmd prints the fingerprint of the locally stored identity.
func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print your identity fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := appCtx.Keys.Identity(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading identity: %w", err)
			}
			fmt.Printf("Fingerprint: %s\n", primitives.Fingerprint(identity.XPub.Slice()))
			return nil
		},
	}
}
