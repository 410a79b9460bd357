package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ciphera/internal/primitives"
)

// initCmd creates a new identity (or reports the existing one) by
// generating X25519 and Ed25519 keypairs plus the first signed pre-key
// and one-time pre-key batch, storing everything encrypted on disk.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create your local identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := appCtx.Keys.Initialize(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("initializing identity: %w", err)
			}
			if !result.NewDevice {
				fmt.Println("Identity already exists.")
			} else {
				fmt.Println("Identity created.")
			}

			identity, err := appCtx.Keys.Identity(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading identity: %w", err)
			}
			fmt.Printf("Device id: %s\n", appCtx.DeviceID)
			fmt.Printf("Fingerprint: %s\n", primitives.Fingerprint(identity.XPub.Slice()))
			return nil
		},
	}
}
