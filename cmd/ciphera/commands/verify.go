package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain/types"
)

// verifyCmd fetches a peer device's current bundle and reports whether
// its identity key matches what was previously pinned (TOFU), printing
// the pairwise safety number when it has changed. A device seen for the
// first time is pinned and reported as unchanged, without a safety
// number.
func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <peer> <device>",
		Short: "Check a peer device's safety number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Directory == nil {
				return fmt.Errorf("no directory server configured. use --directory")
			}
			peer := types.PeerID(args[0])
			device := types.DeviceID(args[1])

			bundle, err := appCtx.Directory.FetchBundle(cmd.Context(), peer, device)
			if err != nil {
				return fmt.Errorf("fetching bundle for %s/%s: %w", peer, device, err)
			}

			changed, safetyNumber, err := appCtx.Sessions.VerifyRemoteIdentity(cmd.Context(), peer, device, bundle.IdentityPublic)
			if err != nil {
				return fmt.Errorf("verifying identity: %w", err)
			}
			if !changed {
				fmt.Printf("%s/%s identity unchanged.\n", peer, device)
				return nil
			}
			fmt.Printf("%s/%s identity has changed.\n", peer, device)
			fmt.Printf("Safety number: %s\n", safetyNumber)
			return nil
		},
	}
}
