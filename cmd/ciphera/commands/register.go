package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain/types"
)

// registerCmd tops up the local one-time pre-key pool and publishes the
// current bundle (identity keys, signed pre-key, one-time pre-keys) to
// the directory server.
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your prekey bundle to the directory server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Directory == nil {
				return fmt.Errorf("no directory server configured. use --directory")
			}
			if appCtx.PeerID == "" {
				return fmt.Errorf("--peer-id required")
			}

			identity, err := appCtx.Keys.Identity(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading identity: %w", err)
			}
			spk, err := appCtx.Keys.CurrentSignedPreKey(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading signed pre-key: %w", err)
			}
			opks, err := appCtx.Keys.GenerateOneTimePreKeys(cmd.Context(), 100)
			if err != nil {
				return fmt.Errorf("generating one-time pre-keys: %w", err)
			}

			upload := types.DirectoryUpload{
				PeerID:                appCtx.PeerID,
				DeviceID:              appCtx.DeviceID,
				IdentityPublic:        identity.XPub,
				IdentitySigningPublic: identity.EdPub,
				SignedPreKey:          spk.Public(),
				OneTimePreKeys:        opks,
			}
			if err := appCtx.Directory.UploadBundle(cmd.Context(), upload); err != nil {
				return fmt.Errorf("uploading bundle: %w", err)
			}

			fmt.Printf("Registered %d one-time pre-keys for %s/%s\n", len(opks), appCtx.PeerID, appCtx.DeviceID)
			return nil
		},
	}
}
