package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ciphera/internal/domain/types"
)

// rotateCmd runs RotateSignedPreKeyIfNeeded and, when it rotates,
// publishes the new signed pre-key to the directory server so future
// senders pick it up.
func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Rotate your signed pre-key if it has aged out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := appCtx.Keys.RotateSignedPreKeyIfNeeded(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("rotating signed pre-key: %w", err)
			}
			if !result.Rotated {
				fmt.Println("Signed pre-key is still current; nothing to do.")
				return nil
			}
			fmt.Printf("Rotated to signed pre-key id %d.\n", result.NewBundle.SignedPreKeyID)

			if appCtx.Directory == nil || appCtx.PeerID == "" {
				fmt.Println("No directory server configured; new signed pre-key was not published.")
				return nil
			}
			upload := types.DirectoryUpload{
				PeerID:                appCtx.PeerID,
				DeviceID:              appCtx.DeviceID,
				IdentityPublic:        result.NewBundle.IdentityPublic,
				IdentitySigningPublic: result.NewBundle.IdentitySigningPublic,
				SignedPreKey: types.SignedPreKeyPublic{
					ID:        result.NewBundle.SignedPreKeyID,
					Pub:       result.NewBundle.SignedPreKeyPublic,
					Signature: result.NewBundle.SignedPreKeySignature,
				},
			}
			if err := appCtx.Directory.UploadBundle(cmd.Context(), upload); err != nil {
				return fmt.Errorf("publishing rotated signed pre-key: %w", err)
			}
			fmt.Println("Published rotated signed pre-key to the directory server.")
			return nil
		},
	}
}
