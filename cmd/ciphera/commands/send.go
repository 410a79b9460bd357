package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain/types"
)

// sendCmd encrypts plaintext for (peer, device) and delivers it over the
// configured transport, running X3DH first if no session exists yet.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <device> <message>",
		Short: "Encrypt and send a message to a peer device",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Transport == nil {
				return fmt.Errorf("no transport configured. use --directory")
			}
			peer := types.PeerID(args[0])
			device := types.DeviceID(args[1])
			plaintext := []byte(args[2])

			var bundle *types.PreKeyBundle
			has, err := appCtx.Sessions.HasSession(cmd.Context(), peer, device)
			if err != nil {
				return fmt.Errorf("checking session: %w", err)
			}
			if !has {
				if appCtx.Directory == nil {
					return fmt.Errorf("no session with %s/%s yet and no directory configured to fetch a bundle", peer, device)
				}
				fetched, err := appCtx.Directory.FetchBundle(cmd.Context(), peer, device)
				if err != nil {
					return fmt.Errorf("fetching bundle for %s/%s: %w", peer, device, err)
				}
				bundle = &fetched
			}

			wire, messageID, err := appCtx.Sessions.Encrypt(cmd.Context(), peer, device, plaintext, bundle)
			if err != nil {
				return fmt.Errorf("encrypting message: %w", err)
			}

			if err := appCtx.Transport.Send(cmd.Context(), appCtx.PeerID, appCtx.DeviceID, peer, device, messageID, wire); err != nil {
				return fmt.Errorf("sending message: %w", err)
			}

			fmt.Println("Message sent")
			return nil
		},
	}
}
