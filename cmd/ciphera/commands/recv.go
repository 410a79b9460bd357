package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
)

// recvCmd fetches this device's queued messages, decrypts each, and acks
// the ones it successfully processed so they are dropped from the
// mailbox.
func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Transport == nil {
				return fmt.Errorf("no transport configured. use --directory")
			}
			if appCtx.PeerID == "" {
				return fmt.Errorf("--peer-id required")
			}

			msgs, err := appCtx.Transport.Fetch(cmd.Context(), appCtx.PeerID, appCtx.DeviceID, 0)
			if err != nil {
				return fmt.Errorf("fetching messages: %w", err)
			}

			processed := 0
			for _, m := range msgs {
				plain, err := appCtx.Sessions.Decrypt(cmd.Context(), m.From, m.FromDevice, m.MessageID, m.Frame)
				if err != nil {
					if errors.Is(err, domain.ErrDuplicateMessage) {
						processed++
						continue
					}
					fmt.Printf("[%s/%s] decrypt failed: %v\n", m.From, m.FromDevice, err)
					break
				}
				fmt.Printf("[%s/%s] %s\n", m.From, m.FromDevice, string(plain.Plaintext))
				processed++
			}

			if processed > 0 {
				if err := appCtx.Transport.Ack(cmd.Context(), appCtx.PeerID, appCtx.DeviceID, processed); err != nil {
					return fmt.Errorf("acking messages: %w", err)
				}
			}
			return nil
		},
	}
}
