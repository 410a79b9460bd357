package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ciphera/internal/app"
	"ciphera/internal/domain/types"
)

var (
	// These flags are shared across all commands.
	homeDir      string
	peerIDFlag   string
	passphrase   string
	directoryURL string

	// appCtx holds the wired dependencies after PersistentPreRunE.
	appCtx *app.App
)

// Execute initialises the application context and runs the root cobra command.
func Execute() error {
	root := &cobra.Command{
		Use:   "ciphera",
		Short: "End-to-end encrypted messaging CLI",
		// Before any sub-command runs we need to build out our App (dependencies).
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if homeDir == "" {
				if h, err := os.UserHomeDir(); err == nil {
					homeDir = filepath.Join(h, ".ciphera")
				}
			}
			if err := os.MkdirAll(homeDir, 0o700); err != nil {
				return fmt.Errorf("creating config dir: %w", err)
			}
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}

			deviceID, err := app.LoadOrCreateDeviceID(homeDir)
			if err != nil {
				return fmt.Errorf("loading device id: %w", err)
			}

			httpClient := &http.Client{
				Timeout: 15 * time.Second,
				Transport: &http.Transport{
					Proxy: http.ProxyFromEnvironment,
					DialContext: (&net.Dialer{
						Timeout:   5 * time.Second,
						KeepAlive: 30 * time.Second,
					}).DialContext,
					TLSHandshakeTimeout:   5 * time.Second,
					ExpectContinueTimeout: 1 * time.Second,
					IdleConnTimeout:       90 * time.Second,
					MaxIdleConns:          100,
					MaxIdleConnsPerHost:   10,
				},
			}

			cfg := app.DefaultConfig(homeDir)
			cfg.Passphrase = passphrase
			cfg.PeerID = types.PeerID(peerIDFlag)
			cfg.DeviceID = deviceID
			cfg.DirectoryURL = directoryURL
			cfg.HTTP = httpClient

			appCtx, err = app.New(cfg)
			if err != nil {
				return fmt.Errorf("initialising application: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&homeDir, "home", "", "config directory (default: $HOME/.ciphera)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to unlock your keys")
	root.PersistentFlags().StringVarP(&peerIDFlag, "peer-id", "u", "", "your registered account id")
	root.PersistentFlags().StringVar(&directoryURL, "directory", "", "directory/transport server URL, e.g. http://127.0.0.1:8090")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		rotateCmd(),
		verifyCmd(),
		sendCmd(),
		recvCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	root.SetContext(ctx)

	return root.Execute()
}
