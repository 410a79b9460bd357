package app

import (
	"net/http"
	"time"

	"ciphera/internal/domain/types"
)

// Config holds runtime wiring options for building the app: key-rotation
// and ratchet-limit tunables, plus where the encrypted store lives and
// which directory server to talk to.
type Config struct {
	Home         string         // store directory, e.g. $HOME/.ciphera
	Passphrase   string         // unlocks the local encrypted store
	PeerID       types.PeerID   // this device's account id on the directory/transport
	DeviceID     types.DeviceID // this device's id, generated once on first run (LoadOrCreateDeviceID)
	DirectoryURL string         // directory server base URL
	TransportURL string         // message mailbox base URL (defaults to DirectoryURL)
	AppID        string         // domain-separates safety numbers across deployments
	HTTP         *http.Client   // optional; defaults to http.DefaultClient

	SignedPreKeyRotation         time.Duration // default 30 days
	OneTimePreKeyBatchSize       int           // default 100
	OneTimePreKeyRefillThreshold int           // default 20
	MaxSkip                      int           // default 1000
	MaxCachedKeys                int           // default 2000
}

// DefaultConfig returns a Config with conservative default tunables, home
// pointed at home, and no network/passphrase set.
func DefaultConfig(home string) Config {
	return Config{
		Home:                         home,
		AppID:                        "ciphera",
		SignedPreKeyRotation:         30 * 24 * time.Hour,
		OneTimePreKeyBatchSize:       100,
		OneTimePreKeyRefillThreshold: 20,
		MaxSkip:                      1000,
		MaxCachedKeys:                2000,
	}
}
