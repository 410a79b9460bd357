package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ciphera/internal/domain/types"
)

const deviceIDFileName = "device_id"

// LoadOrCreateDeviceID returns this installation's device id, generating
// and persisting a fresh one on first run. The id is not secret; it only
// disambiguates this device from the account's other devices on the
// directory and transport, so it is kept as a plain file alongside the
// encrypted store rather than inside it.
func LoadOrCreateDeviceID(home string) (types.DeviceID, error) {
	path := filepath.Join(home, deviceIDFileName)
	if raw, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(raw))
		if id == "" {
			return "", fmt.Errorf("app: empty device id file %q", path)
		}
		return types.DeviceID(id), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("app: read device id: %w", err)
	}

	if err := os.MkdirAll(home, 0o700); err != nil {
		return "", fmt.Errorf("app: create home dir: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("app: write device id: %w", err)
	}
	return types.DeviceID(id), nil
}
