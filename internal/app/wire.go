package app

import (
	"fmt"
	"net/http"

	"ciphera/internal/directory"
	"ciphera/internal/domain/interfaces"
	"ciphera/internal/domain/types"
	"ciphera/internal/keymanager"
	"ciphera/internal/protocol/doubleratchet"
	"ciphera/internal/sessionmanager"
	"ciphera/internal/store"
	"ciphera/internal/transport"
)

// App bundles the services cmd/ciphera's commands operate on.
type App struct {
	Keys       *keymanager.Service
	Sessions   *sessionmanager.Service
	Directory  interfaces.DirectoryClient
	Transport  interfaces.Transport
	PeerID     types.PeerID
	DeviceID   types.DeviceID
	httpClient *http.Client
}

// New builds the full dependency graph from cfg: the encrypted file
// store, the directory HTTP client, KeyManager, and SessionManager.
func New(cfg Config) (*App, error) {
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("app: passphrase required to unlock the store")
	}

	secureStore, err := store.Open(cfg.Home, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var dirClient interfaces.DirectoryClient
	if cfg.DirectoryURL != "" {
		dirClient = directory.NewHTTPClient(cfg.DirectoryURL, httpClient)
	}

	var transportClient interfaces.Transport
	transportURL := cfg.TransportURL
	if transportURL == "" {
		transportURL = cfg.DirectoryURL
	}
	if transportURL != "" {
		transportClient = transport.NewHTTPClient(transportURL, httpClient)
	}

	kmConfig := keymanager.DefaultConfig()
	if cfg.SignedPreKeyRotation > 0 {
		kmConfig.SignedPreKeyRotation = cfg.SignedPreKeyRotation
	}
	if cfg.OneTimePreKeyBatchSize > 0 {
		kmConfig.OneTimePreKeyBatchSize = cfg.OneTimePreKeyBatchSize
	}
	if cfg.OneTimePreKeyRefillThreshold > 0 {
		kmConfig.OneTimePreKeyRefillThreshold = cfg.OneTimePreKeyRefillThreshold
	}
	keys := keymanager.New(secureStore, kmConfig)

	limits := doubleratchet.DefaultLimits()
	if cfg.MaxSkip > 0 {
		limits.MaxSkip = cfg.MaxSkip
	}
	if cfg.MaxCachedKeys > 0 {
		limits.MaxCachedKeys = cfg.MaxCachedKeys
	}
	appID := cfg.AppID
	if appID == "" {
		appID = "ciphera"
	}
	sessions := sessionmanager.New(secureStore, keys, limits, []byte(appID))

	return &App{
		Keys:       keys,
		Sessions:   sessions,
		Directory:  dirClient,
		Transport:  transportClient,
		PeerID:     cfg.PeerID,
		DeviceID:   cfg.DeviceID,
		httpClient: httpClient,
	}, nil
}
