package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"ciphera/internal/domain/interfaces"
	"ciphera/internal/domain/types"
)

// HTTPClient is a DirectoryClient over HTTP, talking to cmd/keyserver.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient builds a DirectoryClient rooted at base. If client is nil,
// http.DefaultClient is used.
func NewHTTPClient(base string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{base: base, client: client}
}

var _ interfaces.DirectoryClient = (*HTTPClient)(nil)

// UploadBundle publishes upload via POST /keys/upload.
func (c *HTTPClient) UploadBundle(ctx context.Context, upload types.DirectoryUpload) error {
	return c.post(ctx, "/keys/upload", upload, nil)
}

// FetchBundle retrieves a peer device's current bundle via
// GET /keys/{peer_id}/{device_id}. The directory server consumes one
// one-time pre-key from the pool on every successful fetch.
func (c *HTTPClient) FetchBundle(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID) (types.PreKeyBundle, error) {
	var bundle types.PreKeyBundle
	path := fmt.Sprintf("/keys/%s/%s", url.PathEscape(peerID.String()), url.PathEscape(deviceID.String()))
	if err := c.getJSON(ctx, path, &bundle); err != nil {
		return types.PreKeyBundle{}, err
	}
	return bundle, nil
}

// OneTimePreKeyCount returns how many one-time pre-keys the directory
// server still holds for (peerID, deviceID), via
// GET /keys/{peer_id}/{device_id}/count.
func (c *HTTPClient) OneTimePreKeyCount(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/keys/%s/%s/count", url.PathEscape(peerID.String()), url.PathEscape(deviceID.String()))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("directory: encode request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return fmt.Errorf("directory: build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("directory: post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("directory: build request for %s: %w", path, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("directory: get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
