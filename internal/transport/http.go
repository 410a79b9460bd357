package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"ciphera/internal/domain/interfaces"
	"ciphera/internal/domain/types"
)

// HTTPClient is a Transport over HTTP, talking to cmd/keyserver's mailbox
// endpoints.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient builds a Transport rooted at base. If client is nil,
// http.DefaultClient is used.
func NewHTTPClient(base string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{base: base, client: client}
}

var _ interfaces.Transport = (*HTTPClient)(nil)

type sendRequest struct {
	From       types.PeerID   `json:"from"`
	FromDevice types.DeviceID `json:"from_device"`
	MessageID  string         `json:"message_id"`
	Frame      []byte         `json:"frame"`
}

// Send posts frame to POST /messages/{peer_id}/{device_id}.
func (c *HTTPClient) Send(ctx context.Context, from types.PeerID, fromDevice types.DeviceID, to types.PeerID, toDevice types.DeviceID, messageID string, frame []byte) error {
	path := fmt.Sprintf("/messages/%s/%s", url.PathEscape(to.String()), url.PathEscape(toDevice.String()))
	req := sendRequest{From: from, FromDevice: fromDevice, MessageID: messageID, Frame: frame}
	return c.post(ctx, path, req, nil)
}

// Fetch GETs up to limit queued messages from
// /messages/{peer_id}/{device_id}?limit=N.
func (c *HTTPClient) Fetch(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID, limit int) ([]types.QueuedMessage, error) {
	path := fmt.Sprintf("/messages/%s/%s", url.PathEscape(peerID.String()), url.PathEscape(deviceID.String()))
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []types.QueuedMessage
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ack posts {count} to /messages/{peer_id}/{device_id}/ack.
func (c *HTTPClient) Ack(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID, count int) error {
	path := fmt.Sprintf("/messages/%s/%s/ack", url.PathEscape(peerID.String()), url.PathEscape(deviceID.String()))
	payload := struct {
		Count int `json:"count"`
	}{Count: count}
	return c.post(ctx, path, payload, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("transport: encode request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return fmt.Errorf("transport: build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("transport: post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("transport: build request for %s: %w", path, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("transport: get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
