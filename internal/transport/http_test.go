package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ciphera/internal/domain/types"
	"ciphera/internal/transport"
)

func TestSendFetchAck(t *testing.T) {
	var queue []types.QueuedMessage
	mux := http.NewServeMux()
	mux.HandleFunc("POST /messages/bob/device1", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			From       types.PeerID   `json:"from"`
			FromDevice types.DeviceID `json:"from_device"`
			MessageID  string         `json:"message_id"`
			Frame      []byte         `json:"frame"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode send: %v", err)
		}
		queue = append(queue, types.QueuedMessage{From: req.From, FromDevice: req.FromDevice, MessageID: req.MessageID, Frame: req.Frame})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /messages/bob/device1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queue)
	})
	mux.HandleFunc("POST /messages/bob/device1/ack", func(w http.ResponseWriter, r *http.Request) {
		var ack struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ack.Count > len(queue) {
			ack.Count = len(queue)
		}
		queue = queue[ack.Count:]
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	client := transport.NewHTTPClient(srv.URL, nil)

	if err := client.Send(ctx, "alice", "device1", "bob", "device1", "msg-1", []byte("frame-bytes")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, err := client.Fetch(ctx, "bob", "device1", 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(msgs) != 1 || msgs[0].MessageID != "msg-1" {
		t.Fatalf("got %+v, want one message with id msg-1", msgs)
	}

	if err := client.Ack(ctx, "bob", "device1", 1); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	msgs, err = client.Fetch(ctx, "bob", "device1", 0)
	if err != nil {
		t.Fatalf("Fetch after ack: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages after ack, want 0", len(msgs))
	}
}
