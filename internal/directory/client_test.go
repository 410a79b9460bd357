package directory_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ciphera/internal/directory"
	"ciphera/internal/domain/types"
)

func TestUploadFetchCount(t *testing.T) {
	var uploaded types.DirectoryUpload
	mux := http.NewServeMux()
	mux.HandleFunc("POST /keys/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&uploaded); err != nil {
			t.Fatalf("decode upload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /keys/bob/device1", func(w http.ResponseWriter, r *http.Request) {
		bundle := types.PreKeyBundle{
			PeerID:                uploaded.PeerID,
			DeviceID:              uploaded.DeviceID,
			IdentityPublic:        uploaded.IdentityPublic,
			IdentitySigningPublic: uploaded.IdentitySigningPublic,
			SignedPreKeyID:        uploaded.SignedPreKey.ID,
			SignedPreKeyPublic:    uploaded.SignedPreKey.Pub,
			SignedPreKeySignature: uploaded.SignedPreKey.Signature,
		}
		_ = json.NewEncoder(w).Encode(bundle)
	})
	mux.HandleFunc("GET /keys/bob/device1/count", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"count": len(uploaded.OneTimePreKeys)})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	client := directory.NewHTTPClient(srv.URL, nil)

	upload := types.DirectoryUpload{
		PeerID:                "bob",
		DeviceID:              "device1",
		SignedPreKey:          types.SignedPreKeyPublic{ID: 1},
		OneTimePreKeys:        []types.OneTimePreKeyPublic{{ID: 1}, {ID: 2}},
	}
	if err := client.UploadBundle(ctx, upload); err != nil {
		t.Fatalf("UploadBundle: %v", err)
	}

	bundle, err := client.FetchBundle(ctx, "bob", "device1")
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if bundle.SignedPreKeyID != 1 {
		t.Fatalf("got spk id %d, want 1", bundle.SignedPreKeyID)
	}

	count, err := client.OneTimePreKeyCount(ctx, "bob", "device1")
	if err != nil {
		t.Fatalf("OneTimePreKeyCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("got count %d, want 2", count)
	}
}
