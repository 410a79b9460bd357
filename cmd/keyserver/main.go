package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"

	"ciphera/internal/domain/types"
)

const (
	defaultPort     = 8090
	readHeaderTO    = 5 * time.Second
	readTO          = 10 * time.Second
	writeTO         = 10 * time.Second
	idleTO          = 60 * time.Second
	maxRequestBody  = 1 << 20 // 1 MiB cap on incoming JSON bodies
	maxOneTimeKeys  = 500     // cap on one-time pre-keys accepted per upload
	maxMailboxDepth = 1000    // cap messages kept per recipient device
	maxFrameBytes   = 64 << 10
)

// device is one uploaded device's current directory-visible state.
type device struct {
	identityPublic        types.X25519Public
	identitySigningPublic types.Ed25519Public
	signedPreKey          types.SignedPreKeyPublic
	oneTimePreKeys        []types.OneTimePreKeyPublic
}

type mailboxKey struct {
	peer   types.PeerID
	device types.DeviceID
}

// state holds every device's uploaded bundle, keyed by (peer_id, device_id),
// plus a per-device mailbox of queued wire frames awaiting delivery.
type state struct {
	mu      sync.Mutex
	devices map[types.PeerID]map[types.DeviceID]*device
	mailbox map[mailboxKey][]types.QueuedMessage
}

func newState() *state {
	return &state{
		devices: make(map[types.PeerID]map[types.DeviceID]*device),
		mailbox: make(map[mailboxKey][]types.QueuedMessage),
	}
}

func (s *state) handleUpload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var upload types.DirectoryUpload
	if err := dec.Decode(&upload); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}
	if upload.PeerID == "" || upload.DeviceID == "" {
		writeErr(w, http.StatusBadRequest, "peer_id and device_id required")
		return
	}
	if len(upload.OneTimePreKeys) > maxOneTimeKeys {
		writeErr(w, http.StatusRequestEntityTooLarge, "too many one-time pre-keys")
		return
	}

	s.mu.Lock()
	devices, ok := s.devices[upload.PeerID]
	if !ok {
		devices = make(map[types.DeviceID]*device)
		s.devices[upload.PeerID] = devices
	}
	d, ok := devices[upload.DeviceID]
	if !ok {
		d = &device{}
		devices[upload.DeviceID] = d
	}
	d.identityPublic = upload.IdentityPublic
	d.identitySigningPublic = upload.IdentitySigningPublic
	d.signedPreKey = upload.SignedPreKey
	d.oneTimePreKeys = append(d.oneTimePreKeys, upload.OneTimePreKeys...)
	opkCount := len(d.oneTimePreKeys)
	s.mu.Unlock()

	slog.Info("upload",
		"peer_id", upload.PeerID.String(),
		"device_id", upload.DeviceID.String(),
		"spk_id", upload.SignedPreKey.ID,
		"one_time_count", opkCount,
		"reqid", middleware.GetReqID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

// handleFetch builds a PreKeyBundle for the requested device, consuming
// one one-time pre-key from the pool if any remain. This is the one place
// an OPK leaves the server's pool.
func (s *state) handleFetch(w http.ResponseWriter, r *http.Request) {
	peerID := types.PeerID(chi.URLParam(r, "peer_id"))
	deviceID := types.DeviceID(chi.URLParam(r, "device_id"))

	s.mu.Lock()
	d, ok := s.deviceLocked(peerID, deviceID)
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}

	bundle := types.PreKeyBundle{
		PeerID:                peerID,
		DeviceID:              deviceID,
		IdentityPublic:        d.identityPublic,
		IdentitySigningPublic: d.identitySigningPublic,
		SignedPreKeyID:        d.signedPreKey.ID,
		SignedPreKeyPublic:    d.signedPreKey.Pub,
		SignedPreKeySignature: d.signedPreKey.Signature,
	}
	if len(d.oneTimePreKeys) > 0 {
		opk := d.oneTimePreKeys[0]
		d.oneTimePreKeys = d.oneTimePreKeys[1:]
		bundle.OneTimePreKeyID = opk.ID
		pub := opk.Pub
		bundle.OneTimePreKeyPublic = &pub
	}
	remaining := len(d.oneTimePreKeys)
	s.mu.Unlock()

	slog.Info("fetch",
		"peer_id", peerID.String(),
		"device_id", deviceID.String(),
		"consumed_opk", bundle.HasOneTimePreKey(),
		"remaining", remaining,
		"reqid", middleware.GetReqID(r.Context()),
	)
	writeJSON(w, bundle)
}

func (s *state) handleCount(w http.ResponseWriter, r *http.Request) {
	peerID := types.PeerID(chi.URLParam(r, "peer_id"))
	deviceID := types.DeviceID(chi.URLParam(r, "device_id"))

	s.mu.Lock()
	d, ok := s.deviceLocked(peerID, deviceID)
	count := 0
	if ok {
		count = len(d.oneTimePreKeys)
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]int{"count": count})
}

type sendRequest struct {
	From       types.PeerID   `json:"from"`
	FromDevice types.DeviceID `json:"from_device"`
	MessageID  string         `json:"message_id"`
	Frame      []byte         `json:"frame"`
}

// handleSend enqueues a wire frame for (peer_id, device_id)'s mailbox
// (POST /messages/{peer_id}/{device_id}).
func (s *state) handleSend(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	peerID := types.PeerID(chi.URLParam(r, "peer_id"))
	deviceID := types.DeviceID(chi.URLParam(r, "device_id"))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req sendRequest
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}
	if len(req.Frame) > maxFrameBytes {
		writeErr(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	msg := types.QueuedMessage{
		From:       req.From,
		FromDevice: req.FromDevice,
		MessageID:  req.MessageID,
		Frame:      req.Frame,
		EnqueuedAt: time.Now(),
	}

	key := mailboxKey{peer: peerID, device: deviceID}
	s.mu.Lock()
	queue := append(s.mailbox[key], msg)
	if len(queue) > maxMailboxDepth {
		queue = queue[len(queue)-maxMailboxDepth:]
	}
	s.mailbox[key] = queue
	queueLen := len(queue)
	s.mu.Unlock()

	slog.Info("mailbox send",
		"peer_id", peerID.String(),
		"device_id", deviceID.String(),
		"from", req.From.String(),
		"queue_len", queueLen,
		"reqid", middleware.GetReqID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

// handleFetchMessages returns up to ?limit=N queued messages for
// (peer_id, device_id), without removing them
// (GET /messages/{peer_id}/{device_id}).
func (s *state) handleFetchMessages(w http.ResponseWriter, r *http.Request) {
	peerID := types.PeerID(chi.URLParam(r, "peer_id"))
	deviceID := types.DeviceID(chi.URLParam(r, "device_id"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}

	key := mailboxKey{peer: peerID, device: deviceID}
	s.mu.Lock()
	queue := s.mailbox[key]
	if limit == 0 || limit > len(queue) {
		limit = len(queue)
	}
	out := make([]types.QueuedMessage, limit)
	copy(out, queue[:limit])
	s.mu.Unlock()

	writeJSON(w, out)
}

// handleAckMessages drops the first {count} queued messages for
// (peer_id, device_id) (POST /messages/{peer_id}/{device_id}/ack).
func (s *state) handleAckMessages(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	peerID := types.PeerID(chi.URLParam(r, "peer_id"))
	deviceID := types.DeviceID(chi.URLParam(r, "device_id"))

	var ack struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&ack); err != nil || ack.Count < 0 {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}

	key := mailboxKey{peer: peerID, device: deviceID}
	s.mu.Lock()
	if ack.Count > len(s.mailbox[key]) {
		ack.Count = len(s.mailbox[key])
	}
	s.mailbox[key] = s.mailbox[key][ack.Count:]
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// deviceLocked looks up a device. Callers must hold s.mu.
func (s *state) deviceLocked(peerID types.PeerID, deviceID types.DeviceID) (*device, bool) {
	devices, ok := s.devices[peerID]
	if !ok {
		return nil, false
	}
	d, ok := devices[deviceID]
	return d, ok
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encode error: %v", err), http.StatusInternalServerError)
	}
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func main() {
	var port int
	pflag.IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	pflag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelInfo})))

	s := newState()
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, middleware.RealIP)
	r.Post("/keys/upload", s.handleUpload)
	r.Get("/keys/{peer_id}/{device_id}", s.handleFetch)
	r.Get("/keys/{peer_id}/{device_id}/count", s.handleCount)
	r.Post("/messages/{peer_id}/{device_id}", s.handleSend)
	r.Get("/messages/{peer_id}/{device_id}", s.handleFetchMessages)
	r.Post("/messages/{peer_id}/{device_id}/ack", s.handleAckMessages)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTO,
		ReadTimeout:       readTO,
		WriteTimeout:      writeTO,
		IdleTimeout:       idleTO,
	}

	go func() {
		slog.Info("keyserver listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("keyserver failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
