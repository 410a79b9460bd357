package types

import "encoding/json"

// RatchetHeader is sent alongside every Double Ratchet ciphertext.
type RatchetHeader struct {
	DHPub X25519Public `json:"dh_pub"`
	PN    uint32       `json:"pn"`
	N     uint32       `json:"n"`
}

// Encode serializes the header as dh_public(32) || pn_u32_be(4) || n_u32_be(4),
// the exact form fed into the AEAD as associated data.
func (h RatchetHeader) Encode() []byte {
	out := make([]byte, 0, 40)
	out = append(out, h.DHPub[:]...)
	out = appendU32BE(out, h.PN)
	out = appendU32BE(out, h.N)
	return out
}

func appendU32BE(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// SkippedKey identifies one cached-but-unused message key: a remote DH
// ratchet public key paired with a chain index.
type SkippedKey struct {
	DH X25519Public
	N  uint32
}

// SkippedMessageKey is one entry of the skipped-key cache: the 32-byte
// message key plus its insertion sequence, used to evict in FIFO order
// once the cache exceeds MaxCachedKeys.
type SkippedMessageKey struct {
	Key      [32]byte
	Inserted uint64
}

// RatchetState is the per-peer-device Double Ratchet state.
type RatchetState struct {
	DHs       X25519Private `json:"dhs_priv"`
	DHsPub    X25519Public  `json:"dhs_pub"`
	DHr       *X25519Public `json:"dhr,omitempty"`
	RK        [32]byte      `json:"rk"`
	CKs       *[32]byte     `json:"cks,omitempty"`
	CKr       *[32]byte     `json:"ckr,omitempty"`
	Ns        uint32        `json:"ns"`
	Nr        uint32        `json:"nr"`
	PN        uint32        `json:"pn"`
	Skipped   map[SkippedKey]SkippedMessageKey `json:"-"`
	NextInsertSeq uint64    `json:"-"`
}

// skippedEntry is the on-wire form of one RatchetState.Skipped entry: the
// struct map key RatchetState uses in memory has no JSON representation,
// so MarshalJSON/UnmarshalJSON flatten it to a slice of these.
type skippedEntry struct {
	DH       X25519Public `json:"dh"`
	N        uint32       `json:"n"`
	Key      [32]byte     `json:"key"`
	Inserted uint64       `json:"inserted"`
}

// ratchetStateWire mirrors RatchetState for JSON, replacing the Skipped map
// with its flattened slice form.
type ratchetStateWire struct {
	DHs           X25519Private  `json:"dhs_priv"`
	DHsPub        X25519Public   `json:"dhs_pub"`
	DHr           *X25519Public  `json:"dhr,omitempty"`
	RK            [32]byte       `json:"rk"`
	CKs           *[32]byte      `json:"cks,omitempty"`
	CKr           *[32]byte      `json:"ckr,omitempty"`
	Ns            uint32         `json:"ns"`
	Nr            uint32         `json:"nr"`
	PN            uint32         `json:"pn"`
	Skipped       []skippedEntry `json:"skipped"`
	NextInsertSeq uint64         `json:"next_insert_seq"`
}

// MarshalJSON flattens Skipped into a slice since its map key is a struct.
func (s RatchetState) MarshalJSON() ([]byte, error) {
	w := ratchetStateWire{
		DHs: s.DHs, DHsPub: s.DHsPub, DHr: s.DHr, RK: s.RK,
		CKs: s.CKs, CKr: s.CKr, Ns: s.Ns, Nr: s.Nr, PN: s.PN,
		NextInsertSeq: s.NextInsertSeq,
	}
	w.Skipped = make([]skippedEntry, 0, len(s.Skipped))
	for k, v := range s.Skipped {
		w.Skipped = append(w.Skipped, skippedEntry{DH: k.DH, N: k.N, Key: v.Key, Inserted: v.Inserted})
	}
	return json.Marshal(w)
}

// UnmarshalJSON reverses MarshalJSON.
func (s *RatchetState) UnmarshalJSON(b []byte) error {
	var w ratchetStateWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.DHs, s.DHsPub, s.DHr, s.RK = w.DHs, w.DHsPub, w.DHr, w.RK
	s.CKs, s.CKr, s.Ns, s.Nr, s.PN = w.CKs, w.CKr, w.Ns, w.Nr, w.PN
	s.NextInsertSeq = w.NextInsertSeq
	s.Skipped = make(map[SkippedKey]SkippedMessageKey, len(w.Skipped))
	for _, e := range w.Skipped {
		s.Skipped[SkippedKey{DH: e.DH, N: e.N}] = SkippedMessageKey{Key: e.Key, Inserted: e.Inserted}
	}
	return nil
}
