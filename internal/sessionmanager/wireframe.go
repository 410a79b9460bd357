package sessionmanager

import (
	"encoding/binary"
	"fmt"

	"ciphera/internal/domain/types"
)

// EncodeWireFrame serializes a frame in the fixed on-wire layout:
//
//	type_tag(1) | version(1) | [x3dh_header if type==PreKey] | header | ciphertext
//	x3dh_header: ik_sender(32) | ek(32) | spk_id(4) | opk_id(4, 0 meaning absent)
//	header: dh(32) | pn(4) | n(4)
func EncodeWireFrame(f types.WireFrame) ([]byte, error) {
	if f.Type == types.WireTypePreKey && f.PreKeyHeader == nil {
		return nil, fmt.Errorf("sessionmanager: PreKey frame missing x3dh header")
	}

	out := make([]byte, 0, 2+72+40+len(f.Ciphertext))
	out = append(out, byte(f.Type), f.Version)

	if f.Type == types.WireTypePreKey {
		h := f.PreKeyHeader
		out = append(out, h.InitiatorIdentityPublic.Slice()...)
		out = append(out, h.EphemeralPublic.Slice()...)
		out = appendU32BE(out, uint32(h.SignedPreKeyID))
		out = appendU32BE(out, uint32(h.OneTimePreKeyID))
	}

	out = append(out, f.Header.DHPub.Slice()...)
	out = appendU32BE(out, f.Header.PN)
	out = appendU32BE(out, f.Header.N)
	out = append(out, f.Ciphertext...)
	return out, nil
}

// DecodeWireFrame reverses EncodeWireFrame.
func DecodeWireFrame(data []byte) (types.WireFrame, error) {
	if len(data) < 2 {
		return types.WireFrame{}, fmt.Errorf("sessionmanager: frame shorter than the fixed header")
	}
	typ := types.WireType(data[0])
	version := data[1]
	i := 2

	var preKeyHeader *types.PreKeyHeader
	if typ == types.WireTypePreKey {
		if len(data) < i+32+32+4+4 {
			return types.WireFrame{}, fmt.Errorf("sessionmanager: frame too short for x3dh header")
		}
		var ikSender, ek types.X25519Public
		copy(ikSender[:], data[i:i+32])
		i += 32
		copy(ek[:], data[i:i+32])
		i += 32
		spkID := binary.BigEndian.Uint32(data[i : i+4])
		i += 4
		opkID := binary.BigEndian.Uint32(data[i : i+4])
		i += 4
		preKeyHeader = &types.PreKeyHeader{
			InitiatorIdentityPublic: ikSender,
			EphemeralPublic:         ek,
			SignedPreKeyID:          types.SignedPreKeyID(spkID),
			OneTimePreKeyID:         types.OneTimePreKeyID(opkID),
		}
	}

	if len(data) < i+32+4+4 {
		return types.WireFrame{}, fmt.Errorf("sessionmanager: frame too short for ratchet header")
	}
	var dh types.X25519Public
	copy(dh[:], data[i:i+32])
	i += 32
	pn := binary.BigEndian.Uint32(data[i : i+4])
	i += 4
	n := binary.BigEndian.Uint32(data[i : i+4])
	i += 4

	return types.WireFrame{
		Type:         typ,
		Version:      version,
		PreKeyHeader: preKeyHeader,
		Header:       types.RatchetHeader{DHPub: dh, PN: pn, N: n},
		Ciphertext:   append([]byte{}, data[i:]...),
	}, nil
}

func appendU32BE(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
