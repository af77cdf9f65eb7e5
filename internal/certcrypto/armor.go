package certcrypto

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrMalformedEnvelope indicates an armored blob is missing its
// "algorithm-name:" prefix or one of its length-prefixed parts.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Armor assembles the wire envelope spec §6 describes as
// "algorithm-name:part||part": an ASCII algorithm tag, a colon, then each
// part framed with a 4-byte big-endian length prefix (all parts but the
// last could in principle be fixed-size, but payloads are arbitrary
// binary, so every part is framed explicitly rather than relying on a
// literal "||" byte sequence that could collide with part content).
func Armor(algo string, parts ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(algo)
	buf.WriteByte(':')
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		buf.Write(lenBuf[:])
		buf.Write(p)
	}
	return buf.Bytes()
}

// Unarmor splits an armored envelope back into its algorithm tag and
// parts.
func Unarmor(envelope []byte) (algo string, parts [][]byte, err error) {
	i := bytes.IndexByte(envelope, ':')
	if i < 0 {
		return "", nil, ErrMalformedEnvelope
	}
	algo = string(envelope[:i])
	rest := envelope[i+1:]
	for len(rest) > 0 {
		if len(rest) < 4 {
			return "", nil, ErrMalformedEnvelope
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint64(len(rest)) < uint64(n) {
			return "", nil, ErrMalformedEnvelope
		}
		parts = append(parts, rest[:n])
		rest = rest[n:]
	}
	if len(parts) == 0 {
		return "", nil, ErrMalformedEnvelope
	}
	return algo, parts, nil
}
