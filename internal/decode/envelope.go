// Package decode turns a wire payload into a value tree shaped by its
// resolved schema. Schema-bearing payloads carry the Confluent wire
// envelope (magic byte + big-endian schema id); primitive serdes decode
// the raw bytes directly.
package decode

import (
	"encoding/binary"

	"github.com/kcache/kawai/internal/kawaierr"
)

// MagicByte is the single-byte prefix marking a schema-bearing payload.
const MagicByte byte = 0x00

// Envelope is the parsed Confluent wire header: the schema id the producer
// encoded with, and the payload body following it.
type Envelope struct {
	SchemaID uint32
	Body     []byte
}

// ParseEnvelope reads the magic byte and big-endian schema id prefix. An
// unrecognized magic byte is a hard DecodeError for the record.
func ParseEnvelope(payload []byte) (Envelope, error) {
	if len(payload) < 5 {
		return Envelope{}, kawaierr.New(kawaierr.KindDecode, "payload too short for envelope", nil)
	}
	if payload[0] != MagicByte {
		return Envelope{}, kawaierr.New(kawaierr.KindDecode, "unrecognized magic byte", nil)
	}
	id := binary.BigEndian.Uint32(payload[1:5])
	return Envelope{SchemaID: id, Body: payload[5:]}, nil
}
