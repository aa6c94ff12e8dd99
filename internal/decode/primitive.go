package decode

import (
	"encoding/binary"
	"math"

	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/registry"
)

// DecodePrimitive decodes a payload directly carrying a leaf serde (no
// magic byte, no schema id): the payload IS the body.
func DecodePrimitive(tag registry.SerdeTag, payload []byte) (any, error) {
	if payload == nil {
		return nil, nil
	}
	switch tag {
	case registry.Short:
		if len(payload) != 2 {
			return nil, kawaierr.New(kawaierr.KindDecode, "short payload must be 2 bytes", nil)
		}
		return int16(binary.BigEndian.Uint16(payload)), nil
	case registry.Int:
		if len(payload) != 4 {
			return nil, kawaierr.New(kawaierr.KindDecode, "int payload must be 4 bytes", nil)
		}
		return int32(binary.BigEndian.Uint32(payload)), nil
	case registry.Long:
		if len(payload) != 8 {
			return nil, kawaierr.New(kawaierr.KindDecode, "long payload must be 8 bytes", nil)
		}
		return int64(binary.BigEndian.Uint64(payload)), nil
	case registry.Float:
		if len(payload) != 4 {
			return nil, kawaierr.New(kawaierr.KindDecode, "float payload must be 4 bytes", nil)
		}
		return math.Float32frombits(binary.BigEndian.Uint32(payload)), nil
	case registry.Double:
		if len(payload) != 8 {
			return nil, kawaierr.New(kawaierr.KindDecode, "double payload must be 8 bytes", nil)
		}
		return math.Float64frombits(binary.BigEndian.Uint64(payload)), nil
	case registry.String:
		return string(payload), nil
	case registry.Binary:
		return payload, nil
	default:
		return nil, kawaierr.New(kawaierr.KindDecode, "unrecognized primitive serde tag", nil)
	}
}
