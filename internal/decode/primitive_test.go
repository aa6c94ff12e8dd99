package decode_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcache/kawai/internal/decode"
	"github.com/kcache/kawai/internal/registry"
)

func TestDecodePrimitive_Int(t *testing.T) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(int32(42)))
	v, err := decode.DecodePrimitive(registry.Int, buf)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)
}

func TestDecodePrimitive_Double(t *testing.T) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(3.25))
	v, err := decode.DecodePrimitive(registry.Double, buf)
	require.NoError(t, err)
	assert.Equal(t, 3.25, v)
}

func TestDecodePrimitive_StringAndBinary(t *testing.T) {
	v, err := decode.DecodePrimitive(registry.String, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	b, err := decode.DecodePrimitive(registry.Binary, []byte{0xDE, 0xAD})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD}, b)
}

func TestDecodePrimitive_NullKey(t *testing.T) {
	v, err := decode.DecodePrimitive(registry.Binary, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDecodePrimitive_RejectsWrongWidth(t *testing.T) {
	_, err := decode.DecodePrimitive(registry.Int, []byte{0x01, 0x02})
	assert.Error(t, err)
}
