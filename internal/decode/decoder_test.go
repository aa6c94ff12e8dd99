package decode_test

import (
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcache/kawai/internal/decode"
	"github.com/kcache/kawai/internal/registry"
)

func TestDecoder_Avro_RoundTrip(t *testing.T) {
	schemaText := `{"type":"record","name":"R","fields":[{"name":"a","type":"int"},{"name":"b","type":"string"}]}`
	codec, err := goavro.NewCodec(schemaText)
	require.NoError(t, err)

	binary, err := codec.BinaryFromNative(nil, map[string]any{"a": int32(7), "b": "x"})
	require.NoError(t, err)

	parsed := &registry.ParsedSchema{Family: registry.FamilyRecord, Text: schemaText, ID: 1}
	d := decode.NewDecoder()
	v, err := d.Decode(parsed, binary)
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int32(7), m["a"])
	assert.Equal(t, "x", m["b"])
}

func TestDecoder_Avro_CachesCodecByID(t *testing.T) {
	schemaText := `{"type":"record","name":"R","fields":[{"name":"a","type":"int"}]}`
	codec, err := goavro.NewCodec(schemaText)
	require.NoError(t, err)
	binary, err := codec.BinaryFromNative(nil, map[string]any{"a": int32(1)})
	require.NoError(t, err)

	parsed := &registry.ParsedSchema{Family: registry.FamilyRecord, Text: schemaText, ID: 5}
	d := decode.NewDecoder()
	_, err = d.Decode(parsed, binary)
	require.NoError(t, err)
	// Second decode with the same id and no text (would fail to build a
	// fresh codec) still succeeds because the codec is cached by id.
	parsedNoText := &registry.ParsedSchema{Family: registry.FamilyRecord, ID: 5}
	_, err = d.Decode(parsedNoText, binary)
	require.NoError(t, err)
}

func TestDecoder_JSON(t *testing.T) {
	d := decode.NewDecoder()
	v, err := d.Decode(&registry.ParsedSchema{Family: registry.FamilyJSON}, []byte(`{"a":1,"b":"x"}`))
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), m["a"])
	assert.Equal(t, "x", m["b"])
}
