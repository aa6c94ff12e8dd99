package registry_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcache/kawai/internal/registry"
)

func TestParseDirective_Primitives(t *testing.T) {
	cases := map[string]registry.SerdeTag{
		"short":  registry.Short,
		"int":    registry.Int,
		"long":   registry.Long,
		"float":  registry.Float,
		"double": registry.Double,
		"string": registry.String,
		"binary": registry.Binary,
	}
	for literal, tag := range cases {
		d, err := registry.ParseDirective(literal)
		require.NoError(t, err)
		assert.Equal(t, registry.DirectivePrimitive, d.Kind)
		assert.Equal(t, tag, d.Primitive)
	}
}

func TestParseDirective_Latest(t *testing.T) {
	d, err := registry.ParseDirective("latest")
	require.NoError(t, err)
	assert.Equal(t, registry.DirectiveLatest, d.Kind)
}

func TestParseDirective_ByID(t *testing.T) {
	d, err := registry.ParseDirective("id:42")
	require.NoError(t, err)
	assert.Equal(t, registry.DirectiveByID, d.Kind)
	assert.Equal(t, 42, d.ID)

	_, err = registry.ParseDirective("id:not-a-number")
	assert.Error(t, err)
}

func TestParseDirective_Inline(t *testing.T) {
	schemaText := `{"type":"int"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(schemaText))

	d, err := registry.ParseDirective("inline:json:" + encoded)
	require.NoError(t, err)
	assert.Equal(t, registry.DirectiveInline, d.Kind)
	assert.Equal(t, registry.SchemaTypeJSON, d.SchemaType)
	assert.Equal(t, schemaText, d.Text)
	assert.Empty(t, d.Refs)
}

func TestParseDirective_InlineWithRefs(t *testing.T) {
	schemaText := `{"type":"record"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(schemaText))

	d, err := registry.ParseDirective("inline:avro:" + encoded + "+Other=other-value@2")
	require.NoError(t, err)
	require.Len(t, d.Refs, 1)
	assert.Equal(t, "Other", d.Refs[0].Name)
	assert.Equal(t, "other-value", d.Refs[0].Subject)
	assert.Equal(t, 2, d.Refs[0].Version)
}

func TestParseDirective_Unrecognized(t *testing.T) {
	_, err := registry.ParseDirective("nonsense")
	assert.Error(t, err)
}
