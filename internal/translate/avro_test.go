package translate_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/registry"
	"github.com/kcache/kawai/internal/translate"
)

func parseAndTranslate(t *testing.T, schemaText string) *column.Column {
	t.Helper()
	d := translate.NewDispatcher()
	ast, err := d.Parse(registry.SchemaTypeAvro, schemaText, nil)
	require.NoError(t, err)
	parsed := &registry.ParsedSchema{Family: registry.FamilyRecord, AST: ast}
	c, err := d.ToColumn(parsed, false)
	require.NoError(t, err)
	return c
}

func TestAvroTranslate_ScenarioRecord(t *testing.T) {
	c := parseAndTranslate(t, `{
		"type": "record", "name": "R",
		"fields": [
			{"name": "a", "type": "int"},
			{"name": "b", "type": "string"}
		]
	}`)
	require.Equal(t, column.KindStruct, c.Kind())
	flat := column.FlattenTopLevel(c)
	require.Len(t, flat, 2)
	assert.Equal(t, "a", flat[0].Name)
	assert.Equal(t, column.I32, flat[0].Column.Prim())
	assert.Equal(t, "b", flat[1].Name)
	assert.Equal(t, column.Utf8, flat[1].Column.Prim())
}

func TestAvroTranslate_OptionalUnionRelaxesToNullable(t *testing.T) {
	c := parseAndTranslate(t, `["null", "string"]`)
	assert.Equal(t, column.KindPrim, c.Kind())
	assert.Equal(t, column.Utf8, c.Prim())
	assert.True(t, c.IsNullable())
}

func TestAvroTranslate_MultiBranchUnion(t *testing.T) {
	c := parseAndTranslate(t, `["int", "string", "boolean"]`)
	require.Equal(t, column.KindUnion, c.Kind())
	assert.Len(t, c.Branches(), 3)
}

func TestAvroTranslate_Decimal(t *testing.T) {
	c := parseAndTranslate(t, `{"type": "bytes", "logicalType": "decimal", "precision": 10, "scale": 2}`)
	require.Equal(t, column.KindDecimal, c.Kind())
	assert.Equal(t, 10, c.Precision())
	assert.Equal(t, 2, c.Scale())
}

func TestAvroTranslate_RejectsInvalidDecimalBounds(t *testing.T) {
	d := translate.NewDispatcher()
	_, err := d.Parse(registry.SchemaTypeAvro, `{"type": "bytes", "logicalType": "decimal", "precision": 0, "scale": 1}`, nil)
	require.NoError(t, err) // parsing the JSON always succeeds; the bounds check is in ToColumn

	ast, err := d.Parse(registry.SchemaTypeAvro, `{"type": "bytes", "logicalType": "decimal", "precision": 0, "scale": 1}`, nil)
	require.NoError(t, err)
	parsed := &registry.ParsedSchema{Family: registry.FamilyRecord, AST: ast}
	_, err = d.ToColumn(parsed, false)
	require.Error(t, err)
}

func TestAvroTranslate_ArrayAndMap(t *testing.T) {
	c := parseAndTranslate(t, `{"type": "array", "items": "long"}`)
	require.Equal(t, column.KindList, c.Kind())
	assert.Equal(t, column.I64, c.Item().Prim())

	m := parseAndTranslate(t, `{"type": "map", "values": "string"}`)
	require.Equal(t, column.KindMap, m.Kind())
	assert.Equal(t, column.Utf8, m.MapValue().Prim())
}

func TestAvroTranslate_RejectsSelfReference(t *testing.T) {
	schemaText := `{
		"type": "record", "name": "Node",
		"fields": [
			{"name": "value", "type": "int"},
			{"name": "next", "type": "Node"}
		]
	}`
	var raw json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(schemaText), &raw))

	d := translate.NewDispatcher()
	_, err := d.Parse(registry.SchemaTypeAvro, schemaText, nil)
	require.Error(t, err)
}

func TestAvroTranslate_Enum(t *testing.T) {
	c := parseAndTranslate(t, `{"type": "enum", "name": "Suit", "symbols": ["HEARTS", "SPADES"]}`)
	require.Equal(t, column.KindEnum, c.Kind())
	assert.Equal(t, []string{"HEARTS", "SPADES"}, c.Symbols())
}
