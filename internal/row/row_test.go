package row_test

import (
	"math/big"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/decode"
	"github.com/kcache/kawai/internal/registry"
	"github.com/kcache/kawai/internal/row"
)

func TestShape_NullKeyProducesNullKeyColumn(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8).WithStrategy(column.NullStrategy)
	idCol := column.NewPrim(column.I64)
	valueCol, err := column.NewStruct([]column.Field{{Name: "id", Column: idCol}})
	require.NoError(t, err)

	r, err := row.Shape(nil, keyCol, map[string]any{"id": int64(5)}, valueCol)
	require.NoError(t, err)
	require.Len(t, r, 2)
	assert.Nil(t, r[0])
	assert.Equal(t, int64(5), r[1])
}

func TestShape_NullValueNullsAllValueColumns(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	aCol := column.NewPrim(column.I64).WithStrategy(column.NullStrategy)
	bCol := column.NewPrim(column.Utf8).WithStrategy(column.NullStrategy)
	valueCol, err := column.NewStruct([]column.Field{
		{Name: "a", Column: aCol},
		{Name: "b", Column: bCol},
	})
	require.NoError(t, err)

	r, err := row.Shape("k", keyCol, nil, valueCol)
	require.NoError(t, err)
	require.Len(t, r, 3)
	assert.Equal(t, "k", r[0])
	assert.Nil(t, r[1])
	assert.Nil(t, r[2])
}

func TestShape_EmptyListIsEmptySequenceNotNull(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	listCol := column.NewList(column.NewPrim(column.Utf8))

	r, err := row.Shape("k", keyCol, []any{}, listCol)
	require.NoError(t, err)
	require.Len(t, r, 2)
	items, ok := r[1].([]any)
	require.True(t, ok)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestShape_DecimalExactness(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	decCol, err := column.NewDecimal(10, 2)
	require.NoError(t, err)

	// Unscaled 12345, scale 2 -> 123.45, as a big-endian two's complement
	// integer (the shape Avro's decimal logical type delivers).
	unscaled := []byte{0x30, 0x39}

	r, err := row.Shape("k", keyCol, unscaled, decCol)
	require.NoError(t, err)
	require.Len(t, r, 2)
	d, ok := r[1].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, decimal.NewFromFloat(123.45).Equal(d), "got %s", d.String())
}

func TestShape_DecimalExactness_Negative(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	decCol, err := column.NewDecimal(10, 2)
	require.NoError(t, err)

	// Unscaled -12345, scale 2 -> -123.45, two's complement over 2 bytes.
	unscaled := []byte{0xCF, 0xC7}

	r, err := row.Shape("k", keyCol, unscaled, decCol)
	require.NoError(t, err)
	d, ok := r[1].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, decimal.NewFromFloat(-123.45).Equal(d), "got %s", d.String())
}

// TestShape_DecimalFromRealAvroDecode exercises the full path a broker
// record actually takes: goavro encodes a decimal logical type, the decoder
// decodes it to goavro's own native representation (*big.Rat, never
// []byte), and Shape must still produce an exact decimal.Decimal.
func TestShape_DecimalFromRealAvroDecode(t *testing.T) {
	schemaText := `{"type":"bytes","logicalType":"decimal","precision":10,"scale":2}`
	codec, err := goavro.NewCodec(schemaText)
	require.NoError(t, err)

	binary, err := codec.BinaryFromNative(nil, big.NewRat(12345, 100))
	require.NoError(t, err)

	parsed := &registry.ParsedSchema{Family: registry.FamilyRecord, Text: schemaText, ID: 42}
	native, err := decode.NewDecoder().Decode(parsed, binary)
	require.NoError(t, err)
	_, isRat := native.(*big.Rat)
	require.True(t, isRat, "goavro should decode a decimal logical type to *big.Rat, got %T", native)

	keyCol := column.NewPrim(column.Utf8)
	decCol, err := column.NewDecimal(10, 2)
	require.NoError(t, err)

	r, err := row.Shape("k", keyCol, native, decCol)
	require.NoError(t, err)
	d, ok := r[1].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, decimal.NewFromFloat(123.45).Equal(d), "got %s", d.String())
}

func unionColumn(t *testing.T) *column.Column {
	t.Helper()
	u, err := column.NewUnion([]column.Branch{
		{Tag: column.NullTag},
		{Tag: "string", Column: column.NewPrim(column.Utf8)},
	})
	require.NoError(t, err)
	return u
}

func TestShape_UnionNullBranch(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	u := unionColumn(t)

	r, err := row.Shape("k", keyCol, decode.UnionValue{Tag: column.NullTag, Value: nil}, u)
	require.NoError(t, err)
	uv, ok := r[1].(decode.UnionValue)
	require.True(t, ok)
	assert.Equal(t, column.NullTag, uv.Tag)
	assert.Nil(t, uv.Value)
}

func TestShape_UnionStringBranch(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	u := unionColumn(t)

	r, err := row.Shape("k", keyCol, decode.UnionValue{Tag: "string", Value: "hello"}, u)
	require.NoError(t, err)
	uv, ok := r[1].(decode.UnionValue)
	require.True(t, ok)
	assert.Equal(t, "string", uv.Tag)
	assert.Equal(t, "hello", uv.Value)
}

func TestShape_UnionGoavroNativeMapConvention(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	u := unionColumn(t)

	r, err := row.Shape("k", keyCol, map[string]any{"string": "hello"}, u)
	require.NoError(t, err)
	uv, ok := r[1].(decode.UnionValue)
	require.True(t, ok)
	assert.Equal(t, "string", uv.Tag)
	assert.Equal(t, "hello", uv.Value)
}

func TestShape_UnionUnknownBranchTagIsRejected(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	u := unionColumn(t)

	_, err := row.Shape("k", keyCol, decode.UnionValue{Tag: "bogus", Value: 1}, u)
	assert.Error(t, err)
}

func TestShape_MissingRequiredFieldIsBadRow(t *testing.T) {
	keyCol := column.NewPrim(column.Utf8)
	reqCol := column.NewPrim(column.I64)
	valueCol, err := column.NewStruct([]column.Field{{Name: "id", Column: reqCol}})
	require.NoError(t, err)

	_, err = row.Shape("k", keyCol, map[string]any{}, valueCol)
	assert.Error(t, err)
}

func TestShape_UUIDStringIsParsed(t *testing.T) {
	keyCol := column.NewPrim(column.UUID)
	idCol := column.NewPrim(column.I64)
	valueCol, err := column.NewStruct([]column.Field{{Name: "id", Column: idCol}})
	require.NoError(t, err)

	r, err := row.Shape("123e4567-e89b-12d3-a456-426614174000", keyCol, map[string]any{"id": int64(1)}, valueCol)
	require.NoError(t, err)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", r[0].(interface{ String() string }).String())
}
