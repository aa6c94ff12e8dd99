// Package row walks a decoded value tree against a column definition, in
// lockstep, to produce a positional row ready for the prepared insert.
// Top-level flattening turns a struct-shaped value column into the tail
// of that row.
package row

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/decode"
	"github.com/kcache/kawai/internal/kawaierr"
)

// Row is the ordered sequence of values positionally matching the insert
// statement: [key, value-col-1, ..., value-col-k].
type Row []any

// Shape walks key against keyColumn and value against valueColumn,
// flattening the value column's top level, and returns the positional row
// the prepared insert expects.
func Shape(key any, keyColumn *column.Column, value any, valueColumn *column.Column) (Row, error) {
	keyShaped, err := shapeOne(key, keyColumn)
	if err != nil {
		return nil, err
	}

	flat := column.FlattenTopLevel(valueColumn)
	row := make(Row, 0, 1+len(flat))
	row = append(row, keyShaped)

	if valueColumn.Kind() == column.KindStruct {
		if value == nil {
			// A tombstone against a struct-shaped value nulls every
			// flattened column, regardless of individual fields' own
			// nullability: the whole value is absent, not each field.
			for range flat {
				row = append(row, nil)
			}
			return row, nil
		}
		fieldValues, err := structFieldValues(value, valueColumn)
		if err != nil {
			return nil, err
		}
		for _, f := range flat {
			v, err := shapeOne(fieldValues[f.Name], f.Column)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		return row, nil
	}

	v, err := shapeOne(value, valueColumn)
	if err != nil {
		return nil, err
	}
	row = append(row, v)
	return row, nil
}

func structFieldValues(value any, c *column.Column) (map[string]any, error) {
	if value == nil {
		return map[string]any{}, nil
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadRow, fmt.Sprintf("expected a record value for struct column, got %T", value), nil)
	}
	return m, nil
}

// shapeOne walks one (value, column) pair. A Union column is checked
// before the general nil rule because a union
// represents absence internally via its own null-tagged branch rather than
// through the column's nullability strategy.
func shapeOne(value any, c *column.Column) (any, error) {
	if c.Kind() == column.KindUnion {
		return shapeUnion(value, c)
	}

	if value == nil {
		if c.IsNullable() {
			return nil, nil
		}
		return nil, kawaierr.New(kawaierr.KindBadRow, "null value for a NOT NULL column", nil)
	}

	switch c.Kind() {
	case column.KindPrim, column.KindFixed, column.KindEnum:
		return shapeLeaf(value, c)
	case column.KindDecimal:
		return shapeDecimal(value, c)
	case column.KindList:
		return shapeList(value, c)
	case column.KindMap:
		return shapeMap(value, c)
	case column.KindStruct:
		return shapeStruct(value, c)
	default:
		return nil, kawaierr.New(kawaierr.KindBadRow, "unrecognized column kind", nil)
	}
}

func shapeLeaf(value any, c *column.Column) (any, error) {
	if c.Kind() == column.KindPrim && c.Prim() == column.UUID {
		switch v := value.(type) {
		case string:
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, kawaierr.New(kawaierr.KindBadRow, "value is not a valid UUID", err)
			}
			return id, nil
		case uuid.UUID:
			return v, nil
		}
	}
	return value, nil
}

// shapeDecimal narrows a raw decimal payload into an exact decimal.Decimal.
// goavro.Codec.NativeFromBinary decodes an Avro decimal logical type to a
// *big.Rat exactly equal to unscaled/10^scale; the []byte case below handles
// a raw big-endian two's complement unscaled integer from non-goavro callers.
func shapeDecimal(value any, c *column.Column) (any, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case *big.Rat:
		scale := c.Scale()
		pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
		scaled := new(big.Int).Mul(v.Num(), pow)
		unscaled, rem := new(big.Int).QuoRem(scaled, v.Denom(), new(big.Int))
		if rem.Sign() != 0 {
			return nil, kawaierr.New(kawaierr.KindBadRow, "decimal value is not exactly representable at the column's scale", nil)
		}
		return decimal.NewFromBigInt(unscaled, int32(-scale)), nil
	case []byte:
		unscaled := new(big.Int).SetBytes(v)
		if len(v) > 0 && v[0]&0x80 != 0 {
			// Two's complement negative: subtract 2^(8*len(v)).
			full := new(big.Int).Lsh(big.NewInt(1), uint(8*len(v)))
			unscaled.Sub(unscaled, full)
		}
		return decimal.NewFromBigInt(unscaled, int32(-c.Scale())), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, kawaierr.New(kawaierr.KindBadRow, "value is not a valid decimal string", err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return nil, kawaierr.New(kawaierr.KindBadRow, fmt.Sprintf("unsupported decimal representation %T", value), nil)
	}
}

func shapeList(value any, c *column.Column) (any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadRow, fmt.Sprintf("expected a list value, got %T", value), nil)
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		shaped, err := shapeOne(item, c.Item())
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
	}
	return out, nil
}

func shapeMap(value any, c *column.Column) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadRow, fmt.Sprintf("expected a map value, got %T", value), nil)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		shaped, err := shapeOne(v, c.MapValue())
		if err != nil {
			return nil, err
		}
		out[k] = shaped
	}
	return out, nil
}

func shapeStruct(value any, c *column.Column) (any, error) {
	fields, err := structFieldValues(value, c)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(c.Fields()))
	for _, f := range c.Fields() {
		fv, present := fields[f.Name]
		if !present {
			if !f.Column.IsNullable() {
				return nil, kawaierr.New(kawaierr.KindBadRow, fmt.Sprintf("missing required field %q", f.Name), nil)
			}
			out[f.Name] = nil
			continue
		}
		shaped, err := shapeOne(fv, f.Column)
		if err != nil {
			return nil, err
		}
		out[f.Name] = shaped
	}
	return out, nil
}

// shapeUnion handles both the decoder's UnionValue shape (Protobuf oneof)
// and a bare map[string]any with one key (goavro's own native union
// convention), producing a discriminated (tag, value) pair.
func shapeUnion(value any, c *column.Column) (any, error) {
	tag, inner, err := splitUnion(value)
	if err != nil {
		return nil, err
	}
	if tag == column.NullTag {
		return decode.UnionValue{Tag: column.NullTag, Value: nil}, nil
	}
	for _, b := range c.Branches() {
		if b.Tag == tag {
			shaped, err := shapeOne(inner, b.Column)
			if err != nil {
				return nil, err
			}
			return decode.UnionValue{Tag: tag, Value: shaped}, nil
		}
	}
	return nil, kawaierr.New(kawaierr.KindDecode, fmt.Sprintf("unknown union branch tag %q", tag), nil)
}

func splitUnion(value any) (string, any, error) {
	switch v := value.(type) {
	case decode.UnionValue:
		return v.Tag, v.Value, nil
	case map[string]any:
		if len(v) == 0 {
			return column.NullTag, nil, nil
		}
		if len(v) != 1 {
			return "", nil, kawaierr.New(kawaierr.KindBadRow, "union value must have exactly one branch", nil)
		}
		for k, val := range v {
			return k, val, nil
		}
	}
	return column.NullTag, nil, nil
}
