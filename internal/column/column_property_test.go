package column_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kcache/kawai/internal/column"
)

// genPrimKind picks uniformly among the scalar kinds.
func genPrimKind() gopter.Gen {
	kinds := []column.PrimKind{
		column.Bool, column.I8, column.I16, column.I32, column.I64,
		column.U8, column.U16, column.U32, column.U64,
		column.F32, column.F64, column.Utf8, column.Bytes,
		column.Date, column.TimestampMicros, column.UUID,
	}
	return gen.IntRange(0, len(kinds)-1).Map(func(i int) column.PrimKind { return kinds[i] })
}

// TestFlattenTopLevelLaws checks invariant 3 for arbitrary structs and
// arbitrary non-struct primitives: flatten_top_level(Struct(fs)) == fs, and
// flatten_top_level(c) == [("value", c)] for any non-struct c.
func TestFlattenTopLevelLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("flatten of a struct returns its own fields in order", prop.ForAll(
		func(names []string) bool {
			if len(names) == 0 {
				return true
			}
			seen := map[string]bool{}
			fields := make([]column.Field, 0, len(names))
			for i, n := range names {
				key := n + string(rune('a'+i%26))
				if seen[key] {
					continue
				}
				seen[key] = true
				fields = append(fields, column.Field{Name: key, Column: column.NewPrim(column.I32)})
			}
			s, err := column.NewStruct(fields)
			if err != nil {
				return true
			}
			flat := column.FlattenTopLevel(s)
			if len(flat) != len(fields) {
				return false
			}
			for i := range fields {
				if flat[i].Name != fields[i].Name || flat[i].Column != fields[i].Column {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("flatten of a non-struct yields a single value field", prop.ForAll(
		func(k column.PrimKind) bool {
			p := column.NewPrim(k)
			flat := column.FlattenTopLevel(p)
			return len(flat) == 1 && flat[0].Name == "value" && flat[0].Column == p
		},
		genPrimKind(),
	))

	properties.TestingRun(t)
}

// TestDecimalBoundsProperty checks that NewDecimal accepts exactly the
// region 1 <= scale <= precision <= 38 and rejects everything else.
func TestDecimalBoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("decimal construction matches the bounds predicate", prop.ForAll(
		func(precision, scale int) bool {
			_, err := column.NewDecimal(precision, scale)
			inBounds := scale >= 1 && scale <= precision && precision <= 38
			return (err == nil) == inBounds
		},
		gen.IntRange(-5, 50),
		gen.IntRange(-5, 50),
	))

	properties.TestingRun(t)
}
