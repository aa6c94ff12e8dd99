package column

import (
	"fmt"
	"strings"
)

// primDDL maps each PrimKind onto its DuckDB scalar type name.
var primDDL = map[PrimKind]string{
	Bool:            "BOOLEAN",
	I8:              "TINYINT",
	I16:             "SMALLINT",
	I32:             "INTEGER",
	I64:             "BIGINT",
	U8:              "UTINYINT",
	U16:             "USMALLINT",
	U32:             "UINTEGER",
	U64:             "UBIGINT",
	F32:             "FLOAT",
	F64:             "DOUBLE",
	Utf8:            "VARCHAR",
	Bytes:           "BLOB",
	Date:            "DATE",
	TimestampMicros: "TIMESTAMP",
	UUID:            "UUID",
}

// RenderDDL renders the column's type in the analytic engine's dialect
// (DuckDB), not including the column name. The nullability strategy is
// appended as a trailing clause.
func (c *Column) RenderDDL() string {
	return c.renderType() + c.renderStrategy()
}

func (c *Column) renderStrategy() string {
	switch c.strategy.Mode {
	case Null:
		return "" // DuckDB columns are nullable by default
	case Default:
		return fmt.Sprintf(" DEFAULT %s", c.strategy.Expr)
	default:
		return " NOT NULL"
	}
}

func (c *Column) renderType() string {
	switch c.kind {
	case KindPrim:
		return primDDL[c.prim]
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", c.precision, c.scale)
	case KindFixed:
		return "BLOB"
	case KindEnum:
		quoted := make([]string, len(c.symbols))
		for i, s := range c.symbols {
			quoted[i] = "'" + strings.ReplaceAll(s, "'", "''") + "'"
		}
		return fmt.Sprintf("ENUM(%s)", strings.Join(quoted, ", "))
	case KindList:
		return c.item.renderType() + "[]"
	case KindMap:
		return fmt.Sprintf("MAP(%s, %s)", c.mapKey.renderType(), c.mapValue.renderType())
	case KindStruct:
		parts := make([]string, len(c.fields))
		for i, f := range c.fields {
			parts[i] = fmt.Sprintf("%s %s", quoteIdent(f.Name), f.Column.RenderDDL())
		}
		return fmt.Sprintf("STRUCT(%s)", strings.Join(parts, ", "))
	case KindUnion:
		parts := make([]string, 0, len(c.branches))
		for _, b := range c.branches {
			if b.Tag == NullTag {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s", quoteIdent(b.Tag), b.Column.renderType()))
		}
		return fmt.Sprintf("UNION(%s)", strings.Join(parts, ", "))
	default:
		return "UNKNOWN"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RenderColumnDDL renders "name TYPE [strategy]" for a single top-level
// column, as used by the table manager when building CREATE TABLE.
func RenderColumnDDL(name string, c *Column) string {
	return fmt.Sprintf("%s %s", quoteIdent(name), c.RenderDDL())
}
