// Package column implements the typed, recursive column algebra:
// primitives, decimal(p,s), fixed<n>, enum<symbols>, list<T>, map<K,V>,
// struct<fields>, and tagged-union<branches>, each carrying a nullability
// strategy. Construction validates every invariant up front so that a
// *Column in hand is always renderable and flattenable without re-checking.
package column

import (
	"fmt"

	"github.com/kcache/kawai/internal/kawaierr"
)

// PrimKind enumerates the leaf scalar kinds a Column can hold.
type PrimKind int

const (
	Bool PrimKind = iota
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Utf8
	Bytes
	Date
	TimestampMicros
	UUID
)

func (p PrimKind) String() string {
	switch p {
	case Bool:
		return "bool"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Utf8:
		return "utf8"
	case Bytes:
		return "bytes"
	case Date:
		return "date"
	case TimestampMicros:
		return "timestamp_micros"
	case UUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// Kind discriminates the algebraic cases of Column.
type Kind int

const (
	KindPrim Kind = iota
	KindDecimal
	KindFixed
	KindEnum
	KindList
	KindMap
	KindStruct
	KindUnion
)

// StrategyMode is the nullability strategy a Column carries.
type StrategyMode int

const (
	NotNull StrategyMode = iota
	Null
	Default
)

// Strategy pairs a StrategyMode with the default expression text when the
// mode is Default.
type Strategy struct {
	Mode StrategyMode
	Expr string
}

// NotNullStrategy is the default strategy every constructor applies unless
// WithStrategy is used.
var NotNullStrategy = Strategy{Mode: NotNull}

// NullStrategy marks a column as nullable.
var NullStrategy = Strategy{Mode: Null}

// DefaultStrategy gives a column a default expression. IsNullable reports
// false for it; its DDL carries only the DEFAULT clause, without NOT NULL.
func DefaultStrategy(expr string) Strategy {
	return Strategy{Mode: Default, Expr: expr}
}

// Field is one named member of a Struct, in declared order.
type Field struct {
	Name   string
	Column *Column
}

// Branch is one named alternative of a Union, in declared order. The tag
// "null" is reserved for the branch representing an absent value.
type Branch struct {
	Tag    string
	Column *Column
}

// NullTag is the reserved branch tag for a union's null alternative.
const NullTag = "null"

// Column is the recursive, immutable description of one relational column.
// Use the constructors (NewPrim, NewDecimal, ...) rather than building this
// struct directly — they enforce the column's validity invariants.
type Column struct {
	kind     Kind
	strategy Strategy

	prim PrimKind // KindPrim

	precision int // KindDecimal
	scale     int

	fixedLen int // KindFixed

	enumName string // KindEnum
	symbols  []string

	item *Column // KindList

	mapKey   *Column // KindMap
	mapValue *Column

	fields []Field // KindStruct

	branches []Branch // KindUnion
}

func (c *Column) Kind() Kind           { return c.kind }
func (c *Column) Strategy() Strategy   { return c.strategy }
func (c *Column) Prim() PrimKind       { return c.prim }
func (c *Column) Precision() int       { return c.precision }
func (c *Column) Scale() int           { return c.scale }
func (c *Column) FixedLen() int        { return c.fixedLen }
func (c *Column) EnumName() string     { return c.enumName }
func (c *Column) Symbols() []string    { return c.symbols }
func (c *Column) Item() *Column        { return c.item }
func (c *Column) MapKey() *Column      { return c.mapKey }
func (c *Column) MapValue() *Column    { return c.mapValue }
func (c *Column) Fields() []Field      { return c.fields }
func (c *Column) Branches() []Branch   { return c.branches }

// IsNullable reports whether the column's strategy allows a null value.
func (c *Column) IsNullable() bool { return c.strategy.Mode == Null }

// WithStrategy returns a copy of c carrying the given nullability strategy.
// Used by the union-relaxation rule: a two-branch optional union relaxes
// its sibling branch to NULL.
func (c *Column) WithStrategy(s Strategy) *Column {
	cp := *c
	cp.strategy = s
	return &cp
}

func badSchema(msg string) error {
	return kawaierr.New(kawaierr.KindBadSchema, msg, nil)
}

// NewPrim constructs a primitive column with the default NOT_NULL strategy.
func NewPrim(kind PrimKind) *Column {
	return &Column{kind: KindPrim, prim: kind, strategy: NotNullStrategy}
}

// NewDecimal constructs a decimal(precision, scale) column, requiring
// 1 <= scale <= precision <= 38.
func NewDecimal(precision, scale int) (*Column, error) {
	if scale < 1 || scale > precision || precision > 38 {
		return nil, badSchema(fmt.Sprintf("invalid decimal(%d, %d): require 1 <= scale <= precision <= 38", precision, scale))
	}
	return &Column{kind: KindDecimal, precision: precision, scale: scale, strategy: NotNullStrategy}, nil
}

// NewFixed constructs a fixed-length byte-string column of exactly n bytes.
func NewFixed(n int) (*Column, error) {
	if n <= 0 {
		return nil, badSchema(fmt.Sprintf("invalid fixed length %d: must be positive", n))
	}
	return &Column{kind: KindFixed, fixedLen: n, strategy: NotNullStrategy}, nil
}

// NewEnum constructs an enum column; symbols must be non-empty and unique.
func NewEnum(name string, symbols []string) (*Column, error) {
	if len(symbols) == 0 {
		return nil, badSchema(fmt.Sprintf("enum %q has no symbols", name))
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			return nil, badSchema(fmt.Sprintf("enum %q has duplicate symbol %q", name, s))
		}
		seen[s] = struct{}{}
	}
	cp := append([]string(nil), symbols...)
	return &Column{kind: KindEnum, enumName: name, symbols: cp, strategy: NotNullStrategy}, nil
}

// NewList constructs a list<item> column.
func NewList(item *Column) *Column {
	return &Column{kind: KindList, item: item, strategy: NotNullStrategy}
}

// NewMap constructs a map<key,value> column. The key must be a
// stringifiable primitive or enum.
func NewMap(key, value *Column) (*Column, error) {
	if !isStringifiable(key) {
		return nil, badSchema("map key must be a stringifiable primitive or enum")
	}
	return &Column{kind: KindMap, mapKey: key, mapValue: value, strategy: NotNullStrategy}, nil
}

func isStringifiable(c *Column) bool {
	switch c.kind {
	case KindEnum:
		return true
	case KindPrim:
		switch c.prim {
		case Bytes:
			return false
		default:
			return true
		}
	default:
		return false
	}
}

// NewStruct constructs a struct<fields> column. Field names must be unique
// and non-empty; order carries semantic position.
func NewStruct(fields []Field) (*Column, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, badSchema("struct field name must not be empty")
		}
		if _, dup := seen[f.Name]; dup {
			return nil, badSchema(fmt.Sprintf("struct has duplicate field %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	cp := append([]Field(nil), fields...)
	return &Column{kind: KindStruct, fields: cp, strategy: NotNullStrategy}, nil
}

// NewUnion constructs a tagged-union<branches> column. Branch tags must be
// unique and non-empty; at most one null-tagged branch is permitted.
func NewUnion(branches []Branch) (*Column, error) {
	seen := make(map[string]struct{}, len(branches))
	for _, b := range branches {
		if b.Tag == "" {
			return nil, badSchema("union branch tag must not be empty")
		}
		if _, dup := seen[b.Tag]; dup {
			return nil, badSchema(fmt.Sprintf("union has duplicate branch %q", b.Tag))
		}
		seen[b.Tag] = struct{}{}
	}
	cp := append([]Branch(nil), branches...)
	return &Column{kind: KindUnion, branches: cp, strategy: NotNullStrategy}, nil
}

// Validate re-checks the invariants that construction already enforced for
// this node plus every nested node. It's a defensive re-walk for columns
// built up incrementally via WithStrategy copies.
func (c *Column) Validate() error {
	switch c.kind {
	case KindDecimal:
		if c.scale < 1 || c.scale > c.precision || c.precision > 38 {
			return badSchema(fmt.Sprintf("invalid decimal(%d, %d)", c.precision, c.scale))
		}
	case KindFixed:
		if c.fixedLen <= 0 {
			return badSchema(fmt.Sprintf("invalid fixed length %d", c.fixedLen))
		}
	case KindEnum:
		if len(c.symbols) == 0 {
			return badSchema(fmt.Sprintf("enum %q has no symbols", c.enumName))
		}
	case KindList:
		return c.item.Validate()
	case KindMap:
		if err := c.mapKey.Validate(); err != nil {
			return err
		}
		return c.mapValue.Validate()
	case KindStruct:
		seen := make(map[string]struct{}, len(c.fields))
		for _, f := range c.fields {
			if f.Name == "" {
				return badSchema("struct field name must not be empty")
			}
			if _, dup := seen[f.Name]; dup {
				return badSchema(fmt.Sprintf("struct has duplicate field %q", f.Name))
			}
			seen[f.Name] = struct{}{}
			if err := f.Column.Validate(); err != nil {
				return err
			}
		}
	case KindUnion:
		seen := make(map[string]struct{}, len(c.branches))
		for _, b := range c.branches {
			if b.Tag == "" {
				return badSchema("union branch tag must not be empty")
			}
			if _, dup := seen[b.Tag]; dup {
				return badSchema(fmt.Sprintf("union has duplicate branch %q", b.Tag))
			}
			seen[b.Tag] = struct{}{}
			if b.Tag == NullTag {
				continue
			}
			if err := b.Column.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
