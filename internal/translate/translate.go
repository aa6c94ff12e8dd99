// Package translate implements one pure to_column translator per schema
// family, dispatched by family tag, plus the Dispatcher that also serves as
// the registry package's Parser (family text -> native AST) so the whole
// parse-then-translate pipeline is wired through a single dispatch table
// keyed by family, rather than open polymorphism across schema types.
package translate

import (
	"fmt"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/registry"
)

// Context carries the state a translator needs beyond the schema itself:
// whether this is the key or value half of a record, the stack of named
// types currently being visited (cycle detection), and the environment
// resolving a reference name to its definition.
type Context struct {
	IsKey bool

	visiting map[string]bool
	env      map[string]any
}

// NewContext builds an empty translation context for one top-level
// to_column call.
func NewContext(isKey bool) *Context {
	return &Context{IsKey: isKey, visiting: make(map[string]bool), env: make(map[string]any)}
}

// Enter pushes name onto the visit stack, failing with a BadSchema error
// if it is already being visited.
func (c *Context) Enter(name string) error {
	if name == "" {
		return nil
	}
	if c.visiting[name] {
		return kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("recursive self-reference to %q", name), nil)
	}
	c.visiting[name] = true
	return nil
}

// Leave pops name off the visit stack.
func (c *Context) Leave(name string) {
	if name == "" {
		return
	}
	delete(c.visiting, name)
}

// Define binds name to def in the reference-resolution environment.
func (c *Context) Define(name string, def any) { c.env[name] = def }

// Lookup resolves a named reference against the environment.
func (c *Context) Lookup(name string) (any, bool) { v, ok := c.env[name]; return v, ok }

// Translator is the per-family contract: a pure function from a parsed
// native AST to a root Column.
type Translator interface {
	ToColumn(ast any, ctx *Context) (*column.Column, error)
}

// FamilyParser is the per-family contract for turning raw schema text (plus
// resolved references) into that family's native AST, ahead of
// translation. Implemented by the same family-specific code as Translator
// so the AST shape each one produces is privately understood by its own
// ToColumn.
type FamilyParser interface {
	Parse(text string, refs []registry.ResolvedRef) (any, error)
}

// Dispatcher is the single family-keyed dispatch table: it implements
// registry.Parser (so the resolver can parse raw schema text) and exposes
// ToColumn (so the ingest loop can translate a resolved ParsedSchema into a
// root Column). There is exactly one Dispatcher per engine.
type Dispatcher struct {
	parsers     map[registry.SchemaType]FamilyParser
	translators map[registry.Family]Translator
}

// NewDispatcher wires up the three supported schema families: Avro,
// JSON Schema, and Protobuf.
func NewDispatcher() *Dispatcher {
	avro := &avroFamily{}
	jsonSchema := &jsonSchemaFamily{}
	proto := &protobufFamily{}
	return &Dispatcher{
		parsers: map[registry.SchemaType]FamilyParser{
			registry.SchemaTypeAvro:     avro,
			registry.SchemaTypeJSON:     jsonSchema,
			registry.SchemaTypeProtobuf: proto,
		},
		translators: map[registry.Family]Translator{
			registry.FamilyRecord:     avro,
			registry.FamilyJSON:       jsonSchema,
			registry.FamilyDescriptor: proto,
		},
	}
}

// Parse implements registry.Parser.
func (d *Dispatcher) Parse(schemaType registry.SchemaType, text string, refs []registry.ResolvedRef) (any, error) {
	p, ok := d.parsers[schemaType]
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("no parser registered for schema type %q", schemaType), nil)
	}
	return p.Parse(text, refs)
}

// ToColumn translates a resolved ParsedSchema into its root Column,
// dispatching on family.
func (d *Dispatcher) ToColumn(parsed *registry.ParsedSchema, isKey bool) (*column.Column, error) {
	t, ok := d.translators[parsed.Family]
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("no translator registered for family %q", parsed.Family), nil)
	}
	return t.ToColumn(parsed.AST, NewContext(isKey))
}

// PrimitiveColumn maps a leaf SerdeTag to the column it occupies when a
// binding resolves to a primitive rather than a structural schema (no
// registry or translator involvement: a primitive tag maps straight to
// its column with no I/O. The column is nullable, since a primitive-serde
// payload may be absent (an empty key or a tombstone value).
func PrimitiveColumn(tag registry.SerdeTag) (*column.Column, error) {
	switch tag {
	case registry.Short:
		return column.NewPrim(column.I16).WithStrategy(column.NullStrategy), nil
	case registry.Int:
		return column.NewPrim(column.I32).WithStrategy(column.NullStrategy), nil
	case registry.Long:
		return column.NewPrim(column.I64).WithStrategy(column.NullStrategy), nil
	case registry.Float:
		return column.NewPrim(column.F32).WithStrategy(column.NullStrategy), nil
	case registry.Double:
		return column.NewPrim(column.F64).WithStrategy(column.NullStrategy), nil
	case registry.String:
		return column.NewPrim(column.Utf8).WithStrategy(column.NullStrategy), nil
	case registry.Binary:
		return column.NewPrim(column.Bytes).WithStrategy(column.NullStrategy), nil
	default:
		return nil, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("unrecognized primitive serde tag %q", tag), nil)
	}
}
