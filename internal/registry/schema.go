// Package registry implements schema resolution: given a topic and a
// role (key or value), it yields either a primitive serde tag or a parsed
// structural schema, resolved from an inline declaration, a schema
// registry's latest version for a subject, or a registry lookup by id.
package registry

import "fmt"

// SerdeTag is one of the leaf serdes or resolution directives.
// The first seven are primitive leaf serdes decoded with no
// registry I/O; the last three (avroLike, jsonLike, protoLike) are declared
// but not used: an inline directive records its schema language as a
// SchemaType, and resolution yields a ParsedSchema, so these tags never
// appear as the tag half of a ResolvedSchema.
type SerdeTag int

const (
	Short SerdeTag = iota
	Int
	Long
	Float
	Double
	String
	Binary
	avroLike
	jsonLike
	protoLike
)

func (t SerdeTag) String() string {
	switch t {
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case String:
		return "string"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Family classifies a ParsedSchema by the shape of its native AST.
type Family int

const (
	FamilyRecord Family = iota
	FamilyJSON
	FamilyDescriptor
)

func (f Family) String() string {
	switch f {
	case FamilyRecord:
		return "record-oriented"
	case FamilyJSON:
		return "json-oriented"
	case FamilyDescriptor:
		return "descriptor-oriented"
	default:
		return "unknown"
	}
}

// Reference is a named subschema reference as returned by the registry
// alongside a schema's own text.
type Reference struct {
	Name    string
	Subject string
	Version int
}

// ParsedSchema is the family tag plus the family's native AST (opaque to
// everything except the matching translator/decoder pair) and the list of
// named subschema references carried alongside it.
type ParsedSchema struct {
	Family Family
	AST    any
	Refs   []Reference

	// Text is the original schema source. Most decoders work from AST
	// alone, but families whose wire codec library wants the raw
	// definition (Avro's goavro.NewCodec) need it verbatim.
	Text string

	// ID is the registry-assigned schema id, or a negative value from the
	// engine's monotonic counter when the schema arrived inline with no
	// registry id. Used to key the decoder cache so two distinct inline
	// schema texts on the same topic don't collide.
	ID int
}

// ResolvedSchema is the Either<SerdeTag, ParsedSchema> sum a resolve
// call produces.
// Exactly one of the two accessors is meaningful; check IsPrimitive first.
type ResolvedSchema struct {
	primitive bool
	tag       SerdeTag
	parsed    *ParsedSchema
}

// PrimitiveResolved builds a ResolvedSchema carrying a leaf serde tag.
func PrimitiveResolved(tag SerdeTag) ResolvedSchema {
	return ResolvedSchema{primitive: true, tag: tag}
}

// StructuralResolved builds a ResolvedSchema carrying a parsed schema.
func StructuralResolved(p *ParsedSchema) ResolvedSchema {
	return ResolvedSchema{primitive: false, parsed: p}
}

// IsPrimitive reports whether this resolution produced a leaf serde tag
// rather than a structural schema.
func (r ResolvedSchema) IsPrimitive() bool { return r.primitive }

// Tag returns the leaf serde tag. Only meaningful when IsPrimitive is true.
func (r ResolvedSchema) Tag() SerdeTag { return r.tag }

// Parsed returns the structural schema. Only meaningful when IsPrimitive is
// false.
func (r ResolvedSchema) Parsed() *ParsedSchema { return r.parsed }

func (r ResolvedSchema) String() string {
	if r.primitive {
		return r.tag.String()
	}
	return fmt.Sprintf("parsed(%s, id=%d)", r.parsed.Family, r.parsed.ID)
}

// Role distinguishes the key half of a record from the value half; each
// topic has an independent binding per role.
type Role int

const (
	RoleKey Role = iota
	RoleValue
)

func (r Role) String() string {
	if r == RoleKey {
		return "key"
	}
	return "value"
}

// Subject is the registry key convention "<topic>-<role>" named in the
// glossary.
func Subject(topic string, role Role) string {
	return topic + "-" + role.String()
}
