package registry

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/kcache/kawai/internal/kawaierr"
)

// DirectiveKind discriminates the shapes a serde directive string can take.
type DirectiveKind int

const (
	DirectivePrimitive DirectiveKind = iota
	DirectiveInline
	DirectiveLatest
	DirectiveByID
)

// SchemaType names the wire schema language an inline or registry-fetched
// schema is written in, matching the registry's own vocabulary.
type SchemaType string

const (
	SchemaTypeAvro     SchemaType = "AVRO"
	SchemaTypeJSON     SchemaType = "JSON"
	SchemaTypeProtobuf SchemaType = "PROTOBUF"
)

// Directive is a parsed serde-directive: exactly one of the literal forms
// ("short|int|long|...", "latest", "id:<int>",
// "inline:<type>:<base64-schema>[+refs...]").
type Directive struct {
	Kind DirectiveKind

	Primitive SerdeTag // DirectivePrimitive

	ID int // DirectiveByID

	SchemaType SchemaType // DirectiveInline
	Text       string
	Refs       []Reference
}

var primitiveNames = map[string]SerdeTag{
	"short":  Short,
	"int":    Int,
	"long":   Long,
	"float":  Float,
	"double": Double,
	"string": String,
	"binary": Binary,
}

// ParseDirective parses one of the recognized literal forms for a
// `key.serdes` / `value.serdes` entry.
func ParseDirective(s string) (Directive, error) {
	if tag, ok := primitiveNames[s]; ok {
		return Directive{Kind: DirectivePrimitive, Primitive: tag}, nil
	}
	if s == "latest" {
		return Directive{Kind: DirectiveLatest}, nil
	}
	if rest, ok := strings.CutPrefix(s, "id:"); ok {
		id, err := strconv.Atoi(rest)
		if err != nil {
			return Directive{}, kawaierr.New(kawaierr.KindConfig, "invalid id directive "+s, err)
		}
		return Directive{Kind: DirectiveByID, ID: id}, nil
	}
	if rest, ok := strings.CutPrefix(s, "inline:"); ok {
		return parseInline(rest)
	}
	return Directive{}, kawaierr.New(kawaierr.KindConfig, "unrecognized serde directive "+s, nil)
}

// parseInline parses "<type>:<base64-schema>[+refs…]". Additional '+'
// separated segments name subschema references as "<name>=<subject>@<version>".
func parseInline(s string) (Directive, error) {
	parts := strings.Split(s, "+")
	head := strings.SplitN(parts[0], ":", 2)
	if len(head) != 2 {
		return Directive{}, kawaierr.New(kawaierr.KindConfig, "malformed inline directive", nil)
	}
	schemaType, err := parseSchemaType(head[0])
	if err != nil {
		return Directive{}, err
	}
	decoded, err := base64.StdEncoding.DecodeString(head[1])
	if err != nil {
		return Directive{}, kawaierr.New(kawaierr.KindConfig, "inline schema is not valid base64", err)
	}
	refs := make([]Reference, 0, len(parts)-1)
	for _, refStr := range parts[1:] {
		ref, err := parseRef(refStr)
		if err != nil {
			return Directive{}, err
		}
		refs = append(refs, ref)
	}
	return Directive{Kind: DirectiveInline, SchemaType: schemaType, Text: string(decoded), Refs: refs}, nil
}

func parseSchemaType(s string) (SchemaType, error) {
	switch strings.ToLower(s) {
	case "avro":
		return SchemaTypeAvro, nil
	case "json":
		return SchemaTypeJSON, nil
	case "protobuf", "proto":
		return SchemaTypeProtobuf, nil
	default:
		return "", kawaierr.New(kawaierr.KindConfig, "unknown inline schema type "+s, nil)
	}
}

func parseRef(s string) (Reference, error) {
	nameSubject := strings.SplitN(s, "=", 2)
	if len(nameSubject) != 2 {
		return Reference{}, kawaierr.New(kawaierr.KindConfig, "malformed schema reference "+s, nil)
	}
	subjectVersion := strings.SplitN(nameSubject[1], "@", 2)
	ref := Reference{Name: nameSubject[0], Subject: subjectVersion[0]}
	if len(subjectVersion) == 2 {
		v, err := strconv.Atoi(subjectVersion[1])
		if err != nil {
			return Reference{}, kawaierr.New(kawaierr.KindConfig, "malformed schema reference version in "+s, err)
		}
		ref.Version = v
	}
	return ref, nil
}

func familyFor(t SchemaType) Family {
	switch t {
	case SchemaTypeJSON:
		return FamilyJSON
	case SchemaTypeProtobuf:
		return FamilyDescriptor
	default:
		return FamilyRecord
	}
}
