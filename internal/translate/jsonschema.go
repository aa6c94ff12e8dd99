package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/registry"
)

// jsonNode is the hand-walked native AST for the JSON-Schema-oriented
// family, built the same way avroNode is: translation never re-parses raw
// text, it only walks an AST produced once at resolve time.
type jsonNode struct {
	typ         string // "object","array","string","integer","number","boolean","null", or "" for oneOf-only
	properties  []jsonProperty
	required    map[string]bool
	items       *jsonNode
	oneOf       []jsonNode
	enumSymbols []string
	name        string // discriminator member name, for oneOf branches
}

type jsonProperty struct {
	name   string
	schema jsonNode
}

type jsonSchemaFamily struct{}

// Parse implements FamilyParser for the JSON Schema family.
// It first compiles the schema with jsonschema/v5 purely to validate that
// the document is well-formed JSON Schema (a malformed document fails here
// and the resolver falls back to binary); the AST used for
// translation is then built by a direct structural walk of the same text,
// mirroring the other two families.
func (j *jsonSchemaFamily) Parse(text string, refs []registry.ResolvedRef) (any, error) {
	compiler := jsonschema.NewCompiler()
	const resourceURL = "kawai://inline-schema.json"
	if err := compiler.AddResource(resourceURL, strings.NewReader(text)); err != nil {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "invalid JSON Schema document", err)
	}
	if _, err := compiler.Compile(resourceURL); err != nil {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "JSON Schema failed to compile", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "invalid JSON Schema document", err)
	}
	node, err := parseJSONNode(raw)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func parseJSONNode(obj map[string]json.RawMessage) (jsonNode, error) {
	if oneOfRaw, ok := obj["oneOf"]; ok {
		var branches []map[string]json.RawMessage
		if err := json.Unmarshal(oneOfRaw, &branches); err != nil {
			return jsonNode{}, kawaierr.New(kawaierr.KindBadSchema, "malformed oneOf", err)
		}
		nodes := make([]jsonNode, 0, len(branches))
		for _, b := range branches {
			bn, err := parseJSONNode(b)
			if err != nil {
				return jsonNode{}, err
			}
			var title string
			if t, ok := b["title"]; ok {
				_ = json.Unmarshal(t, &title)
			}
			bn.name = title
			nodes = append(nodes, bn)
		}
		return jsonNode{typ: "", oneOf: nodes}, nil
	}

	if enumRaw, ok := obj["enum"]; ok {
		var symbols []string
		if err := json.Unmarshal(enumRaw, &symbols); err == nil {
			return jsonNode{typ: "string", enumSymbols: symbols}, nil
		}
	}

	var typ string
	if t, ok := obj["type"]; ok {
		_ = json.Unmarshal(t, &typ)
	}

	switch typ {
	case "object":
		var propsRaw map[string]json.RawMessage
		if p, ok := obj["properties"]; ok {
			_ = json.Unmarshal(p, &propsRaw)
		}
		var required []string
		if r, ok := obj["required"]; ok {
			_ = json.Unmarshal(r, &required)
		}
		req := make(map[string]bool, len(required))
		for _, r := range required {
			req[r] = true
		}
		props := make([]jsonProperty, 0, len(propsRaw))
		for name, raw := range propsRaw {
			var propObj map[string]json.RawMessage
			if err := json.Unmarshal(raw, &propObj); err != nil {
				return jsonNode{}, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("malformed property %q", name), err)
			}
			pn, err := parseJSONNode(propObj)
			if err != nil {
				return jsonNode{}, err
			}
			props = append(props, jsonProperty{name: name, schema: pn})
		}
		return jsonNode{typ: "object", properties: props, required: req}, nil

	case "array":
		var itemsObj map[string]json.RawMessage
		if it, ok := obj["items"]; ok {
			_ = json.Unmarshal(it, &itemsObj)
		}
		itemNode, err := parseJSONNode(itemsObj)
		if err != nil {
			return jsonNode{}, err
		}
		return jsonNode{typ: "array", items: &itemNode}, nil

	case "string", "integer", "number", "boolean", "null":
		return jsonNode{typ: typ}, nil

	default:
		return jsonNode{typ: "string"}, nil
	}
}

// ToColumn implements Translator for the JSON Schema family.
func (j *jsonSchemaFamily) ToColumn(ast any, ctx *Context) (*column.Column, error) {
	node, ok := ast.(jsonNode)
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "JSON Schema translator received a non-JSON-Schema AST", nil)
	}
	return jsonToColumn(node, ctx)
}

func jsonToColumn(n jsonNode, ctx *Context) (*column.Column, error) {
	if len(n.oneOf) > 0 {
		return jsonOneOfToColumn(n.oneOf, ctx)
	}
	if len(n.enumSymbols) > 0 {
		return column.NewEnum("enum", n.enumSymbols)
	}
	switch n.typ {
	case "object":
		fields := make([]column.Field, 0, len(n.properties))
		for _, p := range n.properties {
			fc, err := jsonToColumn(p.schema, ctx)
			if err != nil {
				return nil, err
			}
			if !n.required[p.name] {
				fc = fc.WithStrategy(column.NullStrategy)
			}
			fields = append(fields, column.Field{Name: p.name, Column: fc})
		}
		return column.NewStruct(fields)
	case "array":
		item, err := jsonToColumn(*n.items, ctx)
		if err != nil {
			return nil, err
		}
		return column.NewList(item), nil
	case "integer":
		return column.NewPrim(column.I64), nil
	case "number":
		return column.NewPrim(column.F64), nil
	case "boolean":
		return column.NewPrim(column.Bool), nil
	case "null":
		return column.NewPrim(column.Utf8).WithStrategy(column.NullStrategy), nil
	case "string", "":
		return column.NewPrim(column.Utf8), nil
	default:
		return nil, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("unsupported JSON Schema type %q", n.typ), nil)
	}
}

// jsonOneOfToColumn implements the discriminator rule: a oneOf becomes a
// Union whose branch tags are the member names (here, each branch's own
// "title", falling back to a positional name).
func jsonOneOfToColumn(branches []jsonNode, ctx *Context) (*column.Column, error) {
	branchCols := make([]column.Branch, 0, len(branches))
	for i, b := range branches {
		tag := b.name
		if tag == "" {
			tag = fmt.Sprintf("branch%d", i)
		}
		bc, err := jsonToColumn(b, ctx)
		if err != nil {
			return nil, err
		}
		branchCols = append(branchCols, column.Branch{Tag: tag, Column: bc})
	}
	return column.NewUnion(branchCols)
}
