package translate

import (
	"encoding/json"
	"fmt"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/registry"
)

// avroNode is the hand-walked native AST for the record-oriented family.
// Avro schema JSON is parsed directly rather than through a schema-object
// library, mirroring the "hand-walked JSON schema AST" design recorded for
// this family: goavro is used only for the wire codec (internal/decode),
// never for structural introspection.
type avroNode struct {
	kind string // "record","enum","array","map","fixed","union","null", or a primitive name

	name   string // record/enum/fixed
	fields []avroField
	items  *avroNode // array
	values *avroNode // map
	size   int       // fixed
	symbols []string // enum
	branches []avroNode // union

	logicalType string // "decimal" on bytes/fixed, "uuid" on string, "date"/"timestamp-micros" on int/long
	precision   int
	scale       int
}

type avroField struct {
	name   string
	schema avroNode
}

type avroFamily struct{}

// Parse implements FamilyParser for the Avro family.
func (a *avroFamily) Parse(text string, refs []registry.ResolvedRef) (any, error) {
	env := make(map[string]json.RawMessage, len(refs))
	for _, ref := range refs {
		env[ref.Name] = json.RawMessage(ref.Raw.Text)
	}
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "invalid Avro schema JSON", err)
	}
	node, err := parseAvroNode(raw, env, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	return node, nil
}

// parseAvroNode parses one Avro schema JSON value, recursively. refEnv maps
// a reference name to its raw JSON definition (from registry references);
// visiting tracks named types currently being parsed purely to give a
// clearer parse-time error for direct self-reference (translation time
// repeats this check against the full translation context).
func parseAvroNode(raw json.RawMessage, refEnv map[string]json.RawMessage, visiting map[string]bool) (avroNode, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return parseAvroNamedOrPrimitive(asString, refEnv, visiting)
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		branches := make([]avroNode, 0, len(asArray))
		for _, b := range asArray {
			bn, err := parseAvroNode(b, refEnv, visiting)
			if err != nil {
				return avroNode{}, err
			}
			branches = append(branches, bn)
		}
		return avroNode{kind: "union", branches: branches}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, "unrecognized Avro schema shape", err)
	}
	return parseAvroObject(obj, refEnv, visiting)
}

func parseAvroNamedOrPrimitive(name string, refEnv map[string]json.RawMessage, visiting map[string]bool) (avroNode, error) {
	switch name {
	case "null", "boolean", "int", "long", "float", "double", "bytes", "string":
		return avroNode{kind: name}, nil
	}
	if def, ok := refEnv[name]; ok {
		if visiting[name] {
			return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("recursive self-reference to %q", name), nil)
		}
		visiting[name] = true
		defer delete(visiting, name)
		return parseAvroNode(def, refEnv, visiting)
	}
	return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("unresolved Avro type reference %q", name), nil)
}

func parseAvroObject(obj map[string]json.RawMessage, refEnv map[string]json.RawMessage, visiting map[string]bool) (avroNode, error) {
	var typ string
	if err := json.Unmarshal(obj["type"], &typ); err != nil {
		return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, "Avro schema object missing \"type\"", err)
	}

	var logicalType string
	if lt, ok := obj["logicalType"]; ok {
		_ = json.Unmarshal(lt, &logicalType)
	}

	switch typ {
	case "record":
		var name string
		_ = json.Unmarshal(obj["name"], &name)
		if visiting[name] {
			return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("recursive self-reference to %q", name), nil)
		}
		if name != "" {
			visiting[name] = true
			defer delete(visiting, name)
			refEnv[name] = mustMarshal(obj)
		}
		var rawFields []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(obj["fields"], &rawFields); err != nil {
			return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, "Avro record missing \"fields\"", err)
		}
		fields := make([]avroField, 0, len(rawFields))
		for _, rf := range rawFields {
			fn, err := parseAvroNode(rf.Type, refEnv, visiting)
			if err != nil {
				return avroNode{}, err
			}
			fields = append(fields, avroField{name: rf.Name, schema: fn})
		}
		return avroNode{kind: "record", name: name, fields: fields}, nil

	case "enum":
		var name string
		var symbols []string
		_ = json.Unmarshal(obj["name"], &name)
		if err := json.Unmarshal(obj["symbols"], &symbols); err != nil {
			return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, "Avro enum missing \"symbols\"", err)
		}
		return avroNode{kind: "enum", name: name, symbols: symbols}, nil

	case "array":
		items, err := parseAvroNode(obj["items"], refEnv, visiting)
		if err != nil {
			return avroNode{}, err
		}
		return avroNode{kind: "array", items: &items}, nil

	case "map":
		values, err := parseAvroNode(obj["values"], refEnv, visiting)
		if err != nil {
			return avroNode{}, err
		}
		return avroNode{kind: "map", values: &values}, nil

	case "fixed":
		var name string
		var size int
		_ = json.Unmarshal(obj["name"], &name)
		if err := json.Unmarshal(obj["size"], &size); err != nil {
			return avroNode{}, kawaierr.New(kawaierr.KindBadSchema, "Avro fixed missing \"size\"", err)
		}
		node := avroNode{kind: "fixed", name: name, size: size, logicalType: logicalType}
		if logicalType == "decimal" {
			_ = json.Unmarshal(obj["precision"], &node.precision)
			_ = json.Unmarshal(obj["scale"], &node.scale)
		}
		return node, nil

	case "bytes":
		node := avroNode{kind: "bytes", logicalType: logicalType}
		if logicalType == "decimal" {
			_ = json.Unmarshal(obj["precision"], &node.precision)
			_ = json.Unmarshal(obj["scale"], &node.scale)
		}
		return node, nil

	case "int":
		return avroNode{kind: "int", logicalType: logicalType}, nil

	case "long":
		return avroNode{kind: "long", logicalType: logicalType}, nil

	case "string":
		return avroNode{kind: "string", logicalType: logicalType}, nil

	default:
		// Could be a bare union-free reference to another named type spelled
		// with an object wrapper, or an unsupported logical base; recurse on
		// the type name itself.
		return parseAvroNamedOrPrimitive(typ, refEnv, visiting)
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// ToColumn implements Translator for the Avro family.
func (a *avroFamily) ToColumn(ast any, ctx *Context) (*column.Column, error) {
	node, ok := ast.(avroNode)
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "Avro translator received a non-Avro AST", nil)
	}
	return avroToColumn(node, ctx)
}

func avroToColumn(n avroNode, ctx *Context) (*column.Column, error) {
	switch n.kind {
	case "null":
		return column.NewPrim(column.Utf8).WithStrategy(column.NullStrategy), nil
	case "boolean":
		return column.NewPrim(column.Bool), nil
	case "int":
		if n.logicalType == "date" {
			return column.NewPrim(column.Date), nil
		}
		return column.NewPrim(column.I32), nil
	case "long":
		if n.logicalType == "timestamp-micros" || n.logicalType == "timestamp-millis" {
			return column.NewPrim(column.TimestampMicros), nil
		}
		return column.NewPrim(column.I64), nil
	case "float":
		return column.NewPrim(column.F32), nil
	case "double":
		return column.NewPrim(column.F64), nil
	case "bytes":
		if n.logicalType == "decimal" {
			return column.NewDecimal(n.precision, n.scale)
		}
		return column.NewPrim(column.Bytes), nil
	case "string":
		if n.logicalType == "uuid" {
			return column.NewPrim(column.UUID), nil
		}
		return column.NewPrim(column.Utf8), nil
	case "fixed":
		if n.logicalType == "decimal" {
			return column.NewDecimal(n.precision, n.scale)
		}
		return column.NewFixed(n.size)
	case "enum":
		return column.NewEnum(n.name, n.symbols)
	case "array":
		item, err := avroToColumn(*n.items, ctx)
		if err != nil {
			return nil, err
		}
		return column.NewList(item), nil
	case "map":
		value, err := avroToColumn(*n.values, ctx)
		if err != nil {
			return nil, err
		}
		return column.NewMap(column.NewPrim(column.Utf8), value)
	case "record":
		if err := ctx.Enter(n.name); err != nil {
			return nil, err
		}
		defer ctx.Leave(n.name)
		fields := make([]column.Field, 0, len(n.fields))
		for _, f := range n.fields {
			fc, err := avroToColumn(f.schema, ctx)
			if err != nil {
				return nil, err
			}
			fields = append(fields, column.Field{Name: f.name, Column: fc})
		}
		return column.NewStruct(fields)
	case "union":
		return avroUnionToColumn(n.branches, ctx)
	default:
		return nil, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("unsupported Avro schema kind %q", n.kind), nil)
	}
}

// avroUnionToColumn implements the sum-type rule: a null branch becomes
// the "null" tag; a two-branch union with one null branch relaxes the
// sibling's nullability to NULL instead of producing a Union.
func avroUnionToColumn(branches []avroNode, ctx *Context) (*column.Column, error) {
	hasNull := false
	nonNull := make([]avroNode, 0, len(branches))
	for _, b := range branches {
		if b.kind == "null" {
			hasNull = true
			continue
		}
		nonNull = append(nonNull, b)
	}

	if hasNull && len(nonNull) == 1 {
		c, err := avroToColumn(nonNull[0], ctx)
		if err != nil {
			return nil, err
		}
		return c.WithStrategy(column.NullStrategy), nil
	}

	branchCols := make([]column.Branch, 0, len(branches))
	for _, b := range branches {
		if b.kind == "null" {
			branchCols = append(branchCols, column.Branch{Tag: column.NullTag, Column: column.NewPrim(column.Utf8).WithStrategy(column.NullStrategy)})
			continue
		}
		bc, err := avroToColumn(b, ctx)
		if err != nil {
			return nil, err
		}
		branchCols = append(branchCols, column.Branch{Tag: avroBranchTag(b), Column: bc})
	}
	return column.NewUnion(branchCols)
}

// avroBranchTag names a union branch the way Avro's own union resolution
// names its member types: the primitive name, or the record/enum/fixed's
// own name.
func avroBranchTag(n avroNode) string {
	switch n.kind {
	case "record", "enum", "fixed":
		return n.name
	default:
		return n.kind
	}
}
