package decode

import (
	"encoding/json"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/linkedin/goavro/v2"

	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/registry"
)

// UnionValue is the decoded shape of a Union column's value: the branch
// that was actually present, and its shaped value. The null branch is
// represented by Tag == column.NullTag with Value == nil.
type UnionValue struct {
	Tag   string
	Value any
}

// Decoder dispatches a schema-bearing payload's body to the family decoder
// matching its ParsedSchema, caching the compiled wire codec per schema id
// (including the negative ids the resolver mints for inline schemas).
type Decoder struct {
	mu         sync.Mutex
	avroCodecs map[int]*goavro.Codec
}

// NewDecoder builds an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{avroCodecs: make(map[int]*goavro.Codec)}
}

// Decode decodes body according to parsed's family into a generic value
// tree: map[string]any for a record/struct, []any for a list, map[string]any
// for a string-keyed map, and a Go scalar for every leaf. A Protobuf oneof
// becomes a UnionValue; an Avro union keeps goavro's native form (nil for
// the null branch, otherwise a single-key map naming the branch). The row
// shaper walks this tree in lockstep with the column definition.
func (d *Decoder) Decode(parsed *registry.ParsedSchema, body []byte) (any, error) {
	switch parsed.Family {
	case registry.FamilyRecord:
		return d.decodeAvro(parsed, body)
	case registry.FamilyJSON:
		return d.decodeJSON(body)
	case registry.FamilyDescriptor:
		return d.decodeProtobuf(parsed, body)
	default:
		return nil, kawaierr.New(kawaierr.KindDecode, "unrecognized schema family", nil)
	}
}

func (d *Decoder) decodeAvro(parsed *registry.ParsedSchema, body []byte) (any, error) {
	codec, err := d.avroCodecFor(parsed)
	if err != nil {
		return nil, err
	}
	native, _, err := codec.NativeFromBinary(body)
	if err != nil {
		return nil, kawaierr.New(kawaierr.KindDecode, "failed to decode Avro payload", err)
	}
	return native, nil
}

func (d *Decoder) avroCodecFor(parsed *registry.ParsedSchema) (*goavro.Codec, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.avroCodecs[parsed.ID]; ok {
		return c, nil
	}
	c, err := goavro.NewCodec(parsed.Text)
	if err != nil {
		return nil, kawaierr.New(kawaierr.KindDecode, "failed to build Avro codec", err)
	}
	d.avroCodecs[parsed.ID] = c
	return c, nil
}

func (d *Decoder) decodeJSON(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, kawaierr.New(kawaierr.KindDecode, "failed to decode JSON payload", err)
	}
	return v, nil
}

func (d *Decoder) decodeProtobuf(parsed *registry.ParsedSchema, body []byte) (any, error) {
	md, ok := parsed.AST.(*desc.MessageDescriptor)
	if !ok {
		return nil, kawaierr.New(kawaierr.KindDecode, "Protobuf decode requires a message descriptor", nil)
	}
	msg := dynamic.NewMessage(md)
	if err := msg.Unmarshal(body); err != nil {
		return nil, kawaierr.New(kawaierr.KindDecode, "failed to decode Protobuf payload", err)
	}
	return dynamicMessageToValue(msg), nil
}

// dynamicMessageToValue walks a decoded dynamic.Message into the same
// generic value-tree shape the Avro/JSON decoders produce, so the row
// shaper doesn't need family-specific cases.
func dynamicMessageToValue(msg *dynamic.Message) map[string]any {
	out := make(map[string]any)
	md := msg.GetMessageDescriptor()
	handledOneofs := make(map[string]bool)
	for _, fd := range md.GetFields() {
		if oo := fd.GetOneOf(); oo != nil && !oo.IsSynthetic() {
			if handledOneofs[oo.GetName()] {
				continue
			}
			handledOneofs[oo.GetName()] = true
			out[oo.GetName()] = dynamicOneofToValue(msg, oo)
			continue
		}
		out[fd.GetName()] = dynamicFieldToValue(msg, fd)
	}
	return out
}

func dynamicOneofToValue(msg *dynamic.Message, oo *desc.OneOfDescriptor) UnionValue {
	for _, fd := range oo.GetChoices() {
		if msg.HasField(fd) {
			return UnionValue{Tag: fd.GetName(), Value: dynamicFieldToValue(msg, fd)}
		}
	}
	return UnionValue{Tag: "null", Value: nil}
}

func dynamicFieldToValue(msg *dynamic.Message, fd *desc.FieldDescriptor) any {
	v := msg.GetField(fd)
	if nested, ok := v.(*dynamic.Message); ok {
		return dynamicMessageToValue(nested)
	}
	if fd.IsRepeated() && !fd.IsMap() {
		items, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(items))
		for i, item := range items {
			if nested, ok := item.(*dynamic.Message); ok {
				out[i] = dynamicMessageToValue(nested)
			} else {
				out[i] = item
			}
		}
		return out
	}
	return v
}
