package translate

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/registry"
)

const protoRootFilename = "kawai_inline.proto"

type protobufFamily struct{}

// Parse implements FamilyParser for the descriptor-oriented family: it
// compiles the .proto source (plus any referenced .proto files) with
// jhump/protoreflect and returns the first message type of the root file as
// a *desc.MessageDescriptor, the descriptor this family's translator walks.
func (p *protobufFamily) Parse(text string, refs []registry.ResolvedRef) (any, error) {
	files := map[string]string{protoRootFilename: text}
	for _, ref := range refs {
		files[ref.Subject+".proto"] = ref.Raw.Text
	}
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(files),
	}
	fds, err := parser.ParseFiles(protoRootFilename)
	if err != nil {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "invalid Protobuf descriptor source", err)
	}
	if len(fds) == 0 || len(fds[0].GetMessageTypes()) == 0 {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "Protobuf schema declares no message types", nil)
	}
	return fds[0].GetMessageTypes()[0], nil
}

// ToColumn implements Translator for the descriptor-oriented family.
func (p *protobufFamily) ToColumn(ast any, ctx *Context) (*column.Column, error) {
	md, ok := ast.(*desc.MessageDescriptor)
	if !ok {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "Protobuf translator received a non-descriptor AST", nil)
	}
	return messageToColumn(md, ctx)
}

func messageToColumn(md *desc.MessageDescriptor, ctx *Context) (*column.Column, error) {
	if err := ctx.Enter(md.GetFullyQualifiedName()); err != nil {
		return nil, err
	}
	defer ctx.Leave(md.GetFullyQualifiedName())

	fields := make([]column.Field, 0, len(md.GetFields()))
	handledOneofs := make(map[string]bool)

	for _, fd := range md.GetFields() {
		if oo := fd.GetOneOf(); oo != nil && !oo.IsSynthetic() {
			if handledOneofs[oo.GetName()] {
				continue
			}
			handledOneofs[oo.GetName()] = true
			uc, err := oneofToColumn(oo, ctx)
			if err != nil {
				return nil, err
			}
			fields = append(fields, column.Field{Name: oo.GetName(), Column: uc})
			continue
		}
		fc, err := fieldToColumn(fd, ctx)
		if err != nil {
			return nil, err
		}
		fields = append(fields, column.Field{Name: fd.GetName(), Column: fc})
	}
	return column.NewStruct(fields)
}

func oneofToColumn(oo *desc.OneOfDescriptor, ctx *Context) (*column.Column, error) {
	branches := make([]column.Branch, 0, len(oo.GetChoices()))
	for _, fd := range oo.GetChoices() {
		fc, err := fieldToColumn(fd, ctx)
		if err != nil {
			return nil, err
		}
		branches = append(branches, column.Branch{Tag: fd.GetName(), Column: fc})
	}
	return column.NewUnion(branches)
}

func fieldToColumn(fd *desc.FieldDescriptor, ctx *Context) (*column.Column, error) {
	if fd.IsMap() {
		valueCol, err := fieldToColumn(fd.GetMapValueType(), ctx)
		if err != nil {
			return nil, err
		}
		return column.NewMap(column.NewPrim(column.Utf8), valueCol)
	}

	base, err := scalarFieldToColumn(fd, ctx)
	if err != nil {
		return nil, err
	}
	if fd.IsRepeated() {
		return column.NewList(base), nil
	}
	return base, nil
}

func scalarFieldToColumn(fd *desc.FieldDescriptor, ctx *Context) (*column.Column, error) {
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return column.NewPrim(column.Bool), nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_SINT32, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return column.NewPrim(column.I32), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32, descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return column.NewPrim(column.U32), nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT64, descriptorpb.FieldDescriptorProto_TYPE_SINT64, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return column.NewPrim(column.I64), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64, descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return column.NewPrim(column.U64), nil
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return column.NewPrim(column.F32), nil
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return column.NewPrim(column.F64), nil
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return column.NewPrim(column.Utf8), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return column.NewPrim(column.Bytes), nil
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		ed := fd.GetEnumType()
		symbols := make([]string, 0, len(ed.GetValues()))
		for _, v := range ed.GetValues() {
			symbols = append(symbols, v.GetName())
		}
		return column.NewEnum(ed.GetName(), symbols)
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return messageToColumn(fd.GetMessageType(), ctx)
	default:
		return nil, kawaierr.New(kawaierr.KindBadSchema, fmt.Sprintf("unsupported Protobuf field type %v on %q", fd.GetType(), fd.GetFullyQualifiedName()), nil)
	}
}
