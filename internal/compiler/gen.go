package compiler

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/tools/imports"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Generate renders a Go source file binding named, typed accessors to the
// compiled decoding/encoding tables for every message declared in fd (spec
// §4.7: "a source module containing one record definition, one
// decoding-table constant, and one encoding-table constant per message
// type").
//
// Table constants from internal/table cannot be referenced from generated
// code: it lives outside this module, and Go's internal-package rule makes
// internal/table invisible to it. Generate works around this the way any
// Go codec generator must when it wants its output to be a plain,
// dependency-light importable package: it embeds the message's own
// descriptor bytes and emits a package-level var that calls the public
// [tablepb.MustCompileFromBytes] once, at init time, to build the real
// table pair. The generated struct is a thin, named wrapper over
// [tablepb.Message] — the "record definition" — whose accessor methods are
// direct calls into the dynamic field API. This keeps the single,
// non-type-specialized codec exactly as described in spec §9
// ("polymorphism without per-type code bloat"): generated code adds names,
// not a second code path.
func Generate(fd protoreflect.FileDescriptor, goPackage string, cfg *GenConfig) ([]byte, error) {
	if cfg == nil {
		cfg = new(GenConfig)
	}
	pkgName := resolveGoPackage(fd, goPackage, cfg)

	rawDesc, err := proto.Marshal(protodesc.ToFileDescriptorProto(fd))
	if err != nil {
		return nil, fmt.Errorf("tablepb-gen: marshaling descriptor for %s: %w", fd.Path(), err)
	}

	g := &generator{
		cfg:     cfg,
		buf:     new(bytes.Buffer),
		names:   make(map[protoreflect.FullName]string),
		fileVar: "file_" + sanitizeIdent(fd.Path()) + "_rawDesc",
	}

	var all []protoreflect.MessageDescriptor
	collectMessages(fd.Messages(), "", g, &all)

	fmt.Fprintf(g.buf, "// Code generated by tablepb-gen. DO NOT EDIT.\n")
	fmt.Fprintf(g.buf, "// source: %s\n\n", fd.Path())
	fmt.Fprintf(g.buf, "package %s\n\n", pkgName)
	fmt.Fprintf(g.buf, "import (\n\t\"github.com/tablepb/tablepb\"\n\t\"google.golang.org/protobuf/reflect/protoreflect\"\n)\n\n")

	g.writeRawDescriptor(rawDesc)

	for _, md := range all {
		g.writeMessage(md)
	}

	return imports.Process("generated.go", g.buf.Bytes(), nil)
}

type generator struct {
	cfg     *GenConfig
	buf     *bytes.Buffer
	names   map[protoreflect.FullName]string // message full name -> generated Go type name
	fileVar string
}

// collectMessages walks md in declaration order, flattening nested message
// types into Outer_Inner Go names (matching protoc-gen-go's own
// convention), and appends every message (including map-entry synthetic
// messages, which the dynamic Get/Set API already treats as ordinary
// repeated sub-messages per spec §9's map open question) to out.
func collectMessages(mds protoreflect.MessageDescriptors, prefix string, g *generator, out *[]protoreflect.MessageDescriptor) {
	for i := 0; i < mds.Len(); i++ {
		md := mds.Get(i)
		name := prefix + g.cfg.rename(goExportedName(string(md.Name())))
		name = keywordSafe(name)
		g.names[md.FullName()] = name
		*out = append(*out, md)
		collectMessages(md.Messages(), name+"_", g, out)
	}
}

func (g *generator) writeRawDescriptor(raw []byte) {
	fmt.Fprintf(g.buf, "var %s = []byte{\n", g.fileVar)
	for i := 0; i < len(raw); i += 12 {
		end := i + 12
		if end > len(raw) {
			end = len(raw)
		}
		g.buf.WriteString("\t")
		for _, b := range raw[i:end] {
			fmt.Fprintf(g.buf, "0x%02x, ", b)
		}
		g.buf.WriteString("\n")
	}
	fmt.Fprintf(g.buf, "}\n\n")
}

func (g *generator) writeMessage(md protoreflect.MessageDescriptor) {
	goName := g.names[md.FullName()]
	typeVar := unexported(goName) + "Type"

	fmt.Fprintf(g.buf, "var %s = tablepb.MustCompileFromBytes(%s, %q)\n\n", typeVar, g.fileVar, md.FullName())

	fmt.Fprintf(g.buf, "// %s is the generated record binding for %s.\n", goName, md.FullName())
	fmt.Fprintf(g.buf, "type %s struct {\n\tmsg *tablepb.Message\n}\n\n", goName)

	fmt.Fprintf(g.buf, "// New%s allocates a zeroed %s on a.\n", goName, goName)
	fmt.Fprintf(g.buf, "func New%s(a *tablepb.Arena) *%s {\n\treturn &%s{msg: %s.NewMessage(a)}\n}\n\n", goName, goName, goName, typeVar)

	fmt.Fprintf(g.buf, "// Message returns the dynamic handle backing m, for callers that need\n")
	fmt.Fprintf(g.buf, "// field access by number instead of by generated accessor.\n")
	fmt.Fprintf(g.buf, "func (m *%s) Message() *tablepb.Message { return m.msg }\n\n", goName)

	fmt.Fprintf(g.buf, "// Marshal serializes m to a flat byte slice.\n")
	fmt.Fprintf(g.buf, "func (m *%s) Marshal() []byte { return m.msg.Marshal() }\n\n", goName)

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.IsMap() {
			g.writeMapAccessors(goName, fd)
			continue
		}
		switch {
		case fd.Message() != nil && fd.Cardinality() == protoreflect.Repeated:
			g.writeRepeatedMessageAccessors(goName, fd)
		case fd.Message() != nil:
			g.writeSingularMessageAccessors(goName, fd)
		case fd.Cardinality() == protoreflect.Repeated:
			g.writeRepeatedScalarAccessors(goName, fd)
		default:
			g.writeSingularScalarAccessors(goName, fd)
		}
	}
}

func (g *generator) fieldGoName(fd protoreflect.FieldDescriptor) string {
	return keywordSafe(g.cfg.rename(goExportedName(string(fd.Name()))))
}

func (g *generator) writeSingularScalarAccessors(recv string, fd protoreflect.FieldDescriptor) {
	name := g.fieldGoName(fd)
	goType := scalarGoType(fd.Kind())
	n := int32(fd.Number())

	fmt.Fprintf(g.buf, "func (m *%s) Get%s() (%s, bool) {\n", recv, name, goType)
	fmt.Fprintf(g.buf, "\tv, ok := m.msg.Get(protoreflect.FieldNumber(%d))\n\tif !ok {\n\t\tvar zero %s\n\t\treturn zero, false\n\t}\n", n, goType)
	fmt.Fprintf(g.buf, "\treturn v.(%s), true\n}\n\n", goType)

	fmt.Fprintf(g.buf, "func (m *%s) Set%s(v %s) {\n", recv, name, goType)
	fmt.Fprintf(g.buf, "\tif err := m.msg.Set(protoreflect.FieldNumber(%d), v); err != nil {\n\t\tpanic(err)\n\t}\n}\n\n", n)
}

func (g *generator) writeRepeatedScalarAccessors(recv string, fd protoreflect.FieldDescriptor) {
	name := g.fieldGoName(fd)
	goType := scalarGoType(fd.Kind())
	n := int32(fd.Number())
	elemWire := fd.Kind() == protoreflect.StringKind || fd.Kind() == protoreflect.BytesKind

	fmt.Fprintf(g.buf, "func (m *%s) Get%s() []%s {\n", recv, name, goType)
	fmt.Fprintf(g.buf, "\tv, ok := m.msg.Get(protoreflect.FieldNumber(%d))\n\tif !ok {\n\t\treturn nil\n\t}\n", n)
	if elemWire {
		fmt.Fprintf(g.buf, "\treturn v.([]%s)\n}\n\n", goType)
	} else {
		fmt.Fprintf(g.buf, "\traw := v.([]any)\n\tout := make([]%s, len(raw))\n\tfor i, x := range raw {\n\t\tout[i] = x.(%s)\n\t}\n\treturn out\n}\n\n", goType, goType)
	}

	fmt.Fprintf(g.buf, "func (m *%s) Append%s(v %s) {\n", recv, name, goType)
	fmt.Fprintf(g.buf, "\tif err := m.msg.AppendScalar(protoreflect.FieldNumber(%d), v); err != nil {\n\t\tpanic(err)\n\t}\n}\n\n", n)
}

func (g *generator) writeSingularMessageAccessors(recv string, fd protoreflect.FieldDescriptor) {
	name := g.fieldGoName(fd)
	child := g.names[fd.Message().FullName()]
	n := int32(fd.Number())

	fmt.Fprintf(g.buf, "func (m *%s) Get%s() (*%s, bool) {\n", recv, name, child)
	fmt.Fprintf(g.buf, "\tv, ok := m.msg.Get(protoreflect.FieldNumber(%d))\n\tif !ok {\n\t\treturn nil, false\n\t}\n", n)
	fmt.Fprintf(g.buf, "\treturn &%s{msg: v.(*tablepb.Message)}, true\n}\n\n", child)

	fmt.Fprintf(g.buf, "func (m *%s) New%s() *%s {\n", recv, name, child)
	fmt.Fprintf(g.buf, "\tchild, err := m.msg.NewChild(protoreflect.FieldNumber(%d))\n\tif err != nil {\n\t\tpanic(err)\n\t}\n", n)
	fmt.Fprintf(g.buf, "\treturn &%s{msg: child}\n}\n\n", child)
}

func (g *generator) writeRepeatedMessageAccessors(recv string, fd protoreflect.FieldDescriptor) {
	name := g.fieldGoName(fd)
	child := g.names[fd.Message().FullName()]
	n := int32(fd.Number())

	fmt.Fprintf(g.buf, "func (m *%s) Get%s() []*%s {\n", recv, name, child)
	fmt.Fprintf(g.buf, "\tv, ok := m.msg.Get(protoreflect.FieldNumber(%d))\n\tif !ok {\n\t\treturn nil\n\t}\n", n)
	fmt.Fprintf(g.buf, "\tmsgs := v.([]*tablepb.Message)\n\tout := make([]*%s, len(msgs))\n\tfor i, c := range msgs {\n\t\tout[i] = &%s{msg: c}\n\t}\n\treturn out\n}\n\n", child, child)

	fmt.Fprintf(g.buf, "func (m *%s) Append%s() *%s {\n", recv, name, child)
	fmt.Fprintf(g.buf, "\tchild, err := m.msg.AppendChild(protoreflect.FieldNumber(%d))\n\tif err != nil {\n\t\tpanic(err)\n\t}\n", n)
	fmt.Fprintf(g.buf, "\treturn &%s{msg: child}\n}\n\n", child)
}

// writeMapAccessors treats a map field exactly as spec §9 says the runtime
// does: a repeated message of the synthetic (key, value) entry type, with
// no generated dedup/lookup (that is explicitly the caller's problem).
func (g *generator) writeMapAccessors(recv string, fd protoreflect.FieldDescriptor) {
	g.writeRepeatedMessageAccessors(recv, fd)
}

func scalarGoType(k protoreflect.Kind) string {
	switch k {
	case protoreflect.BoolKind:
		return "bool"
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind, protoreflect.EnumKind:
		return "int32"
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return "uint32"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return "int64"
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "uint64"
	case protoreflect.FloatKind:
		return "float32"
	case protoreflect.DoubleKind:
		return "float64"
	case protoreflect.StringKind:
		return "string"
	case protoreflect.BytesKind:
		return "[]byte"
	default:
		return "any"
	}
}

func resolveGoPackage(fd protoreflect.FileDescriptor, override string, cfg *GenConfig) string {
	if cfg.GoPackage != "" {
		return cfg.GoPackage
	}
	if override != "" {
		return override
	}
	if opts, ok := fd.Options().(*descriptorpb.FileOptions); ok && opts.GetGoPackage() != "" {
		goPkg := opts.GetGoPackage()
		if i := strings.LastIndexByte(goPkg, '/'); i >= 0 {
			goPkg = goPkg[i+1:]
		}
		if i := strings.IndexByte(goPkg, ';'); i >= 0 {
			goPkg = goPkg[i+1:]
		}
		return goPkg
	}
	pkg := string(fd.Package())
	if pkg == "" {
		return "generated"
	}
	if i := strings.LastIndexByte(pkg, '.'); i >= 0 {
		pkg = pkg[i+1:]
	}
	return pkg
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func unexported(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
