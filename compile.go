package tablepb

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/tablepb/tablepb/internal/compiler"
)

// Compile compiles a descriptor into a [Type].
//
// Returns a [SchemaViolation] [Error] if md or any message it transitively
// references exceeds the generator's envelope (spec §4.7).
func Compile(md protoreflect.MessageDescriptor, options ...CompileOption) (*Type, error) {
	lib, err := compiler.Compile(md)
	if err != nil {
		return nil, wrapError(err)
	}

	opts := defaultCompileOptions()
	for _, opt := range options {
		opt(&opts)
	}

	return &Type{lib: lib, compiled: lib.Root(md), opts: opts}, nil
}

// CompileFor is a helper for calling [Compile] using the descriptor of an
// existing generated message type. It does not work for dynamic types.
func CompileFor[T proto.Message](options ...CompileOption) (*Type, error) {
	var m T
	return Compile(m.ProtoReflect().Descriptor(), options...)
}

// CompileFromBytes unmarshals a serialized google.protobuf.FileDescriptorSet
// from schema, looks up a message by full name, and compiles a [Type] for
// it (spec §6, "descriptor-set input").
func CompileFromBytes(schema []byte, messageName protoreflect.FullName, options ...CompileOption) (*Type, error) {
	fds := new(descriptorpb.FileDescriptorSet)
	if err := proto.Unmarshal(schema, fds); err != nil {
		return nil, err
	}
	files, err := protodesc.NewFiles(fds)
	if err != nil {
		return nil, err
	}
	desc, err := files.FindDescriptorByName(messageName)
	if err != nil {
		return nil, err
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, &Error{Code: SchemaViolation, Reason: string(messageName) + " is not a message"}
	}
	return Compile(md, options...)
}

// MustCompileFromBytes is [CompileFromBytes], panicking on error. Generated
// code calls this once per message type, in a package-level var
// initializer, the same way protoc-gen-go output calls into its own
// file-init machinery: a schema error here is a build-time defect in the
// embedded descriptor, never a condition a running program should recover
// from.
func MustCompileFromBytes(schema []byte, messageName protoreflect.FullName, options ...CompileOption) *Type {
	ty, err := CompileFromBytes(schema, messageName, options...)
	if err != nil {
		panic(err)
	}
	return ty
}
