//go:build !tablepb_bootstrap

package main

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/tablepb/tablepb"
)

// descriptorSetType is compiled once, from the generator's own compiled-in
// copy of the descriptor.proto schema, the same way any self-hosted parser
// bootstraps off a fixed copy of its own grammar.
var descriptorSetType = mustCompileDescriptorSetType()

func mustCompileDescriptorSetType() *tablepb.Type {
	ty, err := tablepb.CompileFor[*descriptorpb.FileDescriptorSet]()
	if err != nil {
		panic(err)
	}
	return ty
}

// parseDescriptorSet decodes raw through the tablepb runtime itself rather
// than through google.golang.org/protobuf's unmarshaler: the generator for
// a table-driven protobuf codec ought to read its own input with that
// codec. The one exit from this self-hosted path is unavoidable:
// protodesc.NewFile needs concrete descriptorpb structs to resolve cross-file
// imports, so each decoded FileDescriptorProto is re-marshaled through
// [tablepb.Message.Marshal] and handed to proto.Unmarshal for that last hop.
func parseDescriptorSet(raw []byte) (protoreflect.FileDescriptor, error) {
	a := tablepb.NewArena(nil, 0)
	msg, err := descriptorSetType.Unmarshal(a, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding FileDescriptorSet with the tablepb runtime: %w", err)
	}

	filesField, ok := msg.Get(1) // FileDescriptorSet.file
	if !ok {
		return nil, fmt.Errorf("descriptor set has no files")
	}
	children, ok := filesField.([]*tablepb.Message)
	if !ok {
		return nil, fmt.Errorf("descriptor set field 1 has unexpected shape %T", filesField)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("descriptor set has no files")
	}

	fds := &descriptorpb.FileDescriptorSet{File: make([]*descriptorpb.FileDescriptorProto, len(children))}
	for i, child := range children {
		fdp := new(descriptorpb.FileDescriptorProto)
		if err := proto.Unmarshal(child.Marshal(), fdp); err != nil {
			return nil, fmt.Errorf("re-marshaling file %d for import resolution: %w", i, err)
		}
		fds.File[i] = fdp
	}

	files, err := protodesc.NewFiles(fds)
	if err != nil {
		return nil, fmt.Errorf("resolving file imports: %w", err)
	}

	// protoc convention (and this generator's, per spec §6): the target
	// file to generate for is the last entry, the rest being its transitive
	// dependencies pulled in so imports resolve.
	target := fds.File[len(fds.File)-1].GetName()
	return files.FindFileByPath(target)
}
