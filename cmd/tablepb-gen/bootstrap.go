//go:build tablepb_bootstrap

package main

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// parseDescriptorSet is the frozen fallback selected by the
// tablepb_bootstrap build tag: a plain proto.Unmarshal, used the first time
// tablepb-gen itself is built before a working tablepb runtime exists to
// self-host with (or while debugging a suspected bug in that self-hosted
// path, by diffing its output against this one).
func parseDescriptorSet(raw []byte) (protoreflect.FileDescriptor, error) {
	fds := new(descriptorpb.FileDescriptorSet)
	if err := proto.Unmarshal(raw, fds); err != nil {
		return nil, fmt.Errorf("decoding FileDescriptorSet: %w", err)
	}
	if len(fds.File) == 0 {
		return nil, fmt.Errorf("descriptor set has no files")
	}

	files, err := protodesc.NewFiles(fds)
	if err != nil {
		return nil, fmt.Errorf("resolving file imports: %w", err)
	}

	target := fds.File[len(fds.File)-1].GetName()
	return files.FindFileByPath(target)
}
