package loader

import (
	"context"
	"path/filepath"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ProtoSource compiles a .proto file and everything it imports. Comments are kept.
//
// The file's own directory is searched first, then ImportPaths. Standard google/protobuf
// imports are always available.
type ProtoSource struct {
	Path        string
	ImportPaths []string
}

// Fetch compiles the file and serializes the result, imports first.
func (s *ProtoSource) Fetch(ctx context.Context) ([]byte, error) {
	set, err := s.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(set)
}

// Compile compiles the file into a descriptor set.
func (s *ProtoSource) Compile(ctx context.Context) (*descriptorpb.FileDescriptorSet, error) {
	importPaths := append([]string{filepath.Dir(s.Path)}, s.ImportPaths...)
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: importPaths,
		}),
		SourceInfoMode: protocompile.SourceInfoStandard,
	}

	files, err := compiler.Compile(ctx, filepath.Base(s.Path))
	if err != nil {
		return nil, err
	}

	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	for _, f := range files {
		appendWithImports(set, seen, f)
	}
	return set, nil
}

func (s *ProtoSource) String() string { return s.Path }

// appendWithImports adds fd to set after its transitive imports.
func appendWithImports(set *descriptorpb.FileDescriptorSet, seen map[string]bool, fd protoreflect.FileDescriptor) {
	if seen[fd.Path()] {
		return
	}
	seen[fd.Path()] = true

	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		appendWithImports(set, seen, imports.Get(i).FileDescriptor)
	}
	set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
}
