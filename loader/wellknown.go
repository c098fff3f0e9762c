package loader

import (
	"strings"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	// Registers the well-known type files with the global registry.
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/apipb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/sourcecontextpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/typepb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

const wellKnownPrefix = "google/protobuf/"

// completeWellKnown returns set with the google/protobuf files it imports but does not
// contain prepended, dependencies first. Imports missing from the registry are skipped.
func completeWellKnown(set *descriptorpb.FileDescriptorSet) *descriptorpb.FileDescriptorSet {
	present := make(map[string]bool, len(set.GetFile()))
	for _, f := range set.GetFile() {
		present[f.GetName()] = true
	}

	added := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	for _, f := range set.GetFile() {
		for _, dep := range f.GetDependency() {
			if !strings.HasPrefix(dep, wellKnownPrefix) || present[dep] {
				continue
			}
			fd, err := protoregistry.GlobalFiles.FindFileByPath(dep)
			if err != nil {
				continue
			}
			appendMissing(added, seen, present, fd)
		}
	}
	if len(added.File) == 0 {
		return set
	}

	return &descriptorpb.FileDescriptorSet{File: append(added.File, set.GetFile()...)}
}

func appendMissing(set *descriptorpb.FileDescriptorSet, seen, present map[string]bool, fd protoreflect.FileDescriptor) {
	if seen[fd.Path()] || present[fd.Path()] {
		return
	}
	seen[fd.Path()] = true

	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		appendMissing(set, seen, present, imports.Get(i).FileDescriptor)
	}
	set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
}
