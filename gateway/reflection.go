package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/grpcreflect"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const wellKnownPrefix = "google/protobuf/"

// descriptorResolver looks names up in the served files, then falls back to the global
// registry so well-known imports missing from the set still resolve.
type descriptorResolver struct {
	files *protoregistry.Files
}

func (d *descriptorResolver) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	if fd, err := d.files.FindFileByPath(path); err == nil {
		return fd, nil
	}
	if strings.HasPrefix(path, wellKnownPrefix) {
		return protoregistry.GlobalFiles.FindFileByPath(path)
	}
	return nil, protoregistry.NotFound
}

func (d *descriptorResolver) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	if desc, err := d.files.FindDescriptorByName(name); err == nil {
		return desc, nil
	}
	if desc, err := protoregistry.GlobalFiles.FindDescriptorByName(name); err == nil &&
		strings.HasPrefix(desc.ParentFile().Path(), wellKnownPrefix) {
		return desc, nil
	}
	return nil, protoregistry.NotFound
}

// newRegistry links every file of set. Files may appear in any order; a file is linked once
// all its imports are.
func newRegistry(set *descriptorpb.FileDescriptorSet) (*protoregistry.Files, error) {
	files := &protoregistry.Files{}
	resolver := &descriptorResolver{files: files}

	pending := set.GetFile()
	for len(pending) > 0 {
		var (
			next    []*descriptorpb.FileDescriptorProto
			lastErr error
		)
		for _, fdp := range pending {
			fd, err := protodesc.NewFile(fdp, resolver)
			if err != nil {
				next = append(next, fdp)
				lastErr = fmt.Errorf("file %s: %w", fdp.GetName(), err)
				continue
			}
			if err := files.RegisterFile(fd); err != nil {
				return nil, fmt.Errorf("failed to register file %s: %w", fd.Path(), err)
			}
		}
		if len(next) == len(pending) {
			return nil, lastErr
		}
		pending = next
	}
	return files, nil
}

// reflectionHandlers returns the v1 and v1alpha reflection handlers keyed by path.
func (g *Gateway) reflectionHandlers() map[string]http.Handler {
	namer := grpcreflect.NamerFunc(func() []string {
		return g.services
	})
	reflector := grpcreflect.NewReflector(namer,
		grpcreflect.WithDescriptorResolver(&descriptorResolver{files: g.files}))

	handlers := make(map[string]http.Handler)
	v1Path, v1Handler := grpcreflect.NewHandlerV1(reflector)
	handlers[v1Path] = v1Handler
	v1alphaPath, v1alphaHandler := grpcreflect.NewHandlerV1Alpha(reflector)
	handlers[v1alphaPath] = v1alphaHandler

	return handlers
}
