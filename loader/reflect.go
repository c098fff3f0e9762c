package loader

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	connectreflect "connectrpc.com/grpcreflect"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/grpcreflect"
	"golang.org/x/net/http2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// reflectionPrefix names the reflection services themselves, which are left out of the set.
const reflectionPrefix = "grpc.reflection."

// GRPCSource pulls descriptors from a gRPC server through server reflection.
type GRPCSource struct {
	// Target is host:port.
	Target string
	// DialOptions replace the default insecure transport credentials when set.
	DialOptions []grpc.DialOption
}

// Fetch lists the server's services and collects the files defining them along with their
// dependencies.
func (s *GRPCSource) Fetch(ctx context.Context) ([]byte, error) {
	opts := s.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient("passthrough:///"+s.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client := grpcreflect.NewClientAuto(ctx, conn)
	defer client.Reset()

	services, err := client.ListServices()
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	for _, service := range services {
		if strings.HasPrefix(service, reflectionPrefix) {
			continue
		}
		fd, err := client.FileContainingSymbol(service)
		if err != nil {
			return nil, fmt.Errorf("failed to get descriptor for %s: %w", service, err)
		}
		appendDescWithDeps(set, seen, fd)
	}
	if len(set.File) == 0 {
		return nil, fmt.Errorf("no services found at %s", s.Target)
	}

	return proto.Marshal(set)
}

func (s *GRPCSource) String() string { return "grpc://" + s.Target }

func appendDescWithDeps(set *descriptorpb.FileDescriptorSet, seen map[string]bool, fd *desc.FileDescriptor) {
	if seen[fd.GetName()] {
		return
	}
	seen[fd.GetName()] = true

	for _, dep := range fd.GetDependencies() {
		appendDescWithDeps(set, seen, dep)
	}
	set.File = append(set.File, fd.AsFileDescriptorProto())
}

// ConnectSource pulls descriptors through gRPC server reflection served by a Connect
// handler, or any server speaking gRPC over HTTP/2.
type ConnectSource struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// Client overrides the HTTP/2 client derived from the URL scheme.
	Client *http.Client
}

// Fetch opens a reflection stream and collects every service's file and dependencies.
func (s *ConnectSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = newHTTP2Client(strings.HasPrefix(s.BaseURL, "http://"))
	}

	reflectClient := connectreflect.NewClient(client, strings.TrimSuffix(s.BaseURL, "/"), connect.WithGRPC())
	stream := reflectClient.NewStream(ctx)
	defer stream.Close()

	services, err := stream.ListServices()
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	for _, service := range services {
		if strings.HasPrefix(string(service), reflectionPrefix) {
			continue
		}
		files, err := stream.FileContainingSymbol(service)
		if err != nil {
			return nil, fmt.Errorf("failed to get descriptor for %s: %w", service, err)
		}
		appendInDependencyOrder(set, seen, files)
	}
	if len(set.File) == 0 {
		return nil, fmt.Errorf("no services found at %s", s.BaseURL)
	}

	return proto.Marshal(set)
}

func (s *ConnectSource) String() string { return "connect+" + s.BaseURL }

// appendInDependencyOrder adds files not yet in set, each after those of its dependencies
// that are part of the batch.
func appendInDependencyOrder(set *descriptorpb.FileDescriptorSet, seen map[string]bool, files []*descriptorpb.FileDescriptorProto) {
	byName := make(map[string]*descriptorpb.FileDescriptorProto, len(files))
	for _, f := range files {
		byName[f.GetName()] = f
	}

	var visit func(f *descriptorpb.FileDescriptorProto)
	visit = func(f *descriptorpb.FileDescriptorProto) {
		if seen[f.GetName()] {
			return
		}
		seen[f.GetName()] = true
		for _, dep := range f.GetDependency() {
			if d, ok := byName[dep]; ok {
				visit(d)
			}
		}
		set.File = append(set.File, f)
	}
	for _, f := range files {
		visit(f)
	}
}

// newHTTP2Client returns a client speaking HTTP/2 only. With cleartext set it uses h2c
// with prior knowledge.
func newHTTP2Client(cleartext bool) *http.Client {
	transport := &http2.Transport{}
	if cleartext {
		transport.AllowHTTP = true
		transport.DialTLSContext = func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		}
	}
	return &http.Client{Transport: transport}
}
