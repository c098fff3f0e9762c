// Package gateway serves a loaded schema over HTTP: gRPC server reflection for tools such as
// grpcurl or buf curl, and the JSON tree under a read-only endpoint.
package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/i2y/prototree/tree"
)

// Gateway routes reflection and schema requests for one descriptor set.
type Gateway struct {
	handler  http.Handler
	schema   *tree.Schema
	files    *protoregistry.Files
	services []string
	options  Options
}

// Options configures the gateway.
type Options struct {
	// EnableReflection serves grpc.reflection.v1 and v1alpha.
	EnableReflection bool
	// SchemaPath is where the JSON tree is served. Defaults to /schema.
	SchemaPath string
	// Logger receives request errors. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// New builds the tree and the descriptor registry for set.
func New(set *descriptorpb.FileDescriptorSet, opts Options) (*Gateway, error) {
	if opts.SchemaPath == "" {
		opts.SchemaPath = "/schema"
	}
	opts.SchemaPath = "/" + strings.Trim(opts.SchemaPath, "/")

	s, err := tree.Build(set)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	files, err := newRegistry(set)
	if err != nil {
		return nil, fmt.Errorf("failed to register descriptors: %w", err)
	}

	gw := &Gateway{
		schema:  s,
		files:   files,
		options: opts,
	}
	for _, n := range s.All() {
		if n.Kind() == tree.KindService {
			gw.services = append(gw.services, strings.TrimPrefix(n.FullName(), "."))
		}
	}

	mux := http.NewServeMux()
	if opts.EnableReflection {
		for path, handler := range gw.reflectionHandlers() {
			mux.Handle(path, handler)
		}
	}
	mux.HandleFunc(opts.SchemaPath, gw.serveSchema)
	mux.HandleFunc(opts.SchemaPath+"/", gw.serveSchema)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	gw.handler = mux

	return gw, nil
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

// Schema returns the served tree.
func (g *Gateway) Schema() *tree.Schema { return g.schema }

// Services returns the fully-qualified names of the served services.
func (g *Gateway) Services() []string { return g.services }

// serveSchema answers GET <SchemaPath> with the whole tree and GET <SchemaPath>/<name>
// with a single declaration.
func (g *Gateway) serveSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		data []byte
		err  error
	)
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, g.options.SchemaPath), "/")
	if name == "" {
		data, err = g.schema.MarshalJSON()
	} else {
		n, ok := g.schema.Lookup("." + strings.TrimPrefix(name, "."))
		if !ok {
			http.Error(w, fmt.Sprintf("no declaration named %s", name), http.StatusNotFound)
			return
		}
		data, err = tree.MarshalNode(n)
	}
	if err != nil {
		g.logger().Error().Err(err).Str("path", r.URL.Path).Msg("failed to encode schema")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (g *Gateway) logger() *zerolog.Logger {
	if g.options.Logger != nil {
		return g.options.Logger
	}
	nop := zerolog.Nop()
	return &nop
}
