package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxBodySize bounds descriptor sets fetched over HTTP.
const maxBodySize = 64 << 20

// ErrEmptySource is returned for a blank source string.
var ErrEmptySource = errors.New("empty source")

// Source produces the bytes of a serialized FileDescriptorSet.
type Source interface {
	// Fetch obtains the serialized descriptor set.
	Fetch(ctx context.Context) ([]byte, error)
	// String returns the source as given by the user.
	String() string
}

// HTTPSource downloads a serialized descriptor set.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch issues a GET request. Any status outside 2xx is an error.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream, application/x-protobuf")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodySize)
	}
	return data, nil
}

func (s *HTTPSource) String() string { return s.URL }

// FileSource reads a serialized descriptor set from disk, as written by
// protoc --descriptor_set_out or buf build -o.
type FileSource struct {
	Path string
}

// Fetch reads the file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}

func (s *FileSource) String() string { return s.Path }

// SourceForms lists the source strings Source understands, most specific first.
var SourceForms = []string{
	"connect+http(s)://host:port  Connect/gRPC server reflection over HTTP/2",
	"grpc://host:port             gRPC server reflection",
	"http(s)://...                serialized FileDescriptorSet",
	"path/to/file.proto           compiled with its imports",
	"path or file://path          serialized FileDescriptorSet on disk",
}

// Source resolves a source string into a Source:
//
//	http://..., https://...            HTTPSource
//	grpc://host:port                   GRPCSource
//	connect+http://..., connect+https://...  ConnectSource
//	*.proto                            ProtoSource
//	file://path or any other path      FileSource
func (l *Loader) Source(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil, ErrEmptySource
	case strings.HasPrefix(raw, "connect+http://"), strings.HasPrefix(raw, "connect+https://"):
		return &ConnectSource{BaseURL: strings.TrimPrefix(raw, "connect+")}, nil
	case strings.HasPrefix(raw, "grpc://"):
		target := strings.TrimSuffix(strings.TrimPrefix(raw, "grpc://"), "/")
		if target == "" {
			return nil, fmt.Errorf("missing address in %q", raw)
		}
		return &GRPCSource{Target: target, DialOptions: l.cfg.DialOptions}, nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return &HTTPSource{URL: raw, Client: l.cfg.HTTPClient}, nil
	}

	path := strings.TrimPrefix(raw, "file://")
	if strings.HasSuffix(path, ".proto") {
		return &ProtoSource{Path: path, ImportPaths: l.cfg.ImportPaths}, nil
	}
	return &FileSource{Path: path}, nil
}
