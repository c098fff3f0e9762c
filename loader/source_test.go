package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderSource(t *testing.T) {
	l := newLoader(t, Config{ImportPaths: []string{"protos"}})

	tests := []struct {
		raw  string
		want Source
	}{
		{raw: "https://example.com/set.pb", want: &HTTPSource{URL: "https://example.com/set.pb"}},
		{raw: "http://localhost:8080/set.pb", want: &HTTPSource{URL: "http://localhost:8080/set.pb"}},
		{raw: "grpc://localhost:9090", want: &GRPCSource{Target: "localhost:9090"}},
		{raw: "grpc://localhost:9090/", want: &GRPCSource{Target: "localhost:9090"}},
		{raw: "connect+http://localhost:8080", want: &ConnectSource{BaseURL: "http://localhost:8080"}},
		{raw: "connect+https://api.example.com", want: &ConnectSource{BaseURL: "https://api.example.com"}},
		{raw: "api/service.proto", want: &ProtoSource{Path: "api/service.proto", ImportPaths: []string{"protos"}}},
		{raw: "file://api/service.proto", want: &ProtoSource{Path: "api/service.proto", ImportPaths: []string{"protos"}}},
		{raw: "file:///tmp/set.pb", want: &FileSource{Path: "/tmp/set.pb"}},
		{raw: "  set.binpb ", want: &FileSource{Path: "set.binpb"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := l.Source(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoaderSourceErrors(t *testing.T) {
	l := newLoader(t, Config{})

	_, err := l.Source("   ")
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = l.Source("grpc://")
	assert.Error(t, err)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "grpc://localhost:1", (&GRPCSource{Target: "localhost:1"}).String())
	assert.Equal(t, "connect+http://h:1", (&ConnectSource{BaseURL: "http://h:1"}).String())
	assert.Equal(t, "a.proto", (&ProtoSource{Path: "a.proto"}).String())
	assert.Equal(t, "a.pb", (&FileSource{Path: "a.pb"}).String())
	assert.Equal(t, "http://h/a.pb", (&HTTPSource{URL: "http://h/a.pb"}).String())
}

func TestHTTPSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set.pb":
			_, _ = w.Write([]byte("payload"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data, err := (&HTTPSource{URL: srv.URL + "/set.pb"}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = (&HTTPSource{URL: srv.URL + "/missing.pb", Client: srv.Client()}).Fetch(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestFileSourceFetch(t *testing.T) {
	path := writeFile(t, t.TempDir(), "set.pb", []byte{1, 2, 3})

	data, err := (&FileSource{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&FileSource{Path: path}).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProtoSourceCompile(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	writeFile(t, shared, "common/money.proto", []byte(`syntax = "proto3";
package common;
message Money {
  string currency = 1;
  int64 units = 2;
}
`))
	path := writeFile(t, root, "billing.proto", []byte(`syntax = "proto3";
package billing;
import "common/money.proto";
// An invoice.
message Invoice {
  common.Money total = 1;
}
`))

	set, err := (&ProtoSource{Path: path, ImportPaths: []string{shared}}).Compile(context.Background())
	require.NoError(t, err)

	var names []string
	for _, f := range set.GetFile() {
		names = append(names, f.GetName())
	}
	assert.Equal(t, []string{"common/money.proto", "billing.proto"}, names)
	assert.NotNil(t, set.GetFile()[1].GetSourceCodeInfo())
}

func TestProtoSourceCompileError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.proto", []byte(`syntax = "proto3"; message {`))

	_, err := (&ProtoSource{Path: path}).Fetch(context.Background())
	assert.Error(t, err)
}
