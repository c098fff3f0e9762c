package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bufbuild/protocompile"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

const inventoryProto = `syntax = "proto3";

package inventory.v1;

import "google/protobuf/timestamp.proto";

// A stocked item.
message Item {
  string sku = 1;
  int32 count = 2;
  google.protobuf.Timestamp updated_at = 3;
}

service InventoryService {
  rpc GetItem(Item) returns (Item);
}
`

// compileBytes compiles inventoryProto alone, without its imports, and serializes it.
func compileBytes(t *testing.T) []byte {
	t.Helper()

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{"inventory.proto": inventoryProto}),
		}),
		SourceInfoMode: protocompile.SourceInfoStandard,
	}
	files, err := compiler.Compile(context.Background(), "inventory.proto")
	require.NoError(t, err)

	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{protodesc.ToFileDescriptorProto(files[0])},
	}
	data, err := proto.Marshal(set)
	require.NoError(t, err)
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newLoader(t *testing.T, cfg Config) *Loader {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	return l
}
