package tree

import (
	"context"
	"sort"
	"testing"

	"github.com/bufbuild/protocompile"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

const shopProto = `syntax = "proto3";

package shop.v1;

import "google/protobuf/timestamp.proto";

option go_package = "example.com/shop/v1;shopv1";
option optimize_for = SPEED;

// An order placed by a customer.
message Order {
  // Unique order identifier.
  string id = 1;
  repeated int32 quantities = 2;
  Status status = 3; // Current status.
  google.protobuf.Timestamp created_at = 4;
  oneof payment {
    // Paid by card.
    Card card = 5;
    string voucher = 6;
  }

  // A payment card.
  message Card {
    string number = 1;
  }

  reserved 10 to 12;
  reserved "legacy";
}

message GetOrderRequest {
  string id = 1;
}

// Order lifecycle.
enum Status {
  // Not yet known.
  STATUS_UNSPECIFIED = 0;
  STATUS_OPEN = 1;
  STATUS_CLOSED = 2; // Finished.
}

// Manages orders.
service OrderService {
  // Fetches one order.
  rpc GetOrder(GetOrderRequest) returns (Order);
  rpc WatchOrders(GetOrderRequest) returns (stream Order);
}
`

// compileSet compiles in-memory .proto sources, keeping source info, into a descriptor set.
func compileSet(t *testing.T, files map[string]string) *descriptorpb.FileDescriptorSet {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(files),
		}),
		SourceInfoMode: protocompile.SourceInfoStandard,
	}
	result, err := compiler.Compile(context.Background(), names...)
	require.NoError(t, err)

	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range result {
		set.File = append(set.File, protodesc.ToFileDescriptorProto(f))
	}
	return set
}

func buildShop(t *testing.T) *Schema {
	t.Helper()
	s, err := Build(compileSet(t, map[string]string{"shop.proto": shopProto}))
	require.NoError(t, err)
	return s
}

// singleMessageSet wraps one message into a one-file descriptor set.
func singleMessageSet(syntax string, msg *descriptorpb.DescriptorProto) *descriptorpb.FileDescriptorSet {
	file := &descriptorpb.FileDescriptorProto{
		Name:        proto.String("test.proto"),
		Package:     proto.String("pkg"),
		MessageType: []*descriptorpb.DescriptorProto{msg},
	}
	if syntax != "" {
		file.Syntax = proto.String(syntax)
	}
	return &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{file}}
}

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, label descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Type:   typ.Enum(),
		Label:  label.Enum(),
	}
}
