package tree

import (
	"regexp"
	"strconv"

	"google.golang.org/protobuf/types/descriptorpb"
)

// scalarTypes maps descriptor type codes to scalar type names. Group, message and enum
// codes are absent: those fields must carry a type name.
var scalarTypes = map[descriptorpb.FieldDescriptorProto_Type]string{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   "double",
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    "float",
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    "int64",
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   "uint64",
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    "int32",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  "fixed64",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  "fixed32",
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     "bool",
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   "string",
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    "bytes",
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   "uint32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: "sfixed32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: "sfixed64",
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   "sint32",
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   "sint64",
}

// packableTypes lists the wire types eligible for packed encoding. TYPE_ENUM is included:
// repeated enum fields pack like varints.
var packableTypes = map[descriptorpb.FieldDescriptorProto_Type]bool{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   true,
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    true,
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    true,
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   true,
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    true,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  true,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  true,
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     true,
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   true,
	descriptorpb.FieldDescriptorProto_TYPE_ENUM:     true,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: true,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: true,
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   true,
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   true,
}

// IsScalarTypeName reports whether name is one of the scalar type names a Field may carry.
func IsScalarTypeName(name string) bool {
	for _, s := range scalarTypes {
		if s == name {
			return true
		}
	}
	return false
}

// numberPattern matches unsigned decimal literals with optional fraction and exponent.
// A leading exponent marker is rejected separately since RE2 has no lookahead.
var numberPattern = regexp.MustCompile(`^[0-9]*(?:\.[0-9]*)?(?:[eE][+-]?[0-9]+)?$`)

// CoerceDefault converts a textual default value.
//
// "true"/"TRUE" and "false"/"FALSE" become booleans. Numeric literals become the int64 formed
// by their leading integer digits ("1.5" -> 1, "2e3" -> 2). Everything else, including
// signed literals, is returned unchanged.
func CoerceDefault(s string) any {
	switch s {
	case "true", "TRUE":
		return true
	case "false", "FALSE":
		return false
	}
	if s == "" || s[0] == 'e' || s[0] == 'E' || !numberPattern.MatchString(s) {
		return s
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return s
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return s
	}
	return n
}

// packedByDefault reports whether packable repeated fields of a file are packed unless
// their options say otherwise.
func packedByDefault(fd *descriptorpb.FileDescriptorProto) bool {
	switch fd.GetSyntax() {
	case "proto3":
		return true
	case "editions":
		return packedFeature(fd.GetOptions().GetFeatures(), true)
	default:
		return false
	}
}

// packedFeature applies an editions repeated_field_encoding feature, if set, to def.
func packedFeature(features *descriptorpb.FeatureSet, def bool) bool {
	switch features.GetRepeatedFieldEncoding() {
	case descriptorpb.FeatureSet_PACKED:
		return true
	case descriptorpb.FeatureSet_EXPANDED:
		return false
	default:
		return def
	}
}
