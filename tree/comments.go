package tree

import (
	"google.golang.org/protobuf/types/descriptorpb"
)

// Field numbers used in SourceCodeInfo paths (from descriptor.proto).
const (
	// FileDescriptorProto
	fileMessageTypeTag = 4
	fileEnumTypeTag    = 5
	fileServiceTag     = 6
	fileExtensionTag   = 7

	// DescriptorProto
	messageFieldTag      = 2
	messageNestedTypeTag = 3
	messageEnumTypeTag   = 4
	messageExtensionTag  = 6
	messageOneofDeclTag  = 8

	// EnumDescriptorProto
	enumValueTag = 2

	// ServiceDescriptorProto
	serviceMethodTag = 2
)

// pathStride is how much a path grows per nesting level: one slot for the repeated field's
// tag and one for the element index.
const pathStride = 2

// locations is a file's source locations, narrowed as the builder descends.
type locations []*descriptorpb.SourceCodeInfo_Location

// at keeps the locations whose path continues with (tag, index) at the given depth.
// The result describes the element and all of its descendants.
func (l locations) at(depth int, tag int32, index int) locations {
	var out locations
	for _, loc := range l {
		path := loc.GetPath()
		if len(path) > depth+1 && path[depth] == tag && path[depth+1] == int32(index) {
			out = append(out, loc)
		}
	}
	return out
}

// comment returns the comment of the element whose path is exactly depth long.
// Longer paths belong to descendants or to the element's own attributes and are skipped.
func (l locations) comment(depth int) string {
	for _, loc := range l {
		if len(loc.GetPath()) != depth {
			continue
		}
		if c := loc.GetLeadingComments(); c != "" {
			return c
		}
		if c := loc.GetTrailingComments(); c != "" {
			return c
		}
	}
	return ""
}

// LocateComment returns the leading comment, or else the trailing comment, of the location
// whose path is exactly depth elements long. locs is expected to be pre-filtered to the
// candidates sharing the declaration's structural coordinates.
func LocateComment(locs []*descriptorpb.SourceCodeInfo_Location, depth int) string {
	return locations(locs).comment(depth)
}
