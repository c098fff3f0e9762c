package tree

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const uninterpretedOption = "uninterpreted_option"

// NormalizeOptions converts an options message (FileOptions, MessageOptions, FieldOptions,
// ...) into a map keyed by snake_case option name.
//
// Enum-valued options are replaced by the symbolic name of the value when the number is
// defined, and left numeric otherwise. Uninterpreted options and extensions are dropped.
// The result is nil when opts is nil or carries no recognised option, so callers can tell
// "no options" apart from an empty map.
func NormalizeOptions(opts proto.Message) Options {
	if opts == nil {
		return nil
	}
	m := opts.ProtoReflect()
	if !m.IsValid() {
		return nil
	}

	var out Options
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.IsExtension() || fd.Name() == uninterpretedOption {
			return true
		}
		if out == nil {
			out = Options{}
		}
		out[string(fd.Name())] = optionValue(fd, v)
		return true
	})
	return out
}

func optionValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch {
	case fd.IsList():
		list := v.List()
		values := make([]any, list.Len())
		for i := range values {
			values[i] = singularValue(fd, list.Get(i))
		}
		return values
	case fd.IsMap():
		values := make(map[string]any, v.Map().Len())
		v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			values[k.String()] = singularValue(fd.MapValue(), mv)
			return true
		})
		return values
	default:
		return singularValue(fd, v)
	}
}

func singularValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		num := v.Enum()
		if ev := fd.Enum().Values().ByNumber(num); ev != nil {
			return string(ev.Name())
		}
		return int32(num)
	case protoreflect.MessageKind, protoreflect.GroupKind:
		nested := NormalizeOptions(v.Message().Interface())
		if nested == nil {
			return Options{}
		}
		return nested
	default:
		return v.Interface()
	}
}
