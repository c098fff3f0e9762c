// Package tree decodes protobuf descriptor sets into a linked reflection tree.
//
// A descriptor set (as produced by protoc or buf with --include_source_info) is turned into
// a rooted tree of packages, messages, fields, oneofs, enums, services and methods. Every
// declaration carries the comment found for it in the file's source code info, its options
// keyed by snake_case name, and a fully-qualified name that is unique within the tree.
package tree

// Kind identifies the variant of a Node.
type Kind int

// Node kinds.
const (
	KindNamespace Kind = iota
	KindType
	KindField
	KindOneOf
	KindEnum
	KindService
	KindMethod
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "Namespace"
	case KindType:
		return "Type"
	case KindField:
		return "Field"
	case KindOneOf:
		return "OneOf"
	case KindEnum:
		return "Enum"
	case KindService:
		return "Service"
	case KindMethod:
		return "Method"
	default:
		return "Unknown"
	}
}

// Label returns the protobuf keyword for the kind, as shown next to search results.
func (k Kind) Label() string {
	switch k {
	case KindNamespace:
		return "package"
	case KindType:
		return "message"
	case KindField:
		return "field"
	case KindOneOf:
		return "oneof"
	case KindEnum:
		return "enum"
	case KindService:
		return "service"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

// Options maps snake_case option names to their values.
// A nil Options means the declaration had no options at all.
type Options map[string]any

// Node is a declaration in the reflection tree.
//
// The concrete types are *Namespace, *Type, *Field, *OneOf, *Enum, *Service and *Method.
// Consumers are expected to type-switch over them.
type Node interface {
	Kind() Kind
	// Name is the local identifier.
	Name() string
	// FullName is the dot-joined path from the root with a leading ".", e.g. ".pkg.Msg".
	FullName() string
	// Filename is the source file the declaration came from, or "".
	Filename() string
	// Comment is the leading (or else trailing) comment, or "".
	Comment() string
	Options() Options
	// Children returns the child declarations in declaration order.
	Children() []Node

	base() *nodeBase
}

type nodeBase struct {
	name     string
	fullName string
	filename string
	comment  string
	options  Options
}

func (b *nodeBase) Name() string { return b.name }
func (b *nodeBase) FullName() string { return b.fullName }
func (b *nodeBase) Filename() string { return b.filename }
func (b *nodeBase) Comment() string { return b.comment }
func (b *nodeBase) Options() Options { return b.options }
func (b *nodeBase) base() *nodeBase { return b }
func (b *nodeBase) Children() []Node { return nil }

func (b *nodeBase) setOption(key string, value any) {
	if b.options == nil {
		b.options = Options{}
	}
	b.options[key] = value
}

func (b *nodeBase) deleteOption(key string) {
	delete(b.options, key)
	if len(b.options) == 0 {
		b.options = nil
	}
}

// Namespace is a package, or the root of the tree.
type Namespace struct {
	nodeBase
	nested []Node
	files  []string
}

// Kind implements Node.
func (n *Namespace) Kind() Kind { return KindNamespace }

// Children implements Node.
func (n *Namespace) Children() []Node { return n.nested }

// Get returns the direct child with the given name, or nil.
func (n *Namespace) Get(name string) Node {
	return findNamed(n.nested, name)
}

// Files returns the names of all files that contributed to the tree. Only set on the root.
func (n *Namespace) Files() []string { return n.files }

// Range is a half-open interval [Start, End) of field numbers.
type Range struct {
	Start int32
	End   int32
}

// Contains reports whether id lies in the range.
func (r Range) Contains(id int32) bool {
	return id >= r.Start && id < r.End
}

// Reserved is a reserved field number range or a reserved field name.
type Reserved struct {
	// Range is nil for reserved names.
	Name  string
	Range *Range
}

// IsName reports whether the entry reserves a name rather than a number range.
func (r Reserved) IsName() bool { return r.Range == nil }

// Type is a message declaration.
type Type struct {
	nodeBase
	fields []*Field
	oneofs []*OneOf
	nested []Node

	// ExtensionRanges lists the declared extension ranges.
	ExtensionRanges []Range
	// Reserved lists reserved ranges followed by reserved names.
	Reserved []Reserved
}

// Kind implements Node.
func (t *Type) Kind() Kind { return KindType }

// Children implements Node: oneofs, then fields, then nested declarations.
func (t *Type) Children() []Node {
	children := make([]Node, 0, len(t.oneofs)+len(t.fields)+len(t.nested))
	for _, o := range t.oneofs {
		children = append(children, o)
	}
	for _, f := range t.fields {
		children = append(children, f)
	}
	return append(children, t.nested...)
}

// Fields returns the message fields in declaration order. Extension fields are not included.
func (t *Type) Fields() []*Field { return t.fields }

// Oneofs returns the oneofs in declaration order.
func (t *Type) Oneofs() []*OneOf { return t.oneofs }

// Nested returns nested extension fields, messages and enums.
func (t *Type) Nested() []Node { return t.nested }

// Field returns the field with the given name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.fields {
		if f.name == name {
			return f
		}
	}
	return nil
}

// FieldByID returns the field with the given number, or nil.
func (t *Type) FieldByID(id int32) *Field {
	for _, f := range t.fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Oneof returns the oneof with the given name, or nil.
func (t *Type) Oneof(name string) *OneOf {
	for _, o := range t.oneofs {
		if o.name == name {
			return o
		}
	}
	return nil
}

// IsExtensionID reports whether id falls in one of the extension ranges.
func (t *Type) IsExtensionID(id int32) bool {
	for _, r := range t.ExtensionRanges {
		if r.Contains(id) {
			return true
		}
	}
	return false
}

// Rule is the cardinality of a field.
type Rule string

// Field rules. Singular fields have no rule.
const (
	RuleSingular Rule = ""
	RuleRequired Rule = "required"
	RuleRepeated Rule = "repeated"
)

// Field is a message field or an extension field.
type Field struct {
	nodeBase

	// ID is the field number.
	ID int32
	// Type is either a scalar type name ("int32", "string", ...) or a type name reference.
	Type string
	Rule Rule
	// Extendee is the extended message's type name for extension fields.
	Extendee string
	// Oneof is the name of the containing oneof, if any.
	Oneof string

	scalar           bool
	resolvedType     string
	resolvedExtendee string
}

// Kind implements Node.
func (f *Field) Kind() Kind { return KindField }

// IsScalar reports whether Type names a scalar type rather than a message or enum.
func (f *Field) IsScalar() bool { return f.scalar }

// IsExtension reports whether the field extends another message.
func (f *Field) IsExtension() bool { return f.Extendee != "" }

// Repeated reports whether the field is repeated.
func (f *Field) Repeated() bool { return f.Rule == RuleRepeated }

// Required reports whether the field is required.
func (f *Field) Required() bool { return f.Rule == RuleRequired }

// Default returns the coerced default value, if one was declared.
func (f *Field) Default() (any, bool) {
	v, ok := f.options["default"]
	return v, ok
}

// Packed reports whether the field uses packed encoding. Only meaningful for packable types.
func (f *Field) Packed() bool {
	packed, ok := f.options["packed"].(bool)
	return !ok || packed
}

// ResolvedTypeName is the full name of the message or enum Type refers to, or "" when
// Type is scalar or the reference could not be resolved.
func (f *Field) ResolvedTypeName() string { return f.resolvedType }

// ResolvedExtendeeName is the full name of the extended message, or "".
func (f *Field) ResolvedExtendeeName() string { return f.resolvedExtendee }

// OneOf is a set of mutually exclusive fields.
type OneOf struct {
	nodeBase
	// Members holds the names of the member fields in declaration order.
	Members []string
}

// Kind implements Node.
func (o *OneOf) Kind() Kind { return KindOneOf }

// Has reports whether the named field belongs to the oneof.
func (o *OneOf) Has(field string) bool {
	for _, m := range o.Members {
		if m == field {
			return true
		}
	}
	return false
}

// EnumValue is a single enum constant.
type EnumValue struct {
	Name    string
	Number  int32
	Comment string
	Options Options
}

// Enum is an enum declaration.
type Enum struct {
	nodeBase
	// Values lists the constants in declaration order.
	Values []EnumValue
	// ValuesByID maps a number to the last declared name carrying it.
	ValuesByID map[int32]string
	// ValueComments maps a constant name to its comment. Names without a comment are absent.
	ValueComments map[string]string
}

// Kind implements Node.
func (e *Enum) Kind() Kind { return KindEnum }

// Value returns the number for the named constant.
func (e *Enum) Value(name string) (int32, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v.Number, true
		}
	}
	return 0, false
}

// Service is a service declaration.
type Service struct {
	nodeBase
	Methods []*Method
}

// Kind implements Node.
func (s *Service) Kind() Kind { return KindService }

// Children implements Node.
func (s *Service) Children() []Node {
	children := make([]Node, len(s.Methods))
	for i, m := range s.Methods {
		children[i] = m
	}
	return children
}

// Method returns the method with the given name, or nil.
func (s *Service) Method(name string) *Method {
	for _, m := range s.Methods {
		if m.name == name {
			return m
		}
	}
	return nil
}

// Method is an rpc declaration.
type Method struct {
	nodeBase
	RequestType    string
	ResponseType   string
	RequestStream  bool
	ResponseStream bool

	resolvedRequest  string
	resolvedResponse string
}

// Kind implements Node.
func (m *Method) Kind() Kind { return KindMethod }

// ResolvedRequestTypeName is the full name of the request message, or "" if unresolved.
func (m *Method) ResolvedRequestTypeName() string { return m.resolvedRequest }

// ResolvedResponseTypeName is the full name of the response message, or "" if unresolved.
func (m *Method) ResolvedResponseTypeName() string { return m.resolvedResponse }

func findNamed(nodes []Node, name string) Node {
	for _, n := range nodes {
		if n.Name() == name {
			return n
		}
	}
	return nil
}
