package tree

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// counters hands out suffixes for declarations that have no name.
// Each build owns its own set, so concurrent builds never share state.
type counters struct {
	messages int
	enums    int
	oneofs   int
	services int
	methods  int
}

// builder holds the state of one build.
type builder struct {
	counters counters
}

// fileContext carries per-file settings down the recursion.
type fileContext struct {
	filename string
	// packed is the packed-encoding default for packable fields in the current scope.
	packed bool
}

// container is a node that declarations can be added to.
type container interface {
	Node
	add(child Node) error
	child(name string) Node
}

// Decode unmarshals a serialized FileDescriptorSet and builds its indexed tree.
func Decode(data []byte) (*Schema, error) {
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor set: %w", err)
	}
	return Build(&set)
}

// Build builds the tree for a descriptor set and indexes it.
func Build(set *descriptorpb.FileDescriptorSet) (*Schema, error) {
	root, err := BuildRoot(set)
	if err != nil {
		return nil, err
	}
	return NewSchema(root), nil
}

// BuildRoot builds the tree for a descriptor set without indexing it. Full names and type
// references are only filled in by NewSchema.
//
// Malformed declarations (a field without a number, an unknown label or type code, an
// out-of-range oneof index, clashing names) abort the whole build.
func BuildRoot(set *descriptorpb.FileDescriptorSet) (*Namespace, error) {
	b := &builder{}
	root := &Namespace{}
	for _, fd := range set.GetFile() {
		if err := b.buildFile(root, fd); err != nil {
			return nil, fmt.Errorf("file %q: %w", fd.GetName(), err)
		}
	}
	return root, nil
}

func (b *builder) anonymous(prefix string, counter *int) string {
	name := fmt.Sprintf("%s%d", prefix, *counter)
	*counter++
	return name
}

func (b *builder) buildFile(root *Namespace, fd *descriptorpb.FileDescriptorProto) error {
	var ns container = root
	if pkg := fd.GetPackage(); pkg != "" {
		var err error
		if ns, err = define(root, pkg); err != nil {
			return err
		}
	}

	filename := fd.GetName()
	if filename != "" {
		ns.base().filename = filename
		root.files = append(root.files, filename)
	}

	locs := locations(fd.GetSourceCodeInfo().GetLocation())
	ctx := fileContext{filename: filename, packed: packedByDefault(fd)}

	for i, md := range fd.GetMessageType() {
		t, err := b.buildType(md, locs.at(0, fileMessageTypeTag, i), pathStride, ctx)
		if err != nil {
			return err
		}
		if err := ns.add(t); err != nil {
			return err
		}
	}

	for i, ed := range fd.GetEnumType() {
		e, err := b.buildEnum(ed, locs.at(0, fileEnumTypeTag, i), pathStride, ctx)
		if err != nil {
			return err
		}
		if err := ns.add(e); err != nil {
			return err
		}
	}

	for i, xd := range fd.GetExtension() {
		f, err := b.buildField(xd, locs.at(0, fileExtensionTag, i), pathStride, ctx)
		if err != nil {
			return err
		}
		if err := ns.add(f); err != nil {
			return err
		}
	}

	for i, sd := range fd.GetService() {
		s, err := b.buildService(sd, locs.at(0, fileServiceTag, i), pathStride, ctx)
		if err != nil {
			return err
		}
		if err := ns.add(s); err != nil {
			return err
		}
	}

	for key, value := range NormalizeOptions(fd.GetOptions()) {
		ns.base().setOption(key, value)
	}

	return nil
}

// define walks a dotted package path from the root, creating namespaces as needed.
func define(root *Namespace, path string) (container, error) {
	var cur container = root
	for _, part := range strings.Split(path, ".") {
		switch next := cur.child(part).(type) {
		case nil:
			ns := &Namespace{nodeBase: nodeBase{name: part}}
			if err := cur.add(ns); err != nil {
				return nil, err
			}
			cur = ns
		case *Namespace:
			cur = next
		case *Type:
			cur = next
		default:
			return nil, fmt.Errorf("%w: %s", ErrNameConflict, path)
		}
	}
	return cur, nil
}

func (b *builder) buildType(d *descriptorpb.DescriptorProto, locs locations, depth int, ctx fileContext) (*Type, error) {
	name := d.GetName()
	if name == "" {
		name = b.anonymous("Type", &b.counters.messages)
	}

	t := &Type{nodeBase: nodeBase{
		name:     name,
		filename: ctx.filename,
		comment:  locs.comment(depth),
		options:  NormalizeOptions(d.GetOptions()),
	}}
	if features := d.GetOptions().GetFeatures(); features != nil {
		ctx.packed = packedFeature(features, ctx.packed)
	}

	if err := b.buildTypeMembers(t, d, locs, depth, ctx); err != nil {
		return nil, fmt.Errorf("message %q: %w", name, err)
	}

	for _, r := range d.GetExtensionRange() {
		t.ExtensionRanges = append(t.ExtensionRanges, Range{Start: r.GetStart(), End: r.GetEnd()})
	}
	for _, r := range d.GetReservedRange() {
		t.Reserved = append(t.Reserved, Reserved{Range: &Range{Start: r.GetStart(), End: r.GetEnd()}})
	}
	for _, n := range d.GetReservedName() {
		t.Reserved = append(t.Reserved, Reserved{Name: n})
	}

	return t, nil
}

// buildTypeMembers adds oneofs, fields, extensions, nested messages and nested enums,
// in that order.
func (b *builder) buildTypeMembers(t *Type, d *descriptorpb.DescriptorProto, locs locations, depth int, ctx fileContext) error {
	for i, od := range d.GetOneofDecl() {
		o := b.buildOneOf(od, locs.at(depth, messageOneofDeclTag, i), depth+pathStride, ctx)
		if err := t.add(o); err != nil {
			return err
		}
	}

	for i, fd := range d.GetField() {
		f, err := b.buildField(fd, locs.at(depth, messageFieldTag, i), depth+pathStride, ctx)
		if err != nil {
			return err
		}
		if err := t.add(f); err != nil {
			return err
		}
		if fd.OneofIndex == nil {
			continue
		}
		idx := int(fd.GetOneofIndex())
		if idx < 0 || idx >= len(t.oneofs) {
			return fmt.Errorf("field %q: %w: %d", f.name, ErrIllegalOneofIndex, idx)
		}
		o := t.oneofs[idx]
		o.Members = append(o.Members, f.name)
		f.Oneof = o.name
	}

	for i, xd := range d.GetExtension() {
		f, err := b.buildField(xd, locs.at(depth, messageExtensionTag, i), depth+pathStride, ctx)
		if err != nil {
			return err
		}
		if err := t.add(f); err != nil {
			return err
		}
	}

	for i, nd := range d.GetNestedType() {
		nested, err := b.buildType(nd, locs.at(depth, messageNestedTypeTag, i), depth+pathStride, ctx)
		if err != nil {
			return err
		}
		if err := t.add(nested); err != nil {
			return err
		}
		if nd.GetOptions().GetMapEntry() {
			t.setOption("map_entry", true)
		}
	}

	for i, ed := range d.GetEnumType() {
		e, err := b.buildEnum(ed, locs.at(depth, messageEnumTypeTag, i), depth+pathStride, ctx)
		if err != nil {
			return err
		}
		if err := t.add(e); err != nil {
			return err
		}
	}

	return nil
}

func (b *builder) buildField(d *descriptorpb.FieldDescriptorProto, locs locations, depth int, ctx fileContext) (*Field, error) {
	if d.Number == nil {
		return nil, fmt.Errorf("field %q: %w", d.GetName(), ErrMissingFieldNumber)
	}
	id := d.GetNumber()
	if id <= 0 {
		return nil, fmt.Errorf("field %q: %w: %d", d.GetName(), ErrIllegalFieldNumber, id)
	}

	name := d.GetName()
	if name == "" {
		name = fmt.Sprintf("field%d", id)
	}

	f := &Field{
		nodeBase: nodeBase{
			name:     name,
			filename: ctx.filename,
			comment:  locs.comment(depth),
			options:  NormalizeOptions(d.GetOptions()),
		},
		ID:       id,
		Extendee: d.GetExtendee(),
	}

	if typeName := d.GetTypeName(); typeName != "" {
		f.Type = typeName
	} else {
		scalar, ok := scalarTypes[d.GetType()]
		if !ok {
			return nil, fmt.Errorf("field %q: %w: %d", name, ErrIllegalType, int32(d.GetType()))
		}
		f.Type = scalar
		f.scalar = true
	}

	switch d.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL:
		f.Rule = RuleSingular
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		f.Rule = RuleRequired
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		f.Rule = RuleRepeated
	default:
		return nil, fmt.Errorf("field %q: %w: %d", name, ErrIllegalLabel, int32(d.GetLabel()))
	}

	if dv := d.GetDefaultValue(); dv != "" {
		f.setOption("default", CoerceDefault(dv))
	}

	// "packed" is recorded when false, or when true against an unpacked syntax default;
	// absence means packed.
	if packableTypes[d.GetType()] {
		packed := ctx.packed
		if opts := d.GetOptions(); opts != nil {
			if opts.Packed != nil {
				packed = opts.GetPacked()
			} else {
				packed = packedFeature(opts.GetFeatures(), packed)
			}
		}
		switch {
		case packed && ctx.packed:
			f.deleteOption("packed")
		case packed:
			f.setOption("packed", true)
		default:
			f.setOption("packed", false)
		}
	}

	return f, nil
}

func (b *builder) buildEnum(d *descriptorpb.EnumDescriptorProto, locs locations, depth int, ctx fileContext) (*Enum, error) {
	name := d.GetName()
	if name == "" {
		name = b.anonymous("Enum", &b.counters.enums)
	}

	e := &Enum{
		nodeBase: nodeBase{
			name:     name,
			filename: ctx.filename,
			comment:  locs.comment(depth),
			options:  NormalizeOptions(d.GetOptions()),
		},
		ValuesByID:    make(map[int32]string, len(d.GetValue())),
		ValueComments: make(map[string]string),
	}

	for i, vd := range d.GetValue() {
		num := vd.GetNumber()
		valueName := vd.GetName()
		if valueName == "" {
			valueName = fmt.Sprintf("NAME%d", num)
		}
		if _, dup := e.Value(valueName); dup {
			return nil, fmt.Errorf("enum %q: %w: %q", name, ErrDuplicateName, valueName)
		}

		comment := locs.at(depth, enumValueTag, i).comment(depth + pathStride)
		e.Values = append(e.Values, EnumValue{
			Name:    valueName,
			Number:  num,
			Comment: comment,
			Options: NormalizeOptions(vd.GetOptions()),
		})
		e.ValuesByID[num] = valueName
		if comment != "" {
			e.ValueComments[valueName] = comment
		}
	}

	return e, nil
}

func (b *builder) buildOneOf(d *descriptorpb.OneofDescriptorProto, locs locations, depth int, ctx fileContext) *OneOf {
	name := d.GetName()
	if name == "" {
		name = b.anonymous("oneof", &b.counters.oneofs)
	}
	return &OneOf{nodeBase: nodeBase{
		name:     name,
		filename: ctx.filename,
		comment:  locs.comment(depth),
		options:  NormalizeOptions(d.GetOptions()),
	}}
}

func (b *builder) buildService(d *descriptorpb.ServiceDescriptorProto, locs locations, depth int, ctx fileContext) (*Service, error) {
	name := d.GetName()
	if name == "" {
		name = b.anonymous("Service", &b.counters.services)
	}

	s := &Service{nodeBase: nodeBase{
		name:     name,
		filename: ctx.filename,
		comment:  locs.comment(depth),
		options:  NormalizeOptions(d.GetOptions()),
	}}

	for i, md := range d.GetMethod() {
		m := b.buildMethod(md, locs.at(depth, serviceMethodTag, i), depth+pathStride, ctx)
		if s.Method(m.name) != nil {
			return nil, fmt.Errorf("service %q: %w: %q", name, ErrDuplicateName, m.name)
		}
		s.Methods = append(s.Methods, m)
	}

	return s, nil
}

func (b *builder) buildMethod(d *descriptorpb.MethodDescriptorProto, locs locations, depth int, ctx fileContext) *Method {
	name := d.GetName()
	if name == "" {
		name = b.anonymous("Method", &b.counters.methods)
	}
	return &Method{
		nodeBase: nodeBase{
			name:     name,
			filename: ctx.filename,
			comment:  locs.comment(depth),
			options:  NormalizeOptions(d.GetOptions()),
		},
		RequestType:    d.GetInputType(),
		ResponseType:   d.GetOutputType(),
		RequestStream:  d.GetClientStreaming(),
		ResponseStream: d.GetServerStreaming(),
	}
}

func (n *Namespace) child(name string) Node { return n.Get(name) }

// add appends a declaration. A message may take over a plain namespace of the same name
// (a package declared before the message it is nested in); any other clash is an error.
func (n *Namespace) add(child Node) error {
	for i, existing := range n.nested {
		if existing.Name() != child.Name() {
			continue
		}
		prev, isNamespace := existing.(*Namespace)
		t, isType := child.(*Type)
		if !isNamespace || !isType {
			return fmt.Errorf("%w: %q in %q", ErrDuplicateName, child.Name(), n.name)
		}
		for _, c := range prev.nested {
			if err := t.add(c); err != nil {
				return err
			}
		}
		n.nested[i] = t
		return nil
	}
	n.nested = append(n.nested, child)
	return nil
}

func (t *Type) child(name string) Node { return findNamed(t.Children(), name) }

func (t *Type) add(child Node) error {
	if t.child(child.Name()) != nil {
		return fmt.Errorf("%w: %q in %q", ErrDuplicateName, child.Name(), t.name)
	}
	switch c := child.(type) {
	case *Field:
		if c.Extendee == "" {
			if t.FieldByID(c.ID) != nil {
				return fmt.Errorf("%w: %d in %q", ErrDuplicateID, c.ID, t.name)
			}
			t.fields = append(t.fields, c)
			return nil
		}
	case *OneOf:
		t.oneofs = append(t.oneofs, c)
		return nil
	}
	t.nested = append(t.nested, child)
	return nil
}
