package tree

import "strings"

// Schema is an indexed reflection tree.
//
// It is read-only once NewSchema returns and may be shared between goroutines.
type Schema struct {
	root   *Namespace
	all    []Node
	byName map[string]Node
}

// NewSchema indexes a tree built by BuildRoot. It assigns full names, flattens the tree in
// preorder and resolves the type references of fields and methods. References that cannot
// be resolved (for example to well-known types missing from the set) are left empty.
func NewSchema(root *Namespace) *Schema {
	s := &Schema{
		root:   root,
		byName: make(map[string]Node),
	}
	s.index(root, "")
	s.resolveAll()
	return s
}

// Root returns the root namespace.
func (s *Schema) Root() *Namespace { return s.root }

// All returns every node except the root, in preorder.
func (s *Schema) All() []Node { return s.all }

// Files returns the names of the files the schema was built from.
func (s *Schema) Files() []string { return s.root.files }

// Lookup returns the node with the given full name, e.g. ".pkg.Msg".
func (s *Schema) Lookup(fullName string) (Node, bool) {
	n, ok := s.byName[fullName]
	return n, ok
}

// LookupType returns the message with the given full name.
func (s *Schema) LookupType(fullName string) (*Type, bool) {
	n, _ := s.Lookup(fullName)
	t, ok := n.(*Type)
	return t, ok
}

// LookupEnum returns the enum with the given full name.
func (s *Schema) LookupEnum(fullName string) (*Enum, bool) {
	n, _ := s.Lookup(fullName)
	e, ok := n.(*Enum)
	return e, ok
}

// LookupService returns the service with the given full name.
func (s *Schema) LookupService(fullName string) (*Service, bool) {
	n, _ := s.Lookup(fullName)
	svc, ok := n.(*Service)
	return svc, ok
}

// ResolvedType returns the message or enum a field refers to.
func (s *Schema) ResolvedType(f *Field) (Node, bool) {
	return s.lookupRef(f.resolvedType)
}

// ResolvedExtendee returns the message an extension field extends.
func (s *Schema) ResolvedExtendee(f *Field) (*Type, bool) {
	n, ok := s.lookupRef(f.resolvedExtendee)
	if !ok {
		return nil, false
	}
	t, ok := n.(*Type)
	return t, ok
}

// ResolvedRequestType returns a method's request message.
func (s *Schema) ResolvedRequestType(m *Method) (*Type, bool) {
	return s.LookupType(m.resolvedRequest)
}

// ResolvedResponseType returns a method's response message.
func (s *Schema) ResolvedResponseType(m *Method) (*Type, bool) {
	return s.LookupType(m.resolvedResponse)
}

func (s *Schema) lookupRef(fullName string) (Node, bool) {
	if fullName == "" {
		return nil, false
	}
	return s.Lookup(fullName)
}

func (s *Schema) index(n Node, fullName string) {
	for _, c := range n.Children() {
		name := fullName + "." + c.Name()
		c.base().fullName = name
		s.all = append(s.all, c)
		s.byName[name] = c
		s.index(c, name)
	}
}

func (s *Schema) resolveAll() {
	for _, n := range s.all {
		switch n := n.(type) {
		case *Field:
			scope := parentName(n.fullName)
			if !n.scalar {
				n.resolvedType = s.resolve(n.Type, scope, isTypeOrEnum)
			}
			if n.Extendee != "" {
				n.resolvedExtendee = s.resolve(n.Extendee, scope, isType)
			}
		case *Method:
			scope := parentName(n.fullName)
			n.resolvedRequest = s.resolve(n.RequestType, scope, isType)
			n.resolvedResponse = s.resolve(n.ResponseType, scope, isType)
		case *Namespace, *Type, *OneOf, *Enum, *Service:
		}
	}
}

// resolve finds the full name a type reference points at. Fully-qualified references
// (leading ".") are looked up as is; relative ones are tried in scope and then in each
// enclosing scope.
func (s *Schema) resolve(ref, scope string, accept func(Node) bool) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, ".") {
		if n, ok := s.byName[ref]; ok && accept(n) {
			return ref
		}
		return ""
	}
	for {
		candidate := scope + "." + ref
		if n, ok := s.byName[candidate]; ok && accept(n) {
			return candidate
		}
		if scope == "" {
			return ""
		}
		scope = parentName(scope)
	}
}

func parentName(fullName string) string {
	if i := strings.LastIndexByte(fullName, '.'); i > 0 {
		return fullName[:i]
	}
	return ""
}

func isType(n Node) bool {
	_, ok := n.(*Type)
	return ok
}

func isTypeOrEnum(n Node) bool {
	switch n.(type) {
	case *Type, *Enum:
		return true
	default:
		return false
	}
}
