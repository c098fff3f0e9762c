package tree

import "encoding/json"

// jsonNode is the JSON shape of a node. Variant-specific members are omitted when empty.
type jsonNode struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name,omitempty"`
	FullName string  `json:"fullName,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Comment  string  `json:"comment,omitempty"`
	Options  Options `json:"options,omitempty"`

	// Field
	ID           int32  `json:"id,omitempty"`
	Type         string `json:"type,omitempty"`
	Rule         string `json:"rule,omitempty"`
	Extend       string `json:"extend,omitempty"`
	Oneof        string `json:"oneof,omitempty"`
	ResolvedType string `json:"resolvedType,omitempty"`

	// Type
	ExtensionRanges [][2]int32 `json:"extensions,omitempty"`
	Reserved        []any      `json:"reserved,omitempty"`

	// OneOf
	Members []string `json:"members,omitempty"`

	// Enum
	Values []jsonEnumValue `json:"values,omitempty"`

	// Method
	RequestType    string `json:"requestType,omitempty"`
	ResponseType   string `json:"responseType,omitempty"`
	RequestStream  bool   `json:"requestStream,omitempty"`
	ResponseStream bool   `json:"responseStream,omitempty"`

	Nested []*jsonNode `json:"nested,omitempty"`
}

type jsonEnumValue struct {
	Name    string  `json:"name"`
	Number  int32   `json:"number"`
	Comment string  `json:"comment,omitempty"`
	Options Options `json:"options,omitempty"`
}

// MarshalJSON encodes the whole tree, comments included, starting at the root.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSON(s.root))
}

// MarshalNode encodes a node and its descendants.
func MarshalNode(n Node) ([]byte, error) {
	return json.Marshal(toJSON(n))
}

// MarshalNodeIndent is MarshalNode with indentation.
func MarshalNodeIndent(n Node, indent string) ([]byte, error) {
	return json.MarshalIndent(toJSON(n), "", indent)
}

func toJSON(n Node) *jsonNode {
	out := &jsonNode{
		Kind:     n.Kind().Label(),
		Name:     n.Name(),
		FullName: n.FullName(),
		Filename: n.Filename(),
		Comment:  n.Comment(),
		Options:  n.Options(),
	}

	switch n := n.(type) {
	case *Namespace:
	case *Type:
		for _, r := range n.ExtensionRanges {
			out.ExtensionRanges = append(out.ExtensionRanges, [2]int32{r.Start, r.End})
		}
		for _, r := range n.Reserved {
			if r.IsName() {
				out.Reserved = append(out.Reserved, r.Name)
			} else {
				out.Reserved = append(out.Reserved, [2]int32{r.Range.Start, r.Range.End})
			}
		}
	case *Field:
		out.ID = n.ID
		out.Type = n.Type
		out.Rule = string(n.Rule)
		out.Extend = n.Extendee
		out.Oneof = n.Oneof
		out.ResolvedType = n.resolvedType
	case *OneOf:
		out.Members = n.Members
	case *Enum:
		for _, v := range n.Values {
			out.Values = append(out.Values, jsonEnumValue(v))
		}
	case *Service:
	case *Method:
		out.RequestType = n.RequestType
		out.ResponseType = n.ResponseType
		out.RequestStream = n.RequestStream
		out.ResponseStream = n.ResponseStream
	}

	for _, c := range n.Children() {
		out.Nested = append(out.Nested, toJSON(c))
	}
	return out
}
