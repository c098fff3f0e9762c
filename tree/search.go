package tree

import "strings"

// Search returns up to limit nodes matching query, case-insensitively.
//
// Nodes whose full name contains the query come first, followed by nodes that only match in
// their comment; within each group nodes keep their preorder position. An empty query
// returns the first limit nodes. A limit of zero or less means no limit.
func (s *Schema) Search(query string, limit int) []Node {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return truncate(append([]Node(nil), s.all...), limit)
	}

	var byName, byComment []Node
	for _, n := range s.all {
		switch {
		case strings.Contains(strings.ToLower(n.FullName()[1:]), q):
			byName = append(byName, n)
		case strings.Contains(strings.ToLower(n.Comment()), q):
			byComment = append(byComment, n)
		}
	}
	return truncate(append(byName, byComment...), limit)
}

func truncate(nodes []Node, limit int) []Node {
	if limit > 0 && len(nodes) > limit {
		return nodes[:limit]
	}
	return nodes
}
