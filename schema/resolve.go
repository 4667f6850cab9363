package schema

import "fmt"

// ResolveNode returns the Node that defines n's fields. An ExtendsNode is
// looked up by its Extends alias.
func ResolveNode(n AnyNode, root *Root) (*Node, error) {
	switch node := n.(type) {
	case *Node:
		if node == nil {
			return nil, fmt.Errorf("%w: nil node", ErrUnresolvableAlias)
		}
		return node, nil
	case ExtendsNode:
		resolved, ok := root.Node(node.Extends)
		if !ok {
			return nil, fmt.Errorf("%w: %q (extended by %q)", ErrUnresolvableAlias, node.Extends, node.Alias)
		}
		return resolved, nil
	default:
		return nil, fmt.Errorf("%w: unsupported node type %T", ErrUnresolvableAlias, n)
	}
}

// ResolveAlias returns the alias n renders under.
func ResolveAlias(n AnyNode) string {
	switch node := n.(type) {
	case *Node:
		if node == nil {
			return ""
		}
		return node.Alias
	case ExtendsNode:
		return node.Alias
	default:
		return ""
	}
}
