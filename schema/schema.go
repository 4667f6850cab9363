// Package schema holds the graph that binds GraphQL types to SQL tables.
//
// A Root maps aliases to Nodes. A Node describes one type: its table, the
// alias it renders under, and the metadata of each of its GraphQL fields.
// An ExtendsNode is one more occurrence of a Node under a fresh alias, which
// is how self joins and repeated relations get distinct SQL aliases while
// the type is defined once. Nodes are shared by pointer and never copied
// or mutated after NewRoot.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"superjoin/dialect"
	"superjoin/sqlexpr"
)

var (
	// ErrUnresolvableAlias is returned when an ExtendsNode names an alias Root does not hold.
	ErrUnresolvableAlias = errors.New("unresolvable alias")
	// ErrInvalidSchema is returned when a schema graph or document is malformed.
	ErrInvalidSchema = errors.New("invalid schema")
)

// Node binds one GraphQL type to a table.
type Node struct {
	Alias     string
	FieldName string
	Table     string
	Fields    map[string]FieldMeta
}

// ExtendsNode is an occurrence of the Node registered under Extends,
// rendered under Alias.
type ExtendsNode struct {
	Alias     string
	FieldName string
	Extends   string
}

// AnyNode is either a *Node or an ExtendsNode.
type AnyNode interface {
	anyNode()
}

func (*Node) anyNode()      {}
func (ExtendsNode) anyNode() {}

// Field returns the metadata for a GraphQL field name.
func (n *Node) Field(name string) (FieldMeta, bool) {
	if n == nil {
		return nil, false
	}
	meta, ok := n.Fields[name]
	return meta, ok
}

// FieldMeta describes what a GraphQL field contributes to the statement.
type FieldMeta interface {
	isFieldMeta()
}

// ColumnField projects a column, or a computed expression when Expr is set.
// Alias overrides the default render alias.
type ColumnField struct {
	Column string
	Expr   sqlexpr.Expr
	Alias  string
}

// JoinField joins another occurrence of a Node.
type JoinField struct {
	JoinInfo
}

// WhereField sets the statement's where clause.
type WhereField struct {
	Predicate Predicate
}

// OrderByField appends order terms in declared order.
type OrderByField struct {
	Terms []OrderTerm
}

// LimitField caps the number of rows.
type LimitField struct {
	Limit uint64
}

func (ColumnField) isFieldMeta()  {}
func (JoinField) isFieldMeta()    {}
func (WhereField) isFieldMeta()   {}
func (OrderByField) isFieldMeta() {}
func (LimitField) isFieldMeta()   {}

// JoinInfo pairs the joined occurrence with its join condition.
type JoinInfo struct {
	Extends ExtendsNode
	Join    Join
}

// Join is the condition and flavor of one join. A zero Kind is a left join.
type Join struct {
	On   Predicate
	Kind dialect.JoinKind
}

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case; empty means Asc.
func ParseDirection(value string) (Direction, error) {
	switch value {
	case "", "asc", "ASC", "Asc":
		return Asc, nil
	case "desc", "DESC", "Desc":
		return Desc, nil
	default:
		return "", fmt.Errorf("unsupported order direction %q", value)
	}
}

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr      sqlexpr.Expr
	Direction Direction
}

// Root is the keyed collection of Nodes for one schema.
type Root struct {
	nodes map[string]*Node
	order []string
}

// NewRoot registers nodes by alias. Aliases must be non-empty and unique.
func NewRoot(nodes ...*Node) (*Root, error) {
	root := &Root{nodes: make(map[string]*Node, len(nodes))}
	for i, node := range nodes {
		if node == nil {
			return nil, fmt.Errorf("%w: node %d is nil", ErrInvalidSchema, i)
		}
		if node.Alias == "" {
			return nil, fmt.Errorf("%w: node %d (table %q) has no alias", ErrInvalidSchema, i, node.Table)
		}
		if _, exists := root.nodes[node.Alias]; exists {
			return nil, fmt.Errorf("%w: duplicate node alias %q", ErrInvalidSchema, node.Alias)
		}
		root.nodes[node.Alias] = node
		root.order = append(root.order, node.Alias)
	}
	return root, nil
}

// Node returns the node registered under alias.
func (r *Root) Node(alias string) (*Node, bool) {
	if r == nil {
		return nil, false
	}
	node, ok := r.nodes[alias]
	return node, ok
}

// NodeByFieldName returns the first registered node whose FieldName matches.
func (r *Root) NodeByFieldName(name string) (*Node, bool) {
	if r == nil {
		return nil, false
	}
	for _, alias := range r.order {
		if node := r.nodes[alias]; node.FieldName == name {
			return node, true
		}
	}
	return nil, false
}

// Nodes returns the registered nodes in registration order.
func (r *Root) Nodes() []*Node {
	if r == nil {
		return nil
	}
	out := make([]*Node, 0, len(r.order))
	for _, alias := range r.order {
		out = append(out, r.nodes[alias])
	}
	return out
}

// Len returns the number of registered nodes.
func (r *Root) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Validate checks that every join resolves and that field metadata is usable.
// It reports the first problem found, in registration and field-name order.
func (r *Root) Validate() error {
	for _, node := range r.Nodes() {
		if node.Table == "" {
			return fmt.Errorf("%w: node %q has no table", ErrInvalidSchema, node.Alias)
		}
		names := make([]string, 0, len(node.Fields))
		for name := range node.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := r.validateField(node.Fields[name]); err != nil {
				return fmt.Errorf("%w: node %q field %q: %w", ErrInvalidSchema, node.Alias, name, err)
			}
		}
	}
	return nil
}

func (r *Root) validateField(meta FieldMeta) error {
	switch m := meta.(type) {
	case ColumnField:
		if m.Column == "" && m.Expr == nil {
			return errors.New("column field needs a column or an expression")
		}
	case JoinField:
		if m.Extends.Alias == "" {
			return errors.New("join has no alias")
		}
		if _, err := ResolveNode(m.Extends, r); err != nil {
			return err
		}
		if m.Join.Kind.HasCondition() && m.Join.On.IsZero() {
			return fmt.Errorf("%s needs an on predicate", m.Join.Kind.Keyword())
		}
	case WhereField:
		if m.Predicate.IsZero() {
			return errors.New("where field has no predicate")
		}
	case OrderByField:
		for i, term := range m.Terms {
			if term.Expr == nil {
				return fmt.Errorf("order term %d has no expression", i)
			}
		}
	case LimitField:
	case nil:
		return errors.New("missing field metadata")
	}
	return nil
}
