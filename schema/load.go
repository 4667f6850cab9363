package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"

	"superjoin/dialect"
	"superjoin/sqlexpr"
)

// LoadOption configures LoadRoot.
type LoadOption func(*loadOptions)

type loadOptions struct {
	callbacks map[string]Callback
}

// WithCallbacks makes named callbacks available to the document's
// `callback:` entries.
func WithCallbacks(callbacks map[string]Callback) LoadOption {
	return func(o *loadOptions) {
		if o.callbacks == nil {
			o.callbacks = make(map[string]Callback, len(callbacks))
		}
		for name, cb := range callbacks {
			o.callbacks[name] = cb
		}
	}
}

type document struct {
	Nodes []nodeDoc `yaml:"nodes"`
}

type nodeDoc struct {
	Alias     string              `yaml:"alias"`
	FieldName string              `yaml:"field_name"`
	Table     string              `yaml:"table"`
	Fields    map[string]fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Kind      string     `yaml:"kind"`
	Column    string     `yaml:"column"`
	Expr      yaml.Node  `yaml:"expr"`
	Alias     string     `yaml:"alias"`
	Extends   string     `yaml:"extends"`
	FieldName string     `yaml:"field_name"`
	JoinType  string     `yaml:"join_type"`
	On        yaml.Node  `yaml:"on"`
	Callback  string     `yaml:"callback"`
	Terms     []orderDoc `yaml:"terms"`
	Limit     *uint64    `yaml:"limit"`
}

type orderDoc struct {
	Column    string    `yaml:"column"`
	Expr      yaml.Node `yaml:"expr"`
	Direction string    `yaml:"direction"`
}

// LoadRootFile reads a YAML or JSON schema document from path.
func LoadRootFile(path string, opts ...LoadOption) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()
	return LoadRoot(f, opts...)
}

// LoadRoot decodes a YAML or JSON schema document into a validated Root.
//
// Node defaults: alias is the table name and field_name is the singular of
// the table name. Field defaults: kind is column and column is the field key.
// A join's alias defaults to "<node alias>_<field key>" and its field_name
// to the field key.
func LoadRoot(r io.Reader, opts ...LoadOption) (*Root, error) {
	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidSchema)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes defined", ErrInvalidSchema)
	}

	nodes := make([]*Node, 0, len(doc.Nodes))
	for i, nd := range doc.Nodes {
		node, err := options.buildNode(nd)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrInvalidSchema, i, err)
		}
		nodes = append(nodes, node)
	}

	root, err := NewRoot(nodes...)
	if err != nil {
		return nil, err
	}
	if err := root.Validate(); err != nil {
		return nil, err
	}
	return root, nil
}

func (o loadOptions) buildNode(nd nodeDoc) (*Node, error) {
	table := strings.TrimSpace(nd.Table)
	if table == "" {
		return nil, errors.New("table is required")
	}
	node := &Node{
		Alias:     nd.Alias,
		FieldName: nd.FieldName,
		Table:     table,
		Fields:    make(map[string]FieldMeta, len(nd.Fields)),
	}
	if node.Alias == "" {
		node.Alias = table
	}
	if node.FieldName == "" {
		node.FieldName = inflection.Singular(table)
	}
	for key, fd := range nd.Fields {
		meta, err := o.buildField(node.Alias, key, fd)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		node.Fields[key] = meta
	}
	return node, nil
}

func (o loadOptions) buildField(nodeAlias, key string, fd fieldDoc) (FieldMeta, error) {
	switch strings.ToLower(strings.TrimSpace(fd.Kind)) {
	case "", "column":
		return buildColumnField(key, fd)
	case "join":
		return o.buildJoinField(nodeAlias, key, fd)
	case "where":
		pred, err := o.buildPredicate(fd.Expr, fd.Callback, "expr")
		if err != nil {
			return nil, err
		}
		return WhereField{Predicate: pred}, nil
	case "order_by", "orderby":
		return buildOrderByField(fd.Terms)
	case "limit":
		if fd.Limit == nil {
			return nil, errors.New("limit field needs a limit value")
		}
		return LimitField{Limit: *fd.Limit}, nil
	default:
		return nil, fmt.Errorf("unsupported field kind %q", fd.Kind)
	}
}

func buildColumnField(key string, fd fieldDoc) (FieldMeta, error) {
	field := ColumnField{Column: fd.Column, Alias: fd.Alias}
	if !isEmptyNode(&fd.Expr) {
		expr, err := decodeExpr(&fd.Expr)
		if err != nil {
			return nil, fmt.Errorf("expr: %w", err)
		}
		field.Expr = expr
	}
	if field.Column == "" && field.Expr == nil {
		field.Column = key
	}
	return field, nil
}

func (o loadOptions) buildJoinField(nodeAlias, key string, fd fieldDoc) (FieldMeta, error) {
	if fd.Extends == "" {
		return nil, errors.New("join needs extends")
	}
	kind, err := dialect.ParseJoinKind(fd.JoinType)
	if err != nil {
		return nil, err
	}
	var on Predicate
	if kind.HasCondition() || fd.Callback != "" || !isEmptyNode(&fd.On) {
		on, err = o.buildPredicate(fd.On, fd.Callback, "on")
		if err != nil {
			return nil, err
		}
	}
	extends := ExtendsNode{
		Alias:     fd.Alias,
		FieldName: fd.FieldName,
		Extends:   fd.Extends,
	}
	if extends.Alias == "" {
		extends.Alias = nodeAlias + "_" + key
	}
	if extends.FieldName == "" {
		extends.FieldName = key
	}
	return JoinField{JoinInfo{Extends: extends, Join: Join{On: on, Kind: kind}}}, nil
}

func (o loadOptions) buildPredicate(exprNode yaml.Node, callback, key string) (Predicate, error) {
	hasExpr := !isEmptyNode(&exprNode)
	switch {
	case hasExpr && callback != "":
		return Predicate{}, fmt.Errorf("set either %s or callback, not both", key)
	case callback != "":
		cb, ok := o.callbacks[callback]
		if !ok {
			return Predicate{}, fmt.Errorf("unknown callback %q", callback)
		}
		return Deferred(cb), nil
	case hasExpr:
		expr, err := decodeExpr(&exprNode)
		if err != nil {
			return Predicate{}, fmt.Errorf("%s: %w", key, err)
		}
		return Static(expr), nil
	default:
		return Predicate{}, fmt.Errorf("%s or callback is required", key)
	}
}

func buildOrderByField(terms []orderDoc) (FieldMeta, error) {
	if len(terms) == 0 {
		return nil, errors.New("order_by field needs terms")
	}
	field := OrderByField{Terms: make([]OrderTerm, 0, len(terms))}
	for i, td := range terms {
		dir, err := ParseDirection(td.Direction)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		var expr sqlexpr.Expr
		switch {
		case td.Column != "" && !isEmptyNode(&td.Expr):
			return nil, fmt.Errorf("term %d: set either column or expr, not both", i)
		case td.Column != "":
			expr = sqlexpr.Column{Name: td.Column}
		case !isEmptyNode(&td.Expr):
			expr, err = decodeExpr(&td.Expr)
			if err != nil {
				return nil, fmt.Errorf("term %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("term %d: column or expr is required", i)
		}
		field.Terms = append(field.Terms, OrderTerm{Expr: expr, Direction: dir})
	}
	return field, nil
}
