// Package sqlexpr is the typed expression language shared by where clauses,
// join predicates, order-by terms, and computed columns. Expressions are
// compiled into squirrel Sqlizers; the placeholder syntax is chosen later by
// the statement builder, so a compiled expression is dialect-neutral apart
// from identifier and literal quoting.
package sqlexpr

// Expr is a node of the expression tree. The set of implementations is closed.
type Expr interface {
	isExpr()
}

// Column references table.name, or a bare name when Table is empty.
type Column struct {
	Table string
	Name  string
}

// Param binds a typed value through a placeholder. It is the only form that
// is safe for user-supplied values.
type Param struct {
	Name  string
	Value Value
}

// Literal renders a typed value inline as a SQL literal.
type Literal struct {
	Value Value
}

// Raw passes SQL text through verbatim. The caller owns its safety. A '?' in
// the text is read as a placeholder by the statement builder.
type Raw struct {
	SQL string
}

// Eq renders Left = Right.
type Eq struct{ Left, Right Expr }

// Neq renders Left <> Right.
type Neq struct{ Left, Right Expr }

// Gt renders Left > Right.
type Gt struct{ Left, Right Expr }

// Gte renders Left >= Right.
type Gte struct{ Left, Right Expr }

// Lt renders Left < Right.
type Lt struct{ Left, Right Expr }

// Lte renders Left <= Right.
type Lte struct{ Left, Right Expr }

// And renders (Left AND Right).
type And struct{ Left, Right Expr }

// Or renders (Left OR Right).
type Or struct{ Left, Right Expr }

// Not renders NOT (Expr).
type Not struct{ Expr Expr }

// Like renders Expr LIKE ?, binding Pattern.
type Like struct {
	Expr    Expr
	Pattern string
}

// In renders Expr IN (Values...). An empty list never matches.
type In struct {
	Expr   Expr
	Values []Expr
}

// IsNull renders Expr IS NULL.
type IsNull struct{ Expr Expr }

// IsNotNull renders Expr IS NOT NULL.
type IsNotNull struct{ Expr Expr }

func (Column) isExpr()    {}
func (Param) isExpr()     {}
func (Literal) isExpr()   {}
func (Raw) isExpr()       {}
func (Eq) isExpr()        {}
func (Neq) isExpr()       {}
func (Gt) isExpr()        {}
func (Gte) isExpr()       {}
func (Lt) isExpr()        {}
func (Lte) isExpr()       {}
func (And) isExpr()       {}
func (Or) isExpr()        {}
func (Not) isExpr()       {}
func (Like) isExpr()      {}
func (In) isExpr()        {}
func (IsNull) isExpr()    {}
func (IsNotNull) isExpr() {}

// Col returns a column reference qualified by table. An empty table yields a bare name.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

// AllOf folds exprs into a left-deep And chain, skipping nil entries.
// It returns nil when every entry is nil.
func AllOf(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = And{Left: out, Right: e}
	}
	return out
}

// AnyOf folds exprs into a left-deep Or chain, skipping nil entries.
func AnyOf(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = Or{Left: out, Right: e}
	}
	return out
}

// Qualify returns a copy of e in which every bare Column is qualified with alias.
// Columns that already name a table are left alone.
func Qualify(e Expr, alias string) Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case Column:
		if x.Table == "" {
			x.Table = alias
		}
		return x
	case Eq:
		return Eq{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case Neq:
		return Neq{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case Gt:
		return Gt{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case Gte:
		return Gte{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case Lt:
		return Lt{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case Lte:
		return Lte{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case And:
		return And{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case Or:
		return Or{Left: Qualify(x.Left, alias), Right: Qualify(x.Right, alias)}
	case Not:
		return Not{Expr: Qualify(x.Expr, alias)}
	case Like:
		return Like{Expr: Qualify(x.Expr, alias), Pattern: x.Pattern}
	case In:
		values := make([]Expr, len(x.Values))
		for i, v := range x.Values {
			values[i] = Qualify(v, alias)
		}
		return In{Expr: Qualify(x.Expr, alias), Values: values}
	case IsNull:
		return IsNull{Expr: Qualify(x.Expr, alias)}
	case IsNotNull:
		return IsNotNull{Expr: Qualify(x.Expr, alias)}
	default:
		// Param, Literal, Raw carry no column references.
		return e
	}
}
