// Package filter implements the filter algebra: a small tree of boolean
// combinators and column comparisons that compiles to a parameterized SQL
// fragment against a bound Catalog table. Every leaf value is bound
// through a param.Collection; nothing is ever concatenated into the
// fragment as literal text except NULL comparisons, field-to-field
// comparisons, and dialect-built LIKE patterns.
package filter

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"graphqlsql/internal/catalog"
	"graphqlsql/internal/compileerr"
	"graphqlsql/internal/dialect"
	"graphqlsql/internal/param"
)

// Node is a tagged-variant filter tree node. Exactly one of the
// constructors below should be used to build a Node; kind discriminates
// which fields are meaningful.
type Node struct {
	kind nodeKind

	children []*Node // And / Or

	column   string          // Relation / JoinWalk
	operator dialect.Operator // Relation
	value    interface{}      // Relation

	next *Node // JoinWalk
}

type nodeKind int

const (
	kindAnd nodeKind = iota
	kindOr
	kindRelation
	kindJoinWalk
)

// And combines children with AND. An empty list compiles to no condition.
func And(children ...*Node) *Node { return &Node{kind: kindAnd, children: children} }

// Or combines children with OR. An empty list compiles to no condition.
func Or(children ...*Node) *Node { return &Node{kind: kindOr, children: children} }

// Relation compares column against value using operator.
func Relation(column string, operator dialect.Operator, value interface{}) *Node {
	return &Node{kind: kindRelation, column: column, operator: operator, value: value}
}

// JoinWalk navigates the SingleLink named by column and recursively
// compiles next against the parent table it resolves to.
func JoinWalk(column string, next *Node) *Node {
	return &Node{kind: kindJoinWalk, column: column, next: next}
}

// FieldRef marks a Relation value as a reference to another column on the
// same table rather than a literal: the compiler emits the escaped
// identifier on the right-hand side and binds no parameter.
type FieldRef struct {
	Column string
}

// Compiled is a compiled filter fragment: the bare boolean SQL expression
// (no leading WHERE) and nothing else — bound values live in the shared
// param.Collection the compiler was given. An empty fragment (Empty ==
// true) means the node produced no condition (e.g. an empty And/Or) and
// should be omitted from the enclosing WHERE entirely.
type Compiled struct {
	SQL   string
	Empty bool
}

// Compile recursively compiles node against table, aliased as alias in
// the emitted SQL (alias may equal table.DBName for an unaliased
// reference). Bound values are appended to params. d supplies identifier
// escaping, operator mapping, and LIKE-pattern construction.
func Compile(node *Node, table *catalog.Table, alias string, d dialect.Dialect, params *param.Collection) (Compiled, error) {
	if node == nil {
		return Compiled{Empty: true}, nil
	}

	switch node.kind {
	case kindAnd:
		return compileConjunction(node.children, "AND", table, alias, d, params)
	case kindOr:
		return compileConjunction(node.children, "OR", table, alias, d, params)
	case kindRelation:
		return compileRelation(node, table, alias, d, params)
	case kindJoinWalk:
		return compileJoinWalk(node, table, alias, d, params)
	default:
		return Compiled{}, fmt.Errorf("unreachable filter node kind %d", node.kind)
	}
}

// compileConjunction compiles an AND/OR node's children and joins them with
// squirrel's sq.And/sq.Or combinator machinery. Each child is already a
// fully-bound SQL fragment (every leaf value was parameterized against
// params while compiling that child), so children ride into squirrel as
// raw sq.Expr fragments and only the join/parenthesization logic is
// squirrel's; the returned args are discarded since nothing here still
// needs binding.
func compileConjunction(children []*Node, joiner string, table *catalog.Table, alias string, d dialect.Dialect, params *param.Collection) (Compiled, error) {
	var parts []sq.Sqlizer
	for _, child := range children {
		compiled, err := Compile(child, table, alias, d, params)
		if err != nil {
			return Compiled{}, err
		}
		if compiled.Empty {
			continue
		}
		parts = append(parts, sq.Expr(compiled.SQL))
	}
	if len(parts) == 0 {
		return Compiled{Empty: true}, nil
	}
	var combined sq.Sqlizer
	if joiner == "OR" {
		combined = sq.Or(parts)
	} else {
		combined = sq.And(parts)
	}
	sqlText, _, err := combined.ToSql()
	if err != nil {
		return Compiled{}, fmt.Errorf("combining %s clauses: %w", joiner, err)
	}
	return Compiled{SQL: sqlText}, nil
}

func compileRelation(node *Node, table *catalog.Table, alias string, d dialect.Dialect, params *param.Collection) (Compiled, error) {
	col := table.ColumnByGraphQLName(node.column)
	if col == nil {
		return Compiled{}, &compileerr.SchemaLookupError{Field: node.column, Table: table.GraphQLName, Message: "no such column"}
	}
	ident := qualifiedColumn(alias, col.DBName, d)

	if ref, ok := node.value.(FieldRef); ok {
		refCol := table.ColumnByGraphQLName(ref.Column)
		if refCol == nil {
			return Compiled{}, &compileerr.SchemaLookupError{Field: ref.Column, Table: table.GraphQLName, Message: "no such column"}
		}
		sqlOp := d.GetOperator(node.operator)
		return Compiled{SQL: fmt.Sprintf("%s %s %s", ident, sqlOp, qualifiedColumn(alias, refCol.DBName, d))}, nil
	}

	if node.value == nil {
		switch node.operator {
		case dialect.OpEq:
			return Compiled{SQL: ident + " IS NULL"}, nil
		case dialect.OpNeq:
			return Compiled{SQL: ident + " IS NOT NULL"}, nil
		}
	}

	switch node.operator {
	case dialect.OpContains, dialect.OpNotContains, dialect.OpStartsWith, dialect.OpNotStartsWith,
		dialect.OpEndsWith, dialect.OpNotEndsWith, dialect.OpLike, dialect.OpNotLike:
		return compileLike(node, ident, col, d, params)
	case dialect.OpIn, dialect.OpNin:
		return compileInList(node, ident, col, d, params)
	case dialect.OpBetween, dialect.OpNbetween:
		return compileBetween(node, ident, col, d, params)
	default:
		ref := params.Add(node.value, col.Type.String())
		sqlOp := d.GetOperator(node.operator)
		return Compiled{SQL: fmt.Sprintf("%s %s %s", ident, sqlOp, ref)}, nil
	}
}

func compileLike(node *Node, ident string, col *catalog.Column, d dialect.Dialect, params *param.Collection) (Compiled, error) {
	str, ok := node.value.(string)
	if !ok {
		return Compiled{}, &compileerr.QueryShapeError{Field: col.GraphQLName, Message: "LIKE-family operator requires a string value"}
	}
	ref := params.Add(str, col.Type.String())

	var kind dialect.LikeKind
	switch node.operator {
	case dialect.OpContains, dialect.OpNotContains:
		kind = dialect.LikeContains
	case dialect.OpStartsWith, dialect.OpNotStartsWith:
		kind = dialect.LikeStartsWith
	case dialect.OpEndsWith, dialect.OpNotEndsWith:
		kind = dialect.LikeEndsWith
	default:
		// Plain _like/_not_like pass the bound value through unmodified.
		return Compiled{SQL: fmt.Sprintf("%s %s %s", ident, d.GetOperator(node.operator), ref)}, nil
	}
	pattern := d.LikePattern(ref, kind)
	return Compiled{SQL: fmt.Sprintf("%s %s %s", ident, d.GetOperator(node.operator), pattern)}, nil
}

func compileInList(node *Node, ident string, col *catalog.Column, d dialect.Dialect, params *param.Collection) (Compiled, error) {
	items, err := toInterfaceSlice(node.value)
	if err != nil {
		return Compiled{}, &compileerr.QueryShapeError{Field: col.GraphQLName, Message: node.operator.String() + " requires a list value"}
	}
	refs := make([]string, len(items))
	for i, item := range items {
		refs[i] = params.Add(item, col.Type.String())
	}
	return Compiled{SQL: fmt.Sprintf("%s %s (%s)", ident, d.GetOperator(node.operator), strings.Join(refs, ", "))}, nil
}

func compileBetween(node *Node, ident string, col *catalog.Column, d dialect.Dialect, params *param.Collection) (Compiled, error) {
	items, err := toInterfaceSlice(node.value)
	if err != nil || len(items) < 2 {
		return Compiled{}, &compileerr.QueryShapeError{Field: col.GraphQLName, Message: node.operator.String() + " requires at least two values"}
	}
	lo := params.Add(items[0], col.Type.String())
	hi := params.Add(items[1], col.Type.String())
	return Compiled{SQL: fmt.Sprintf("%s %s %s AND %s", ident, d.GetOperator(node.operator), lo, hi)}, nil
}

func compileJoinWalk(node *Node, table *catalog.Table, alias string, d dialect.Dialect, params *param.Collection) (Compiled, error) {
	link, ok := table.SingleLinks[node.column]
	if !ok {
		return Compiled{}, &compileerr.SchemaLookupError{Field: node.column, Table: table.GraphQLName, Message: "no such single-ended link"}
	}
	parentTable := link.ParentTable
	parentAlias := "j_" + parentTable.DBName

	nested, err := Compile(node.next, parentTable, parentAlias, d, params)
	if err != nil {
		return Compiled{}, err
	}

	parentRef := d.TableReference(parentTable.Schema, parentTable.DBName)
	pk := qualifiedColumn(parentAlias, link.ParentColumn.DBName, d)
	sub := fmt.Sprintf("SELECT DISTINCT %s AS joinid FROM %s AS %s", pk, parentRef, d.EscapeIdentifier(parentAlias))
	if !nested.Empty {
		sub += " WHERE " + nested.SQL
	}

	childCol := qualifiedColumn(alias, link.ChildColumn.DBName, d)
	joinAlias := "w_" + parentTable.DBName
	return Compiled{SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM (%s) AS %s WHERE %s.joinid = %s)", sub, d.EscapeIdentifier(joinAlias), d.EscapeIdentifier(joinAlias), childCol)}, nil
}

func qualifiedColumn(alias, dbName string, d dialect.Dialect) string {
	if alias == "" {
		return d.EscapeIdentifier(dbName)
	}
	return d.EscapeIdentifier(alias) + "." + d.EscapeIdentifier(dbName)
}

func toInterfaceSlice(v interface{}) ([]interface{}, error) {
	switch items := v.(type) {
	case []interface{}:
		return items, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}
