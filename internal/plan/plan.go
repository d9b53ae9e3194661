// Package plan compiles a Query-Intent Tree bound against a Catalog into a
// flat, deterministically-keyed map of parameterized SQL statements: the
// Logical Query tree (GqlObjectQuery/TableJoin), the Join Expander that
// turns named relationship children into explicit joins, and the SQL
// Planner that walks the expanded tree emitting one statement per key.
package plan

import (
	"graphqlsql/internal/catalog"
	"graphqlsql/internal/dialect"
	"graphqlsql/internal/filter"
	"graphqlsql/internal/param"
)

// SelectionKind classifies how a GqlObjectQuery or TableJoin is realized
// in SQL: a row set, a join, a single-row join, or an aggregate.
type SelectionKind int

const (
	Standard SelectionKind = iota
	JoinSelection
	SingleSelection
	AggregateSelection
)

// AggregateOp is the aggregate function applied at the end of an
// aggregate hop chain.
type AggregateOp int

const (
	AggCount AggregateOp = iota
	AggSum
	AggAvg
	AggMax
	AggMin
)

// AggregateColumn is one `_agg` field: a chain of link-hop names ending in
// a terminal column and an operator.
type AggregateColumn struct {
	ResultKey string
	Hops      []string
	Column    string
	Op        AggregateOp
}

// SortColumn is one parsed sort token.
type SortColumn struct {
	Column string
	Desc   bool
}

// linkRef is one not-yet-expanded relationship child: the name it was
// requested under, and the Logical Query compiled for its selection set.
type linkRef struct {
	Name  string
	Query *GqlObjectQuery
}

// GqlObjectQuery is the Logical Query: a Catalog-bound compiled
// selection, with its filter, sort, and pagination already parsed, its
// relationship children still named (Links) until the Join Expander runs,
// and empty Joins until it does.
type GqlObjectQuery struct {
	Table *catalog.Table
	Alias string
	Path  string
	Kind  SelectionKind

	ScalarColumns    []string
	AggregateColumns []*AggregateColumn

	links []linkRef
	Joins []*TableJoin

	Filter *filter.Node
	Sort   []SortColumn
	Limit  *int
	Offset *int

	IncludeResult bool
}

// TableJoin is one expanded join descriptor: a correlation between a
// parent column and a connected sub-query's connected column.
type TableJoin struct {
	Name            string
	Alias           string
	FromTable       *catalog.Table
	FromColumn      *catalog.Column
	Connected       *GqlObjectQuery
	ConnectedColumn *catalog.Column
	Operator        dialect.Operator
	Kind            SelectionKind
}

// ParameterizedSQL is a compiled SQL fragment paired with the ordered
// parameter values it references. Two ParameterizedSQL values compose by
// concatenating both Text and Params in order.
type ParameterizedSQL struct {
	Text   string
	Params []param.Param
}

// Append concatenates two ParameterizedSQL fragments in order.
func (p ParameterizedSQL) Append(other ParameterizedSQL) ParameterizedSQL {
	params := make([]param.Param, 0, len(p.Params)+len(other.Params))
	params = append(params, p.Params...)
	params = append(params, other.Params...)
	return ParameterizedSQL{Text: p.Text + other.Text, Params: params}
}
