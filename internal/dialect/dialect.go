// Package dialect isolates the per-backend SQL rendering rules the rest of
// the compiler must stay ignorant of: identifier escaping, pagination
// syntax, parameter prefixes, LIKE-pattern construction, and operator
// mapping. Implementations are pure and stateless, matching the Catalog's
// own immutability: a Dialect is a shared singleton, never mutated after
// construction.
package dialect

import "fmt"

// Operator is the normalized filter operator vocabulary. Wire-level
// underscore-prefixed operator names (_eq, _like, ...) are parsed into one
// of these at argument-parse time so that GetOperator never sees raw
// strings.
type Operator int

const (
	OpEq Operator = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpContains
	OpNotContains
	OpStartsWith
	OpNotStartsWith
	OpEndsWith
	OpNotEndsWith
	OpLike
	OpNotLike
	OpIn
	OpNin
	OpBetween
	OpNbetween
)

// operatorNames is the wire-level underscore-prefixed spelling of each
// Operator, and also the table argument-parsing uses in reverse to parse
// an incoming filter key into its Operator.
var operatorNames = map[Operator]string{
	OpEq: "_eq", OpNeq: "_neq", OpLt: "_lt", OpLte: "_lte", OpGt: "_gt", OpGte: "_gte",
	OpContains: "_contains", OpNotContains: "_not_contains",
	OpStartsWith: "_starts_with", OpNotStartsWith: "_not_starts_with",
	OpEndsWith: "_ends_with", OpNotEndsWith: "_not_ends_with",
	OpLike: "_like", OpNotLike: "_not_like",
	OpIn: "_in", OpNin: "_nin",
	OpBetween: "_between", OpNbetween: "_nbetween",
}

// ParseOperator parses a wire-level underscore-prefixed operator key (as
// it appears inside a filter argument object) into its Operator. Argument
// parsing is the sole place a raw operator string should ever appear;
// everywhere else in the compiler only the enum is passed around.
func ParseOperator(key string) (Operator, bool) {
	for op, name := range operatorNames {
		if name == key {
			return op, true
		}
	}
	return 0, false
}

// String renders the wire-level operator name, for use in error messages.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "_eq"
}

// LikeKind selects which LIKE-pattern shape to build from a bound
// parameter reference.
type LikeKind int

const (
	LikeContains LikeKind = iota
	LikeStartsWith
	LikeEndsWith
)

// DefaultLimit is the row cap a Dialect falls back to when the caller does
// not specify one. -1 disables the limit.
const DefaultLimit = 100

// Dialect exposes exactly the operations required to keep SQL generation
// portable across backends. Every method must be pure: no I/O, no shared
// mutable state.
type Dialect interface {
	// Name identifies the dialect for error messages.
	Name() string

	// EscapeIdentifier quotes a single identifier (column or table name)
	// using the backend's quoting convention.
	EscapeIdentifier(name string) string

	// TableReference renders a schema-qualified table reference. schema
	// may be empty, in which case only table is rendered.
	TableReference(schema, table string) string

	// Pagination renders the full ORDER BY ... OFFSET ... FETCH tail.
	// sortClauses are already-escaped "column DIRECTION" fragments. limit
	// of -1 disables the row cap; offset defaults to 0 when negative.
	Pagination(sortClauses []string, offset, limit int) string

	// ParameterPrefix is the sigil placed before a parameter's ordinal,
	// e.g. "@p" for "@p0".
	ParameterPrefix() string

	// LastInsertedIdentity names the construct an executor uses to read
	// back an auto-generated identity value after an insert.
	LastInsertedIdentity() string

	// LikePattern builds the pattern expression for a LIKE/NOT LIKE
	// comparison from a bound parameter reference, e.g.
	// "'%' + @p0 + '%'" for Contains on SQL Server.
	LikePattern(paramRef string, kind LikeKind) string

	// GetOperator maps a normalized Operator to its SQL text. Unknown
	// operators collapse to "=".
	GetOperator(op Operator) string
}

// NormalizeLimit applies the DefaultLimit / -1-disables convention shared
// by every dialect's Pagination implementation.
func NormalizeLimit(limit *int) int {
	if limit == nil {
		return DefaultLimit
	}
	return *limit
}

// NormalizeOffset applies the "null offset -> 0" convention.
func NormalizeOffset(offset *int) int {
	if offset == nil || *offset < 0 {
		return 0
	}
	return *offset
}

func formatOffsetFetch(sortTail string, offset, limit int) string {
	if limit < 0 {
		return fmt.Sprintf("%s OFFSET %d ROWS", sortTail, offset)
	}
	return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", sortTail, offset, limit)
}

func formatLimitOffset(sortTail string, offset, limit int) string {
	if limit < 0 {
		if offset == 0 {
			return sortTail
		}
		return fmt.Sprintf("%s LIMIT -1 OFFSET %d", sortTail, offset)
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sortTail, limit, offset)
}

func mapCommonOperator(op Operator) (string, bool) {
	switch op {
	case OpEq:
		return "=", true
	case OpNeq:
		return "<>", true
	case OpLt:
		return "<", true
	case OpLte:
		return "<=", true
	case OpGt:
		return ">", true
	case OpGte:
		return ">=", true
	case OpContains, OpStartsWith, OpEndsWith, OpLike:
		return "LIKE", true
	case OpNotContains, OpNotStartsWith, OpNotEndsWith, OpNotLike:
		return "NOT LIKE", true
	case OpIn:
		return "IN", true
	case OpNin:
		return "NOT IN", true
	case OpBetween:
		return "BETWEEN", true
	case OpNbetween:
		return "NOT BETWEEN", true
	default:
		return "", false
	}
}
