package dialect

import (
	"fmt"
	"strings"
)

// SQLServer renders T-SQL: bracket-quoted identifiers, OFFSET/FETCH
// pagination with a mandatory ORDER BY, and string concatenation via "+".
type SQLServer struct{}

var _ Dialect = SQLServer{}

func (SQLServer) Name() string { return "sqlserver" }

func (SQLServer) EscapeIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d SQLServer) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

func (d SQLServer) Pagination(sortClauses []string, offset, limit int) string {
	offset = normalizedOffset(offset)
	orderBy := "ORDER BY (SELECT NULL)"
	if len(sortClauses) > 0 {
		orderBy = "ORDER BY " + strings.Join(sortClauses, ", ")
	}
	return formatOffsetFetch(orderBy, offset, limit)
}

func (SQLServer) ParameterPrefix() string { return "@p" }

func (SQLServer) LastInsertedIdentity() string { return "SCOPE_IDENTITY()" }

func (SQLServer) LikePattern(paramRef string, kind LikeKind) string {
	switch kind {
	case LikeStartsWith:
		return fmt.Sprintf("%s + '%%'", paramRef)
	case LikeEndsWith:
		return fmt.Sprintf("'%%' + %s", paramRef)
	default:
		return fmt.Sprintf("'%%' + %s + '%%'", paramRef)
	}
}

func (SQLServer) GetOperator(op Operator) string {
	if sql, ok := mapCommonOperator(op); ok {
		return sql
	}
	return "="
}

func normalizedOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
