package dialect

import (
	"fmt"
	"strings"

	"graphqlsql/internal/sqlutil"
)

// MySQL renders backtick-quoted identifiers and LIMIT/OFFSET pagination.
type MySQL struct{}

var _ Dialect = MySQL{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) EscapeIdentifier(name string) string {
	return sqlutil.QuoteIdentifier(name)
}

func (d MySQL) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

func (MySQL) Pagination(sortClauses []string, offset, limit int) string {
	offset = normalizedOffset(offset)
	tail := ""
	if len(sortClauses) > 0 {
		tail = "ORDER BY " + strings.Join(sortClauses, ", ")
	}
	return formatLimitOffset(tail, offset, limit)
}

func (MySQL) ParameterPrefix() string { return "@p" }

func (MySQL) LastInsertedIdentity() string { return "LAST_INSERT_ID()" }

func (MySQL) LikePattern(paramRef string, kind LikeKind) string {
	switch kind {
	case LikeStartsWith:
		return fmt.Sprintf("CONCAT(%s, '%%')", paramRef)
	case LikeEndsWith:
		return fmt.Sprintf("CONCAT('%%', %s)", paramRef)
	default:
		return fmt.Sprintf("CONCAT('%%', %s, '%%')", paramRef)
	}
}

func (MySQL) GetOperator(op Operator) string {
	if sql, ok := mapCommonOperator(op); ok {
		return sql
	}
	return "="
}
