package dialect

import (
	"fmt"
	"strings"
)

// Postgres renders double-quoted identifiers and LIMIT/OFFSET pagination.
type Postgres struct{}

var _ Dialect = Postgres{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) EscapeIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Postgres) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

func (Postgres) Pagination(sortClauses []string, offset, limit int) string {
	offset = normalizedOffset(offset)
	tail := ""
	if len(sortClauses) > 0 {
		tail = "ORDER BY " + strings.Join(sortClauses, ", ")
	}
	return formatLimitOffset(tail, offset, limit)
}

func (Postgres) ParameterPrefix() string { return "@p" }

func (Postgres) LastInsertedIdentity() string { return "lastval()" }

func (Postgres) LikePattern(paramRef string, kind LikeKind) string {
	switch kind {
	case LikeStartsWith:
		return fmt.Sprintf("%s || '%%'", paramRef)
	case LikeEndsWith:
		return fmt.Sprintf("'%%' || %s", paramRef)
	default:
		return fmt.Sprintf("'%%' || %s || '%%'", paramRef)
	}
}

func (Postgres) GetOperator(op Operator) string {
	if sql, ok := mapCommonOperator(op); ok {
		return sql
	}
	return "="
}
