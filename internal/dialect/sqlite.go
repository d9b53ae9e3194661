package dialect

import (
	"fmt"
	"strings"
)

// SQLite renders double-quoted identifiers and LIMIT/OFFSET pagination. It
// has no auto-increment retrieval function beyond last_insert_rowid().
type SQLite struct{}

var _ Dialect = SQLite{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) EscapeIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d SQLite) TableReference(schema, table string) string {
	if schema == "" {
		return d.EscapeIdentifier(table)
	}
	return d.EscapeIdentifier(schema) + "." + d.EscapeIdentifier(table)
}

func (SQLite) Pagination(sortClauses []string, offset, limit int) string {
	offset = normalizedOffset(offset)
	tail := ""
	if len(sortClauses) > 0 {
		tail = "ORDER BY " + strings.Join(sortClauses, ", ")
	}
	return formatLimitOffset(tail, offset, limit)
}

func (SQLite) ParameterPrefix() string { return "@p" }

func (SQLite) LastInsertedIdentity() string { return "last_insert_rowid()" }

func (SQLite) LikePattern(paramRef string, kind LikeKind) string {
	switch kind {
	case LikeStartsWith:
		return fmt.Sprintf("%s || '%%'", paramRef)
	case LikeEndsWith:
		return fmt.Sprintf("'%%' || %s", paramRef)
	default:
		return fmt.Sprintf("'%%' || %s || '%%'", paramRef)
	}
}

func (SQLite) GetOperator(op Operator) string {
	if sql, ok := mapCommonOperator(op); ok {
		return sql
	}
	return "="
}
