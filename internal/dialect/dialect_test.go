package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLServerPaginationFallsBackToSentinelOrderBy(t *testing.T) {
	d := SQLServer{}
	got := d.Pagination(nil, 0, 10)
	assert.Equal(t, "ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY", got)
}

func TestSQLServerPaginationDisablesLimit(t *testing.T) {
	d := SQLServer{}
	got := d.Pagination([]string{"[Name] ASC"}, 5, -1)
	assert.Equal(t, "ORDER BY [Name] ASC OFFSET 5 ROWS", got)
}

func TestMySQLEscapeIdentifierDoublesBackticks(t *testing.T) {
	d := MySQL{}
	assert.Equal(t, "`a``b`", d.EscapeIdentifier("a`b"))
}

func TestPostgresLimitOffsetOmitsOrderByWhenNoSort(t *testing.T) {
	d := Postgres{}
	assert.Equal(t, " LIMIT 10 OFFSET 0", d.Pagination(nil, 0, 10))
}

func TestEachDialectMapsCommonOperators(t *testing.T) {
	for _, d := range []Dialect{SQLServer{}, MySQL{}, Postgres{}, SQLite{}} {
		require.Equal(t, "=", d.GetOperator(OpEq))
		require.Equal(t, "LIKE", d.GetOperator(OpContains))
		require.Equal(t, "NOT LIKE", d.GetOperator(OpNotLike))
		require.Equal(t, "BETWEEN", d.GetOperator(OpBetween))
	}
}

func TestUnknownOperatorCollapsesToEquals(t *testing.T) {
	d := SQLServer{}
	assert.Equal(t, "=", d.GetOperator(Operator(999)))
}
