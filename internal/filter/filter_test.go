package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphqlsql/internal/catalog"
	"graphqlsql/internal/dialect"
	"graphqlsql/internal/param"
	"graphqlsql/internal/sqltype"
)

func intType(string) sqltype.Family { return sqltype.Int }

func usersPostsCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	tables := []catalog.InputTable{
		{Schema: "dbo", Name: "users", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "name", DataType: "varchar"},
			{Name: "tenant_id", DataType: "int"},
		}},
		{Schema: "dbo", Name: "posts", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "author_id", DataType: "int"},
			{Name: "title", DataType: "varchar"},
		}},
	}
	fks := []catalog.InputForeignKey{
		{
			ConstraintName: "fk_posts_author",
			ChildSchema:    "dbo", ChildTable: "posts", ChildColumns: []string{"author_id"},
			ParentSchema: "dbo", ParentTable: "users", ParentColumns: []string{"id"},
		},
	}
	cat, err := catalog.New(tables, fks, nil, intType, nil)
	require.NoError(t, err)
	return cat
}

func TestCompileEqNullEmitsIsNullWithNoParam(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(Relation("title", dialect.OpEq, nil), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "IS NULL")
	assert.Equal(t, 0, params.Len())
}

func TestCompileNeqNullEmitsIsNotNull(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(Relation("title", dialect.OpNeq, nil), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "IS NOT NULL")
	assert.Equal(t, 0, params.Len())
}

func TestCompileFieldRefBindsNoParam(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(Relation("title", dialect.OpEq, FieldRef{Column: "id"}), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.Equal(t, 0, params.Len())
	assert.Contains(t, compiled.SQL, "[posts].[title]")
	assert.Contains(t, compiled.SQL, "[posts].[id]")
}

func TestCompileInBindsOneParamPerElement(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(Relation("id", dialect.OpIn, []interface{}{1, 2, 3}), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.Equal(t, 3, params.Len())
	assert.Contains(t, compiled.SQL, "IN (@p0, @p1, @p2)")
}

func TestCompileBetweenRequiresTwoValues(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	_, err := Compile(Relation("id", dialect.OpBetween, []interface{}{1}), posts, "posts", dialect.SQLServer{}, params)
	assert.Error(t, err)
}

func TestCompileBetweenBindsExactlyTwoParams(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(Relation("id", dialect.OpBetween, []interface{}{1, 10}), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.Equal(t, 2, params.Len())
	assert.Contains(t, compiled.SQL, "BETWEEN @p0 AND @p1")
}

func TestCompileContainsUsesDialectLikePattern(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(Relation("title", dialect.OpContains, "abc"), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.Equal(t, 1, params.Len())
	assert.Contains(t, compiled.SQL, "LIKE")
	assert.Contains(t, compiled.SQL, "'%' + @p0 + '%'")
}

func TestCompileAndDropsEmptyChildren(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(And(And(), Relation("title", dialect.OpEq, "x")), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.NotContains(t, compiled.SQL, "AND")
}

func TestCompileAndWrapsMultipleChildren(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(And(
		Relation("title", dialect.OpEq, "x"),
		Relation("id", dialect.OpGt, 1),
	), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, " AND ")
	assert.Equal(t, 2, params.Len())
}

func TestCompileEmptyOrProducesEmptyFragment(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(Or(), posts, "posts", dialect.SQLServer{}, params)
	require.NoError(t, err)
	assert.True(t, compiled.Empty)
}

func TestCompileJoinWalkProducesCorrelatedExists(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	compiled, err := Compile(
		JoinWalk("author", Relation("tenantId", dialect.OpEq, 7)),
		posts, "posts", dialect.SQLServer{}, params,
	)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "EXISTS")
	assert.Contains(t, compiled.SQL, "joinid")
	assert.Equal(t, 1, params.Len())
}

func TestCompileUnknownColumnIsSchemaLookupError(t *testing.T) {
	cat := usersPostsCatalog(t)
	posts := cat.TableByDBName("dbo", "posts")
	params := param.New("@p")

	_, err := Compile(Relation("doesNotExist", dialect.OpEq, 1), posts, "posts", dialect.SQLServer{}, params)
	assert.Error(t, err)
}
