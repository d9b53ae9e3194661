package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphqlsql/internal/catalog"
	"graphqlsql/internal/dialect"
	"graphqlsql/internal/intent"
	"graphqlsql/internal/sqltype"
)

func testTypeMapper(string) sqltype.Family { return sqltype.Int }

// shopCatalog builds a small Users/Orders/Roles schema exercising a
// one-to-many link (users->orders), a many-to-one link (orders->user),
// and a many-to-many link through a junction (users<->roles via
// user_roles), matching the shapes walked by the planner tests below.
func shopCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	tables := []catalog.InputTable{
		{Schema: "dbo", Name: "users", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "name", DataType: "varchar"},
			{Name: "email", DataType: "varchar"},
			{Name: "tenant_id", DataType: "int"},
		}},
		{Schema: "dbo", Name: "orders", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "user_id", DataType: "int"},
			{Name: "total", DataType: "int"},
		}},
		{Schema: "dbo", Name: "roles", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "label", DataType: "varchar"},
		}},
		{Schema: "dbo", Name: "user_roles", Columns: []catalog.InputColumn{
			{Name: "user_id", DataType: "int", IsPrimaryKey: true},
			{Name: "role_id", DataType: "int", IsPrimaryKey: true},
		}},
	}
	fks := []catalog.InputForeignKey{
		{ConstraintName: "fk_orders_user", ChildSchema: "dbo", ChildTable: "orders", ChildColumns: []string{"user_id"}, ParentSchema: "dbo", ParentTable: "users", ParentColumns: []string{"id"}},
		{ConstraintName: "fk_userroles_user", ChildSchema: "dbo", ChildTable: "user_roles", ChildColumns: []string{"user_id"}, ParentSchema: "dbo", ParentTable: "users", ParentColumns: []string{"id"}},
		{ConstraintName: "fk_userroles_role", ChildSchema: "dbo", ChildTable: "user_roles", ChildColumns: []string{"role_id"}, ParentSchema: "dbo", ParentTable: "roles", ParentColumns: []string{"id"}},
	}
	cat, err := catalog.New(tables, fks, nil, testTypeMapper, nil)
	require.NoError(t, err)
	return cat
}

func field(name string, args map[string]interface{}, children ...*intent.QueryField) *intent.QueryField {
	return &intent.QueryField{Name: name, Kind: intent.Standard, Arguments: args, Fields: children}
}

func TestCompile_SimpleListWithFilterAndPaging(t *testing.T) {
	cat := shopCatalog(t)
	root := field("users", map[string]interface{}{
		"limit":  int64(10),
		"filter": map[string]interface{}{"name": map[string]interface{}{"_eq": "Alice"}},
	}, field("id", nil), field("email", nil))
	root.IncludeResult = true

	q, err := Build(root, cat)
	require.NoError(t, err)
	require.NoError(t, Expand(q))

	out, err := Compile(q, dialect.SQLServer{})
	require.NoError(t, err)

	require.Contains(t, out, "users")
	require.Contains(t, out, "users=>count")
	assert.Len(t, out, 2)

	main := out["users"]
	assert.Contains(t, main.Text, "SELECT [id] [id],[email] [email] FROM [dbo].[users]")
	assert.Contains(t, main.Text, "WHERE [users].[name] = @p0")
	assert.Contains(t, main.Text, "OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY")
	require.Len(t, main.Params, 1)
	assert.Equal(t, "Alice", main.Params[0].Value)

	assert.Contains(t, out["users=>count"].Text, "SELECT COUNT(*) FROM [dbo].[users]")
}

func TestCompile_PrimaryKeyLookup(t *testing.T) {
	cat := shopCatalog(t)
	root := field("orders", map[string]interface{}{
		"_primaryKey": []interface{}{int64(42)},
	}, field("id", nil), field("total", nil))

	q, err := Build(root, cat)
	require.NoError(t, err)
	require.NoError(t, Expand(q))

	out, err := Compile(q, dialect.SQLServer{})
	require.NoError(t, err)

	main := out["orders"]
	assert.Contains(t, main.Text, "WHERE [orders].[id] = @p0")
	require.Len(t, main.Params, 1)
	assert.EqualValues(t, 42, main.Params[0].Value)
}

func TestExpand_OneToManyJoinWithChildFilter(t *testing.T) {
	cat := shopCatalog(t)
	root := field("users", nil,
		field("id", nil),
		field("orders", map[string]interface{}{
			"filter": map[string]interface{}{"total": map[string]interface{}{"_gt": int64(100)}},
		}, field("id", nil), field("total", nil)),
	)

	q, err := Build(root, cat)
	require.NoError(t, err)
	require.NoError(t, Expand(q))

	require.Len(t, q.Joins, 1)
	join := q.Joins[0]
	assert.Equal(t, JoinSelection, join.Kind)
	assert.Equal(t, "id", join.FromColumn.GraphQLName)
	assert.Equal(t, "userId", join.ConnectedColumn.GraphQLName)

	out, err := Compile(q, dialect.SQLServer{})
	require.NoError(t, err)
	require.Contains(t, out, "users")
	require.Contains(t, out, "users->orders")

	joinSQL := out["users->orders"]
	assert.Contains(t, joinSQL.Text, "FROM (SELECT DISTINCT [id] AS [JoinId] FROM [dbo].[users]) a")
	assert.Contains(t, joinSQL.Text, "INNER JOIN [dbo].[orders] b ON a.[JoinId] = b.[user_id]")
	assert.Contains(t, joinSQL.Text, "WHERE [b].[total] > @p0")
}

func TestExpand_ManyToManyThroughJunction(t *testing.T) {
	cat := shopCatalog(t)
	root := field("users", nil,
		field("id", nil),
		field("roles", nil, field("id", nil), field("label", nil)),
	)

	q, err := Build(root, cat)
	require.NoError(t, err)
	require.NoError(t, Expand(q))

	require.Len(t, q.Joins, 1)
	junctionHop := q.Joins[0]
	// The junction hop's Name/Alias is the GraphQL-normalized junction
	// type name, not its raw DB-cased table name, matching the casing
	// every other hop in the chain uses.
	assert.Equal(t, "UserRoles", junctionHop.Name)
	require.Len(t, junctionHop.Connected.Joins, 1)
	targetHop := junctionHop.Connected.Joins[0]
	assert.Equal(t, "roles", targetHop.Name)

	out, err := Compile(q, dialect.SQLServer{})
	require.NoError(t, err)
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "users->UserRoles")
	assert.Contains(t, out, "UserRoles->roles")
}

func TestCompile_FilterTraversalThroughSingleLink(t *testing.T) {
	cat := shopCatalog(t)
	root := field("orders", map[string]interface{}{
		"filter": map[string]interface{}{"user": map[string]interface{}{"tenantId": map[string]interface{}{"_eq": int64(7)}}},
	}, field("id", nil))

	q, err := Build(root, cat)
	require.NoError(t, err)
	require.NoError(t, Expand(q))

	out, err := Compile(q, dialect.SQLServer{})
	require.NoError(t, err)

	text := out["orders"].Text
	assert.Contains(t, text, "EXISTS (SELECT 1 FROM (SELECT DISTINCT")
	assert.Contains(t, text, "[j_users].[tenant_id] = @p0")
	assert.Contains(t, text, "[orders].[user_id]")
}

func TestCompile_AggregateOverOneToManyChain(t *testing.T) {
	cat := shopCatalog(t)
	aggField := &intent.QueryField{
		Name:  "_agg",
		Alias: "totalSpent",
		Kind:  intent.Aggregate,
		Arguments: map[string]interface{}{
			"operation": "SUM",
			"value": map[string]interface{}{
				"orders": map[string]interface{}{"column": "total"},
			},
		},
	}
	root := field("users", nil, field("id", nil), aggField)
	root.IncludeResult = true

	q, err := Build(root, cat)
	require.NoError(t, err)
	require.NoError(t, Expand(q))

	out, err := Compile(q, dialect.SQLServer{})
	require.NoError(t, err)

	require.Contains(t, out, "users=>agg_totalSpent")
	aggSQL := out["users=>agg_totalSpent"].Text
	assert.Contains(t, aggSQL, "SELECT [id] AS srcId, [id] AS joinId FROM [dbo].[users]")
	assert.Contains(t, aggSQL, "INNER JOIN [dbo].[orders] AS next ON src.joinId = next.[user_id]")
	assert.Contains(t, aggSQL, "SUM(next.[total]) AS [totalSpent]")
	assert.Contains(t, aggSQL, "GROUP BY src.srcId")
}

// deptCatalog builds a Company -> Department -> Employee chain so nested
// joins three levels deep can be exercised: each level has its own FK back
// to its parent, giving every level of TestCompile_NestedJoinThreadsAncestorFilters
// something to restrict on.
func deptCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	tables := []catalog.InputTable{
		{Schema: "dbo", Name: "companies", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "name", DataType: "varchar"},
		}},
		{Schema: "dbo", Name: "departments", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "company_id", DataType: "int"},
			{Name: "name", DataType: "varchar"},
		}},
		{Schema: "dbo", Name: "employees", Columns: []catalog.InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "department_id", DataType: "int"},
			{Name: "name", DataType: "varchar"},
		}},
	}
	fks := []catalog.InputForeignKey{
		{ConstraintName: "fk_dept_company", ChildSchema: "dbo", ChildTable: "departments", ChildColumns: []string{"company_id"}, ParentSchema: "dbo", ParentTable: "companies", ParentColumns: []string{"id"}},
		{ConstraintName: "fk_emp_dept", ChildSchema: "dbo", ChildTable: "employees", ChildColumns: []string{"department_id"}, ParentSchema: "dbo", ParentTable: "departments", ParentColumns: []string{"id"}},
	}
	cat, err := catalog.New(tables, fks, nil, testTypeMapper, nil)
	require.NoError(t, err)
	return cat
}

// TestCompile_NestedJoinThreadsAncestorFilters asserts a 3-level nested
// join's innermost restricted id set inner-joins all the way up through
// every ancestor's own restriction, not just the immediate parent's: the
// employees join must reflect the grandparent-level company filter, since
// an unrestricted flat join at that level would let a page of employees
// include rows from companies already excluded higher up.
func TestCompile_NestedJoinThreadsAncestorFilters(t *testing.T) {
	cat := deptCatalog(t)
	root := field("companies", map[string]interface{}{
		"filter": map[string]interface{}{"name": map[string]interface{}{"_eq": "Acme"}},
	},
		field("id", nil),
		field("departments", nil,
			field("id", nil),
			field("employees", nil, field("id", nil)),
		),
	)

	q, err := Build(root, cat)
	require.NoError(t, err)
	require.NoError(t, Expand(q))

	out, err := Compile(q, dialect.SQLServer{})
	require.NoError(t, err)

	require.Contains(t, out, "companies->departments")
	require.Contains(t, out, "departments->employees")

	deptJoin := out["companies->departments"].Text
	assert.Contains(t, deptJoin, "FROM (SELECT DISTINCT [id] AS [JoinId] FROM [dbo].[companies] WHERE [companies].[name] = @p1) a")
	assert.Contains(t, deptJoin, "INNER JOIN [dbo].[departments] b ON a.[JoinId] = b.[company_id]")

	empJoin := out["departments->employees"].Text
	assert.Contains(t, empJoin, "FROM (SELECT DISTINCT b.[id] AS [JoinId] FROM (SELECT DISTINCT [id] AS [JoinId] FROM [dbo].[companies] WHERE [companies].[name] = @p2) a INNER JOIN [dbo].[departments] b ON a.[JoinId] = b.[company_id]) a")
	assert.Contains(t, empJoin, "INNER JOIN [dbo].[employees] b ON a.[JoinId] = b.[department_id]")
	require.Len(t, out["departments->employees"].Params, 1)
	assert.Equal(t, "Acme", out["departments->employees"].Params[0].Value)
}

func TestBuild_UnknownLinkFails(t *testing.T) {
	cat := shopCatalog(t)
	root := field("users", nil, field("bogus", nil, field("id", nil)))

	_, err := Build(root, cat)
	require.Error(t, err)
}

func TestBuild_SortWithoutSuffixFails(t *testing.T) {
	cat := shopCatalog(t)
	root := field("users", map[string]interface{}{
		"sort": []interface{}{"name"},
	}, field("id", nil))

	_, err := Build(root, cat)
	require.Error(t, err)
}

func TestResolveAggregateHop_AmbiguousNameFails(t *testing.T) {
	cat := shopCatalog(t)
	// Forcibly collide a SingleLink with the existing "orders" MultiLink on
	// Users to exercise the ambiguity guard without depending on any real
	// schema naturally producing one.
	users := cat.TableByDBName("dbo", "users")
	require.NotNil(t, users.MultiLinks["orders"])
	users.SingleLinks["orders"] = &catalog.SingleLink{Name: "orders", ParentTable: users, ParentColumn: users.KeyColumns[0], ChildColumn: users.KeyColumns[0]}

	_, err := resolveAggregateHop(users, "orders")
	require.Error(t, err)
}
