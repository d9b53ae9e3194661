package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphqlsql/internal/sqltype"
)

func intType(string) sqltype.Family { return sqltype.Int }

func usersPostsTables() []InputTable {
	return []InputTable{
		{Schema: "dbo", Name: "users", Columns: []InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "name", DataType: "varchar"},
		}},
		{Schema: "dbo", Name: "posts", Columns: []InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true, IsIdentity: true},
			{Name: "author_id", DataType: "int"},
			{Name: "title", DataType: "varchar"},
		}},
	}
}

func usersPostsFKs() []InputForeignKey {
	return []InputForeignKey{
		{
			ConstraintName: "fk_posts_author",
			ChildSchema:    "dbo", ChildTable: "posts", ChildColumns: []string{"author_id"},
			ParentSchema: "dbo", ParentTable: "users", ParentColumns: []string{"id"},
		},
	}
}

func TestFKPrecedenceOverNameBasedFallback(t *testing.T) {
	cat, err := New(usersPostsTables(), usersPostsFKs(), nil, intType, nil)
	require.NoError(t, err)

	posts := cat.TableByDBName("dbo", "posts")
	require.NotNil(t, posts)

	// Only one SingleLink to users should exist — the FK-based one — not a
	// second one synthesized by the name-based fallback for author_id.
	count := 0
	for _, link := range posts.SingleLinks {
		if link.ParentTable.DBName == "users" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestReciprocalMultiLinkCreated(t *testing.T) {
	cat, err := New(usersPostsTables(), usersPostsFKs(), nil, intType, nil)
	require.NoError(t, err)

	users := cat.TableByDBName("dbo", "users")
	require.NotNil(t, users)
	require.Len(t, users.MultiLinks, 1)

	var link *MultiLink
	for _, l := range users.MultiLinks {
		link = l
	}
	assert.Equal(t, "posts", link.ChildTable.DBName)
	assert.Equal(t, "author_id", link.ChildColumn.DBName)
}

func manyToManyTables() ([]InputTable, []InputForeignKey) {
	tables := []InputTable{
		{Schema: "dbo", Name: "students", Columns: []InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true},
		}},
		{Schema: "dbo", Name: "courses", Columns: []InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true},
		}},
		{Schema: "dbo", Name: "enrollments", Columns: []InputColumn{
			{Name: "student_id", DataType: "int", IsPrimaryKey: true},
			{Name: "course_id", DataType: "int", IsPrimaryKey: true},
		}},
	}
	fks := []InputForeignKey{
		{
			ConstraintName: "fk_enroll_student",
			ChildSchema:    "dbo", ChildTable: "enrollments", ChildColumns: []string{"student_id"},
			ParentSchema: "dbo", ParentTable: "students", ParentColumns: []string{"id"},
		},
		{
			ConstraintName: "fk_enroll_course",
			ChildSchema:    "dbo", ChildTable: "enrollments", ChildColumns: []string{"course_id"},
			ParentSchema: "dbo", ParentTable: "courses", ParentColumns: []string{"id"},
		},
	}
	return tables, fks
}

func TestManyToManyProducesSymmetricLinksOnDistinctTables(t *testing.T) {
	tables, fks := manyToManyTables()
	cat, err := New(tables, fks, nil, intType, nil)
	require.NoError(t, err)

	students := cat.TableByDBName("dbo", "students")
	courses := cat.TableByDBName("dbo", "courses")
	require.Len(t, students.ManyToManyLinks, 1)
	require.Len(t, courses.ManyToManyLinks, 1)

	var fromStudents *ManyToManyLink
	for _, l := range students.ManyToManyLinks {
		fromStudents = l
	}
	assert.Equal(t, "courses", fromStudents.TargetTable.DBName)
	assert.Equal(t, "enrollments", fromStudents.JunctionTable.DBName)
}

// TestAttributeJunctionFallsBackToOrdinaryLinks asserts a candidate
// junction table carrying an extra attribute column beyond its two FK
// columns is not collapsed into a ManyToManyLink: it is treated as an
// ordinary table, linked to each side through plain single/multi links.
func TestAttributeJunctionFallsBackToOrdinaryLinks(t *testing.T) {
	tables, fks := manyToManyTables()
	for i, table := range tables {
		if table.Name == "enrollments" {
			tables[i].Columns = append(tables[i].Columns, InputColumn{Name: "granted_at", DataType: "datetime"})
		}
	}

	cat, err := New(tables, fks, nil, intType, nil)
	require.NoError(t, err)

	students := cat.TableByDBName("dbo", "students")
	courses := cat.TableByDBName("dbo", "courses")
	enrollments := cat.TableByDBName("dbo", "enrollments")
	require.NotNil(t, enrollments)

	assert.Empty(t, students.ManyToManyLinks)
	assert.Empty(t, courses.ManyToManyLinks)

	require.Len(t, enrollments.SingleLinks, 2)
	var linkedTables []string
	for _, link := range enrollments.SingleLinks {
		linkedTables = append(linkedTables, link.ParentTable.DBName)
	}
	assert.ElementsMatch(t, []string{"students", "courses"}, linkedTables)
}

func selfReferencingJunctionTables() ([]InputTable, []InputForeignKey) {
	tables := []InputTable{
		{Schema: "dbo", Name: "employees", Columns: []InputColumn{
			{Name: "id", DataType: "int", IsPrimaryKey: true},
		}},
		{Schema: "dbo", Name: "employee_friends", Columns: []InputColumn{
			{Name: "employee_id", DataType: "int", IsPrimaryKey: true},
			{Name: "friend_id", DataType: "int", IsPrimaryKey: true},
		}},
	}
	fks := []InputForeignKey{
		{
			ConstraintName: "fk_friends_employee",
			ChildSchema:    "dbo", ChildTable: "employee_friends", ChildColumns: []string{"employee_id"},
			ParentSchema: "dbo", ParentTable: "employees", ParentColumns: []string{"id"},
		},
		{
			ConstraintName: "fk_friends_friend",
			ChildSchema:    "dbo", ChildTable: "employee_friends", ChildColumns: []string{"friend_id"},
			ParentSchema: "dbo", ParentTable: "employees", ParentColumns: []string{"id"},
		},
	}
	return tables, fks
}

// TestSelfReferencingJunctionProducesExactlyOneEntry asserts the documented
// deviation from convention: a junction whose two FKs both
// reference the same table is permitted, and yields exactly one
// ManyToManyLink (not the two-entries-on-distinct-tables shape).
func TestSelfReferencingJunctionProducesExactlyOneEntry(t *testing.T) {
	tables, fks := selfReferencingJunctionTables()
	cat, err := New(tables, fks, nil, intType, nil)
	require.NoError(t, err)

	employees := cat.TableByDBName("dbo", "employees")
	require.NotNil(t, employees)
	assert.Len(t, employees.ManyToManyLinks, 1)
}

func TestUnknownMetadataKeyDoesNotFailLoad(t *testing.T) {
	tables, fks := usersPostsTables(), usersPostsFKs()
	sources := []MetadataSource{
		{Key: "dbo.users", Priority: 1, Values: map[string]interface{}{"totally-unknown-key": "x"}},
	}
	cat, err := New(tables, fks, sources, intType, nil)
	require.NoError(t, err)
	users := cat.TableByDBName("dbo", "users")
	assert.Equal(t, "x", users.Metadata["totally-unknown-key"])
}

func TestMetadataPriorityHigherWins(t *testing.T) {
	tables, fks := usersPostsTables(), usersPostsFKs()
	sources := []MetadataSource{
		{Key: "dbo.users", Priority: 1, Values: map[string]interface{}{"label": "low"}},
		{Key: "dbo.users", Priority: 5, Values: map[string]interface{}{"label": "high"}},
	}
	cat, err := New(tables, fks, sources, intType, nil)
	require.NoError(t, err)
	users := cat.TableByDBName("dbo", "users")
	assert.Equal(t, "high", users.Metadata["label"])
}

func TestMalformedManyToManyDirectiveFailsBuild(t *testing.T) {
	tables, fks := manyToManyTables()
	sources := []MetadataSource{
		{Key: "dbo.enrollments", Priority: 1, Values: map[string]interface{}{"many-to-many": "not-a-valid-spec"}},
	}
	_, err := New(tables, fks, sources, intType, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed many-to-many spec")
}
