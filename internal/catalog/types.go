// Package catalog builds the in-memory relational model the rest of the
// compiler is bound against: tables, columns, keys, and the derived
// single/multi/many-to-many link graph. A Catalog is
// built once from an introspection result and treated as immutable for
// the remainder of the process; every map it exposes is read-only once
// New returns.
package catalog

import "graphqlsql/internal/sqltype"

// InputColumn is one column as reported by the introspection collaborator.
type InputColumn struct {
	Name         string
	DataType     string // raw DBMS type, e.g. "varchar(255)"; fed through a TypeMapper
	IsNullable   bool
	IsPrimaryKey bool
	IsIdentity   bool
}

// InputTable is one table as reported by the introspection collaborator.
type InputTable struct {
	Schema  string
	Name    string
	Columns []InputColumn
}

// InputForeignKey is one single- or multi-column foreign key constraint.
// Composite (multi-column) foreign keys are recorded but ignored for link
// synthesis; only len(ChildColumns) == 1 entries produce Single/MultiLinks.
type InputForeignKey struct {
	ConstraintName string
	ChildSchema    string
	ChildTable     string
	ChildColumns   []string
	ParentSchema   string
	ParentTable    string
	ParentColumns  []string
}

// TypeMapper maps a DBMS column type string to the Catalog's coarse
// family. Dialect-specific type catalogs pass their own mapper; sqltype.Map
// is the default.
type TypeMapper func(dataType string) sqltype.Family

// MetadataSource is one named source of table/column metadata, merged by
// Priority (higher wins). Key is "schema.table" or ":root" for model-wide
// directives; Priority ties are broken by source-list order (later wins).
type MetadataSource struct {
	Key      string
	Priority int
	Values   map[string]interface{}
}

// tableKey identifies a table by its (schema, dbName) identity — the
// Catalog invariant that every table is reachable by exactly one such key.
type tableKey struct {
	Schema string
	Name   string
}

// Column is a Catalog-bound column belonging to exactly one Table.
type Column struct {
	DBName       string
	GraphQLName  string
	Type         sqltype.Family
	Nullable     bool
	Identity     bool
	PrimaryKey   bool
	Metadata     map[string]interface{}
	table        *Table
}

// Table returns the owning table.
func (c *Column) Table() *Table { return c.table }

// SingleLink is a child→parent relationship where the owning table is the
// foreign-key side.
type SingleLink struct {
	Name         string
	ParentTable  *Table
	ParentColumn *Column
	ChildColumn  *Column
}

// MultiLink is a parent→child relationship: the inverse of a SingleLink
// viewed from the parent side.
type MultiLink struct {
	Name         string
	ChildTable   *Table
	ChildColumn  *Column
	ParentColumn *Column
}

// ManyToManyLink is a parent↔target relationship mediated by a junction
// table.
type ManyToManyLink struct {
	Name                 string
	SourceColumn         *Column
	JunctionTable        *Table
	JunctionSourceColumn *Column
	JunctionTargetColumn *Column
	TargetTable          *Table
	TargetColumn         *Column
}

// Table is a Catalog-bound table: columns, keys, and the derived
// single/multi/many-to-many links reachable from it.
type Table struct {
	Schema      string
	DBName      string
	GraphQLName string
	// QueryFieldName is the camelCase field name this table is exposed
	// under on the root Query type, e.g. "users" for type "Users".
	QueryFieldName string

	Columns []*Column
	// KeyColumns is the ordered primary-key column set, used for
	// _primaryKey argument binding.
	KeyColumns []*Column

	SingleLinks     map[string]*SingleLink
	MultiLinks      map[string]*MultiLink
	ManyToManyLinks map[string]*ManyToManyLink

	Metadata map[string]interface{}

	columnsByDBName      map[string]*Column
	columnsByGraphQLName map[string]*Column
}

// ColumnByDBName looks up a column by its database name. Lookups are
// case-sensitive.
func (t *Table) ColumnByDBName(name string) *Column {
	return t.columnsByDBName[name]
}

// ColumnByGraphQLName looks up a column by its GraphQL field name.
func (t *Table) ColumnByGraphQLName(name string) *Column {
	return t.columnsByGraphQLName[name]
}

// Catalog is the immutable relational model the rest of the compiler is
// bound against.
type Catalog struct {
	tables       map[tableKey]*Table
	order        []tableKey
	byGQLName    map[string]*Table
	byQueryField map[string]*Table
	rootMeta     map[string]interface{}
}

// Tables returns the tables in construction order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, len(c.order))
	for i, k := range c.order {
		out[i] = c.tables[k]
	}
	return out
}

// TableByDBName looks up a table by (schema, dbName) identity.
func (c *Catalog) TableByDBName(schema, name string) *Table {
	return c.tables[tableKey{Schema: schema, Name: name}]
}

// TableByGraphQLName looks up a table by its exposed GraphQL type name.
func (c *Catalog) TableByGraphQLName(name string) *Table {
	return c.byGQLName[name]
}

// TableByQueryFieldName looks up a table by its root Query field name.
func (c *Catalog) TableByQueryFieldName(name string) *Table {
	return c.byQueryField[name]
}

// RootMetadata returns the model-wide (":root") metadata directives.
func (c *Catalog) RootMetadata() map[string]interface{} {
	return c.rootMeta
}
