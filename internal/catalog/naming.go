package catalog

import (
	"strings"

	"github.com/jinzhu/inflection"

	"graphqlsql/internal/compileerr"
)

// casingFormat selects how a schema prefix is fused with a table name
// before the general PascalCase/camelCase pass.
type casingFormat int

const (
	casingUnderscore casingFormat = iota
	casingCamel
)

// namer owns every name-transformation rule used while building the
// Catalog, and the collision bookkeeping that makes duplicate-name
// detection deterministic across a single build.
type namer struct {
	seenTypes   map[string]string // graphql type name -> source table key
	seenFields  map[string]map[string]string
	seenQueries map[string]string
}

func newNamer() *namer {
	return &namer{
		seenTypes:   make(map[string]string),
		seenFields:  make(map[string]map[string]string),
		seenQueries: make(map[string]string),
	}
}

func pluralize(word string) string   { return inflection.Plural(word) }
func singularize(word string) string { return inflection.Singular(word) }

func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// tableDBFieldName fuses a non-default schema prefix onto a table's
// database name before casing, per schema-prefix/-format metadata.
func tableDBFieldName(schema, name string, prefixEnabled bool, format casingFormat) string {
	if !prefixEnabled || schema == "" {
		return name
	}
	if format == casingCamel {
		return schema + strings.ToUpper(name[:1]) + name[1:]
	}
	return schema + "_" + name
}

func (n *namer) graphQLTypeName(dbFieldName, tableKeyStr string) (string, *compileerr.ConfigurationError) {
	name := toPascalCase(dbFieldName)
	if isReservedTypeName(name) {
		name += "_"
	}
	if existing, ok := n.seenTypes[name]; ok && existing != tableKeyStr {
		return "", &compileerr.ConfigurationError{Table: tableKeyStr, Message: "duplicate GraphQL type name " + name + " also produced by " + existing}
	}
	n.seenTypes[name] = tableKeyStr
	return name, nil
}

func (n *namer) graphQLQueryFieldName(dbFieldName, tableKeyStr string) (string, *compileerr.ConfigurationError) {
	name := toCamelCase(dbFieldName)
	if isReservedFieldName(name) {
		name += "_"
	}
	if existing, ok := n.seenQueries[name]; ok && existing != tableKeyStr {
		return "", &compileerr.ConfigurationError{Table: tableKeyStr, Message: "duplicate GraphQL query field name " + name + " also produced by " + existing}
	}
	n.seenQueries[name] = tableKeyStr
	return name, nil
}

func (n *namer) columnFieldName(typeName, columnName string) string {
	name := toCamelCase(columnName)
	if isReservedFieldName(name) {
		name += "_"
	}
	if n.seenFields[typeName] == nil {
		n.seenFields[typeName] = make(map[string]string)
	}
	n.seenFields[typeName][name] = "column:" + columnName
	return name
}

func (n *namer) fieldExists(typeName, fieldName string) bool {
	if fields, ok := n.seenFields[typeName]; ok {
		_, ok := fields[fieldName]
		return ok
	}
	return false
}

// relationshipFieldName resolves a candidate relationship field name
// against existing column/relationship fields on typeName. Columns always
// win precedence: a relationship field colliding with an already-taken
// name gets a deterministic Ref (many-to-one) or Rel (otherwise) suffix;
// if that is *still* taken, the build fails with a ConfigurationError
// rather than silently suffixing further.
func (n *namer) relationshipFieldName(typeName, candidate, source string, isManyToOne bool) (string, *compileerr.ConfigurationError) {
	name := candidate
	if isReservedFieldName(name) {
		name += "_"
	}
	if n.fieldExists(typeName, name) {
		if isManyToOne {
			name += "Ref"
		} else {
			name += "Rel"
		}
	}
	if n.fieldExists(typeName, name) {
		return "", &compileerr.ConfigurationError{Table: typeName, Message: "duplicate link name " + name + " after normalization"}
	}
	if n.seenFields[typeName] == nil {
		n.seenFields[typeName] = make(map[string]string)
	}
	n.seenFields[typeName][name] = source
	return name, nil
}

// manyToManyFieldName resolves a pure-junction field name, applying Via
// disambiguation before falling back to a hard ConfigurationError.
func (n *namer) manyToManyFieldName(typeName, targetTable, junctionTable string) (string, *compileerr.ConfigurationError) {
	name := pluralize(toCamelCase(targetTable))
	if n.fieldExists(typeName, name) {
		name += "Via" + toPascalCase(junctionTable)
	}
	if n.fieldExists(typeName, name) {
		return "", &compileerr.ConfigurationError{Table: typeName, Message: "duplicate many-to-many field name " + name}
	}
	if n.seenFields[typeName] == nil {
		n.seenFields[typeName] = make(map[string]string)
	}
	n.seenFields[typeName][name] = "m2m:" + junctionTable + "->" + targetTable
	return name, nil
}

// manyToOneFieldName derives a many-to-one relationship field from an FK
// column name, stripping common _id/_fk suffixes.
// Example: "author_id" -> "author", "created_by_user_id" -> "createdByUser".
func manyToOneFieldName(fkColumn string) string {
	name := fkColumn
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return toCamelCase(name)
}

// oneToManyFieldName derives a one-to-many relationship field. When the
// child table has only one FK to the parent, the pluralized table name is
// used bare; otherwise the FK column name disambiguates.
func oneToManyFieldName(childTable, fkColumn string, isOnlyFK bool) string {
	plural := pluralize(toCamelCase(childTable))
	if isOnlyFK {
		return plural
	}
	prefix := manyToOneFieldName(fkColumn)
	if len(plural) == 0 {
		return prefix
	}
	return prefix + strings.ToUpper(plural[:1]) + plural[1:]
}

var graphqlReservedTypeWords = map[string]bool{
	"query": true, "mutation": true, "subscription": true, "type": true,
	"schema": true, "scalar": true, "enum": true, "input": true,
	"interface": true, "union": true, "fragment": true, "directive": true,
	"extend": true, "implements": true, "on": true,
	"int": true, "float": true, "string": true, "boolean": true, "id": true,
	"true": true, "false": true, "null": true,
}

func isReservedPattern(name string) bool {
	return strings.HasSuffix(name, "_aggregate")
}

func isReservedTypeName(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "__") {
		return true
	}
	return graphqlReservedTypeWords[lower] || isReservedPattern(lower)
}

func isReservedFieldName(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "__") {
		return true
	}
	return isReservedPattern(lower)
}
