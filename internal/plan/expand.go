package plan

import (
	"graphqlsql/internal/catalog"
	"graphqlsql/internal/compileerr"
	"graphqlsql/internal/dialect"
)

// Expand turns q's named relationship children (q.links, populated by
// Build) into explicit TableJoin descriptors on q.Joins, recursing into
// each join's connected sub-query. A many-to-many link expands into two
// chained joins through its junction table; the caller-requested alias is
// carried by the second (target-side) hop, and the junction hop is named
// after the junction table itself.
func Expand(q *GqlObjectQuery) error {
	for _, ref := range q.links {
		table := q.Table

		switch {
		case table.SingleLinks[ref.Name] != nil:
			link := table.SingleLinks[ref.Name]
			join := &TableJoin{
				Name:            ref.Name,
				Alias:           ref.Query.Alias,
				FromTable:       table,
				FromColumn:      link.ChildColumn,
				Connected:       ref.Query,
				ConnectedColumn: link.ParentColumn,
				Operator:        dialect.OpEq,
				Kind:            SingleSelection,
			}
			ref.Query.Kind = SingleSelection
			q.Joins = append(q.Joins, join)

		case table.MultiLinks[ref.Name] != nil:
			link := table.MultiLinks[ref.Name]
			join := &TableJoin{
				Name:            ref.Name,
				Alias:           ref.Query.Alias,
				FromTable:       table,
				FromColumn:      link.ParentColumn,
				Connected:       ref.Query,
				ConnectedColumn: link.ChildColumn,
				Operator:        dialect.OpEq,
				Kind:            JoinSelection,
			}
			ref.Query.Kind = JoinSelection
			q.Joins = append(q.Joins, join)

		case table.ManyToManyLinks[ref.Name] != nil:
			link := table.ManyToManyLinks[ref.Name]
			junctionAlias := link.JunctionTable.GraphQLName
			junctionQuery := &GqlObjectQuery{
				Table: link.JunctionTable,
				Alias: junctionAlias,
				Path:  q.Path + "." + ref.Name + "." + link.JunctionTable.DBName,
				Kind:  JoinSelection,
			}
			firstHop := &TableJoin{
				Name:            junctionAlias,
				Alias:           junctionAlias,
				FromTable:       table,
				FromColumn:      link.SourceColumn,
				Connected:       junctionQuery,
				ConnectedColumn: link.JunctionSourceColumn,
				Operator:        dialect.OpEq,
				Kind:            JoinSelection,
			}
			secondHop := &TableJoin{
				Name:            ref.Name,
				Alias:           ref.Query.Alias,
				FromTable:       link.JunctionTable,
				FromColumn:      link.JunctionTargetColumn,
				Connected:       ref.Query,
				ConnectedColumn: link.TargetColumn,
				Operator:        dialect.OpEq,
				Kind:            JoinSelection,
			}
			ref.Query.Kind = JoinSelection
			junctionQuery.Joins = append(junctionQuery.Joins, secondHop)
			q.Joins = append(q.Joins, firstHop)

		default:
			return &compileerr.SchemaLookupError{Field: ref.Name, Table: tableLabel(table), Message: "unknown join during expansion"}
		}
	}
	q.links = nil

	for _, join := range q.Joins {
		if err := Expand(join.Connected); err != nil {
			return err
		}
	}
	return nil
}

func tableLabel(t *catalog.Table) string {
	if t.GraphQLName != "" {
		return t.GraphQLName
	}
	return t.DBName
}
