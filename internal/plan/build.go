package plan

import (
	"sort"
	"strings"

	"graphqlsql/internal/catalog"
	"graphqlsql/internal/compileerr"
	"graphqlsql/internal/dialect"
	"graphqlsql/internal/filter"
	"graphqlsql/internal/intent"
)

// Build compiles a Query-Intent Tree root into a Logical Query bound
// against cat. root must be a top-level field whose name is a table's
// root query field name.
func Build(root *intent.QueryField, cat *catalog.Catalog) (*GqlObjectQuery, error) {
	table := cat.TableByQueryFieldName(root.Name)
	if table == nil {
		return nil, &compileerr.SchemaLookupError{Field: root.Name, Table: "Query", Message: "no table exposed under this query field"}
	}
	return buildForTable(root, table, root.FieldName())
}

// buildForTable compiles one intent node's selection against table,
// recursing into its link and aggregate children.
func buildForTable(node *intent.QueryField, table *catalog.Table, path string) (*GqlObjectQuery, error) {
	q := &GqlObjectQuery{
		Table:         table,
		Alias:         node.FieldName(),
		Path:          path,
		Kind:          Standard,
		IncludeResult: node.IncludeResult,
	}

	filterNode, err := parseFilterArgument(table, node.Arguments["filter"])
	if err != nil {
		return nil, err
	}
	pkNode, err := parsePrimaryKeyArgument(table, node.Arguments["_primaryKey"])
	if err != nil {
		return nil, err
	}
	q.Filter = combineAnd(filterNode, pkNode)

	sortCols, err := parseSortArgument(table, node.Arguments["sort"])
	if err != nil {
		return nil, err
	}
	q.Sort = sortCols

	q.Limit = parseIntArgument(node.Arguments["limit"])
	q.Offset = parseIntArgument(node.Arguments["offset"])

	for _, child := range node.Fields {
		switch child.Kind {
		case intent.System:
			continue
		case intent.Aggregate:
			agg, err := parseAggregateField(table, child)
			if err != nil {
				return nil, err
			}
			q.AggregateColumns = append(q.AggregateColumns, agg)
		case intent.ExplicitJoin, intent.ExplicitSingle:
			if err := addLinkChild(q, table, child, child.LinkName, path); err != nil {
				return nil, err
			}
		default:
			if col := table.ColumnByGraphQLName(child.Name); col != nil {
				q.ScalarColumns = append(q.ScalarColumns, col.GraphQLName)
				continue
			}
			if err := addLinkChild(q, table, child, child.Name, path); err != nil {
				return nil, err
			}
		}
	}

	return q, nil
}

// addLinkChild resolves linkName on table (single, multi, or M:N) and
// recursively builds the Logical Query for the child's own selection,
// recording it in q.links for the Join Expander to consume.
func addLinkChild(q *GqlObjectQuery, table *catalog.Table, child *intent.QueryField, linkName, parentPath string) error {
	childPath := parentPath + "." + child.FieldName()

	var targetTable *catalog.Table
	switch {
	case table.SingleLinks[linkName] != nil:
		targetTable = table.SingleLinks[linkName].ParentTable
	case table.MultiLinks[linkName] != nil:
		targetTable = table.MultiLinks[linkName].ChildTable
	case table.ManyToManyLinks[linkName] != nil:
		targetTable = table.ManyToManyLinks[linkName].TargetTable
	default:
		return &compileerr.SchemaLookupError{Field: linkName, Table: table.GraphQLName, Message: "unknown join"}
	}

	childQuery, err := buildForTable(child, targetTable, childPath)
	if err != nil {
		return err
	}
	q.links = append(q.links, linkRef{Name: linkName, Query: childQuery})
	return nil
}

func combineAnd(nodes ...*filter.Node) *filter.Node {
	var present []*filter.Node
	for _, n := range nodes {
		if n != nil {
			present = append(present, n)
		}
	}
	switch len(present) {
	case 0:
		return nil
	case 1:
		return present[0]
	default:
		return filter.And(present...)
	}
}

func parsePrimaryKeyArgument(table *catalog.Table, raw interface{}) (*filter.Node, error) {
	if raw == nil {
		return nil, nil
	}
	values, ok := raw.([]interface{})
	if !ok {
		return nil, &compileerr.QueryShapeError{Field: "_primaryKey", Message: "_primaryKey requires a list of values"}
	}
	if len(values) != len(table.KeyColumns) {
		return nil, &compileerr.QueryShapeError{Field: "_primaryKey", Message: "_primaryKey value count does not match the table's key column count"}
	}
	var nodes []*filter.Node
	for i, col := range table.KeyColumns {
		nodes = append(nodes, filter.Relation(col.GraphQLName, dialect.OpEq, values[i]))
	}
	return combineAnd(nodes...), nil
}

// parseFilterArgument parses the `filter` argument's wire object into a
// filter.Node tree: {col: {_op: v}}, {col: {subcol: {_op: v}}} (a
// join-walk through the single-link named col), and {and: [...]}/{or:
// [...]} combinators.
func parseFilterArgument(table *catalog.Table, raw interface{}) (*filter.Node, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &compileerr.QueryShapeError{Field: "filter", Message: "filter must be an object"}
	}
	return parseFilterMap(table, m)
}

func parseFilterMap(table *catalog.Table, m map[string]interface{}) (*filter.Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var nodes []*filter.Node
	for _, key := range keys {
		val := m[key]
		switch key {
		case "and", "or":
			list, ok := val.([]interface{})
			if !ok {
				return nil, &compileerr.QueryShapeError{Field: key, Message: key + " requires a list of filter objects"}
			}
			var children []*filter.Node
			for _, item := range list {
				sub, ok := item.(map[string]interface{})
				if !ok {
					return nil, &compileerr.QueryShapeError{Field: key, Message: key + " entries must be filter objects"}
				}
				child, err := parseFilterMap(table, sub)
				if err != nil {
					return nil, err
				}
				if child != nil {
					children = append(children, child)
				}
			}
			if key == "and" {
				nodes = append(nodes, filter.And(children...))
			} else {
				nodes = append(nodes, filter.Or(children...))
			}
		default:
			sub, ok := val.(map[string]interface{})
			if !ok {
				return nil, &compileerr.QueryShapeError{Field: key, Message: "filter value must be an object"}
			}
			node, err := parseColumnOrLinkFilter(table, key, sub)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}
	return combineAnd(nodes...), nil
}

// parseColumnOrLinkFilter decides whether key names a terminal column
// (every key in sub is a wire operator) or a single-ended link to walk
// through (sub's keys name further columns/links on the parent table).
func parseColumnOrLinkFilter(table *catalog.Table, key string, sub map[string]interface{}) (*filter.Node, error) {
	allOperators := len(sub) > 0
	for k := range sub {
		if _, ok := dialect.ParseOperator(k); !ok {
			allOperators = false
			break
		}
	}

	if allOperators {
		opKeys := make([]string, 0, len(sub))
		for k := range sub {
			opKeys = append(opKeys, k)
		}
		sort.Strings(opKeys)

		var nodes []*filter.Node
		for _, opKey := range opKeys {
			op, _ := dialect.ParseOperator(opKey)
			value := unwrapFieldRef(sub[opKey])
			nodes = append(nodes, filter.Relation(key, op, value))
		}
		return combineAnd(nodes...), nil
	}

	link, ok := table.SingleLinks[key]
	if !ok {
		return nil, &compileerr.SchemaLookupError{Field: key, Table: table.GraphQLName, Message: "no such single-ended link for filter traversal"}
	}
	next, err := parseFilterMap(link.ParentTable, sub)
	if err != nil {
		return nil, err
	}
	return filter.JoinWalk(key, next), nil
}

// unwrapFieldRef recognizes the {_field: "columnName"} wire shape marking
// a value as a reference to another column rather than a literal.
func unwrapFieldRef(value interface{}) interface{} {
	m, ok := value.(map[string]interface{})
	if !ok || len(m) != 1 {
		return value
	}
	col, ok := m["_field"].(string)
	if !ok {
		return value
	}
	return filter.FieldRef{Column: col}
}

func parseSortArgument(table *catalog.Table, raw interface{}) ([]SortColumn, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &compileerr.QueryShapeError{Field: "sort", Message: "sort requires a list of strings"}
	}
	var out []SortColumn
	for _, item := range list {
		token, ok := item.(string)
		if !ok {
			return nil, &compileerr.QueryShapeError{Field: "sort", Message: "sort entries must be strings"}
		}
		switch {
		case hasSuffixFold(token, "_asc"):
			out = append(out, SortColumn{Column: token[:len(token)-len("_asc")], Desc: false})
		case hasSuffixFold(token, "_desc"):
			out = append(out, SortColumn{Column: token[:len(token)-len("_desc")], Desc: true})
		default:
			return nil, &compileerr.QueryShapeError{Field: "sort", Message: "sort token " + token + " is missing an _asc/_desc suffix"}
		}
	}
	for _, s := range out {
		if table.ColumnByGraphQLName(s.Column) == nil {
			return nil, &compileerr.SchemaLookupError{Field: s.Column, Table: table.GraphQLName, Message: "no such column to sort by"}
		}
	}
	return out, nil
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	return strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func parseIntArgument(raw interface{}) *int {
	switch v := raw.(type) {
	case int64:
		n := int(v)
		return &n
	case int:
		return &v
	default:
		return nil
	}
}

func parseAggregateField(table *catalog.Table, field *intent.QueryField) (*AggregateColumn, error) {
	opRaw, _ := field.Arguments["operation"].(string)
	op, ok := parseAggregateOp(opRaw)
	if !ok {
		return nil, &compileerr.QueryShapeError{Field: field.FieldName(), Message: "aggregate requires an operation of SUM, AVG, COUNT, MAX, or MIN"}
	}

	valueRaw, ok := field.Arguments["value"]
	if !ok {
		return nil, &compileerr.QueryShapeError{Field: field.FieldName(), Message: "aggregate requires a value argument"}
	}
	hops, column, err := parseAggregateValue(table, valueRaw)
	if err != nil {
		return nil, err
	}

	return &AggregateColumn{
		ResultKey: field.FieldName(),
		Hops:      hops,
		Column:    column,
		Op:        op,
	}, nil
}

func parseAggregateOp(s string) (AggregateOp, bool) {
	switch s {
	case "COUNT":
		return AggCount, true
	case "SUM":
		return AggSum, true
	case "AVG":
		return AggAvg, true
	case "MAX":
		return AggMax, true
	case "MIN":
		return AggMin, true
	default:
		return 0, false
	}
}

func parseAggregateValue(table *catalog.Table, raw interface{}) ([]string, string, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, "", &compileerr.QueryShapeError{Field: "value", Message: "aggregate value must be an object"}
	}
	if colRaw, ok := m["column"]; ok {
		colName, ok := colRaw.(string)
		if !ok {
			return nil, "", &compileerr.QueryShapeError{Field: "value", Message: "aggregate column must be a string"}
		}
		if table.ColumnByGraphQLName(colName) == nil {
			return nil, "", &compileerr.SchemaLookupError{Field: colName, Table: table.GraphQLName, Message: "no such column for aggregate"}
		}
		return nil, colName, nil
	}
	if len(m) != 1 {
		return nil, "", &compileerr.QueryShapeError{Field: "value", Message: "aggregate value must name exactly one link or a terminal column"}
	}
	for linkName, nested := range m {
		next, err := resolveLinkTable(table, linkName)
		if err != nil {
			return nil, "", err
		}
		hops, col, err := parseAggregateValue(next, nested)
		if err != nil {
			return nil, "", err
		}
		return append([]string{linkName}, hops...), col, nil
	}
	return nil, "", &compileerr.QueryShapeError{Field: "value", Message: "empty aggregate value"}
}

func resolveLinkTable(table *catalog.Table, name string) (*catalog.Table, error) {
	if link, ok := table.SingleLinks[name]; ok {
		return link.ParentTable, nil
	}
	if link, ok := table.MultiLinks[name]; ok {
		return link.ChildTable, nil
	}
	return nil, &compileerr.SchemaLookupError{Field: name, Table: table.GraphQLName, Message: "no such link for aggregate chain"}
}
