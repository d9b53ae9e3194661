package plan

import (
	"fmt"
	"strings"

	"graphqlsql/internal/catalog"
	"graphqlsql/internal/compileerr"
	"graphqlsql/internal/dialect"
	"graphqlsql/internal/filter"
	"graphqlsql/internal/param"
)

// Compile walks an expanded Logical Query (Expand must already have run)
// and emits the flat, deterministically-keyed map of parameterized SQL
// statements described by the result-keying scheme: one main row set per
// selection, a paired count when IncludeResult, one sub-query per
// aggregate column, and one correlated sub-query per join.
func Compile(q *GqlObjectQuery, d dialect.Dialect) (map[string]ParameterizedSQL, error) {
	params := param.New(d.ParameterPrefix())
	out := make(map[string]ParameterizedSQL)
	if err := compileNode(q, nil, nil, d, params, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ancestorFrame is one level of the restriction chain above a node being
// compiled: the node itself, and the join that was used to reach it from
// its own parent (nil for the root, which has no incoming join).
type ancestorFrame struct {
	node     *GqlObjectQuery
	incoming *TableJoin
}

// compileNode emits q's own keyed statements and recurses into its
// joins, building each join's "<parent>-><child>" key along the way.
// incoming is the join used to reach q (nil at the root); ancestors is the
// restriction chain of every node above q, oldest first.
func compileNode(q *GqlObjectQuery, incoming *TableJoin, ancestors []ancestorFrame, d dialect.Dialect, params *param.Collection, out map[string]ParameterizedSQL) error {
	key := resultKey(q)
	if _, exists := out[key]; exists {
		return &compileerr.QueryShapeError{Field: key, Message: "duplicate result key"}
	}

	mainSQL, err := compileMainSelect(q, d, params)
	if err != nil {
		return compileerr.Wrap(key, q.Table.GraphQLName, err)
	}
	out[key] = mainSQL

	if q.IncludeResult {
		countSQL, err := compileCount(q, d, params)
		if err != nil {
			return compileerr.Wrap(key, q.Table.GraphQLName, err)
		}
		out[key+"=>count"] = countSQL
	}

	for _, agg := range q.AggregateColumns {
		aggSQL, err := compileAggregate(q, agg, d, params)
		if err != nil {
			return compileerr.Wrap(agg.ResultKey, q.Table.GraphQLName, err)
		}
		out[key+"=>agg_"+agg.ResultKey] = aggSQL
	}

	selfAncestors := append(append([]ancestorFrame{}, ancestors...), ancestorFrame{node: q, incoming: incoming})

	for _, join := range q.Joins {
		childKey := join.Alias
		if childKey == "" {
			childKey = join.Name
		}
		joinSQL, err := compileJoin(q, incoming, ancestors, join, d, params)
		if err != nil {
			return compileerr.Wrap(childKey, join.Connected.Table.GraphQLName, err)
		}
		out[key+"->"+childKey] = joinSQL

		if err := compileNode(join.Connected, join, selfAncestors, d, params, out); err != nil {
			return err
		}
	}

	return nil
}

func resultKey(q *GqlObjectQuery) string {
	if q.Alias != "" {
		return q.Alias
	}
	return q.Table.QueryFieldName
}

// fullColumnNames is the union of a selection's own scalar columns and
// every child join's correlation column (needed to carry the join key
// forward), de-duplicated by database name, scalar columns first.
func fullColumnNames(q *GqlObjectQuery) []*catalog.Column {
	seen := make(map[string]bool)
	var out []*catalog.Column
	for _, name := range q.ScalarColumns {
		col := q.Table.ColumnByGraphQLName(name)
		if col == nil || seen[col.DBName] {
			continue
		}
		seen[col.DBName] = true
		out = append(out, col)
	}
	for _, join := range q.Joins {
		if join.FromColumn == nil || seen[join.FromColumn.DBName] {
			continue
		}
		seen[join.FromColumn.DBName] = true
		out = append(out, join.FromColumn)
	}
	return out
}

func renderColumnList(columns []*catalog.Column, d dialect.Dialect, withAs bool, tableAlias string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		dbIdent := d.EscapeIdentifier(col.DBName)
		if tableAlias != "" {
			dbIdent = d.EscapeIdentifier(tableAlias) + "." + dbIdent
		}
		gqlIdent := d.EscapeIdentifier(col.GraphQLName)
		if withAs {
			parts[i] = dbIdent + " AS " + gqlIdent
		} else {
			parts[i] = dbIdent + " " + gqlIdent
		}
	}
	return strings.Join(parts, ",")
}

func sortClauses(q *GqlObjectQuery, d dialect.Dialect, tableOrAlias string) ([]string, error) {
	var out []string
	for _, s := range q.Sort {
		col := q.Table.ColumnByGraphQLName(s.Column)
		if col == nil {
			return nil, &compileerr.SchemaLookupError{Field: s.Column, Table: q.Table.GraphQLName, Message: "no such column to sort by"}
		}
		direction := "ASC"
		if s.Desc {
			direction = "DESC"
		}
		out = append(out, d.EscapeIdentifier(tableOrAlias)+"."+d.EscapeIdentifier(col.DBName)+" "+direction)
	}
	return out, nil
}

func compileMainSelect(q *GqlObjectQuery, d dialect.Dialect, params *param.Collection) (ParameterizedSQL, error) {
	start := params.Len()

	columns := fullColumnNames(q)
	colsSQL := renderColumnList(columns, d, false, "")
	tableRef := d.TableReference(q.Table.Schema, q.Table.DBName)

	filterCompiled, err := filter.Compile(q.Filter, q.Table, q.Table.DBName, d, params)
	if err != nil {
		return ParameterizedSQL{}, err
	}

	sorts, err := sortClauses(q, d, q.Table.DBName)
	if err != nil {
		return ParameterizedSQL{}, err
	}

	text := fmt.Sprintf("SELECT %s FROM %s", colsSQL, tableRef)
	if !filterCompiled.Empty {
		text += " WHERE " + filterCompiled.SQL
	}
	text += " " + d.Pagination(sorts, dialect.NormalizeOffset(q.Offset), dialect.NormalizeLimit(q.Limit))

	return ParameterizedSQL{Text: text, Params: params.Params()[start:]}, nil
}

func compileCount(q *GqlObjectQuery, d dialect.Dialect, params *param.Collection) (ParameterizedSQL, error) {
	start := params.Len()

	tableRef := d.TableReference(q.Table.Schema, q.Table.DBName)
	filterCompiled, err := filter.Compile(q.Filter, q.Table, q.Table.DBName, d, params)
	if err != nil {
		return ParameterizedSQL{}, err
	}

	text := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableRef)
	if !filterCompiled.Empty {
		text += " WHERE " + filterCompiled.SQL
	}

	return ParameterizedSQL{Text: text, Params: params.Params()[start:]}, nil
}

// aggHop is one resolved step of an aggregate's link chain: the table the
// hop lands on, the column on the current/src side that must match, and
// the column on the landed-on table it is matched against.
type aggHop struct {
	nextTable   *catalog.Table
	matchColumn *catalog.Column
	joinColumn  *catalog.Column
}

func resolveAggregateHop(current *catalog.Table, name string) (aggHop, error) {
	_, isSingle := current.SingleLinks[name]
	_, isMulti := current.MultiLinks[name]
	if isSingle && isMulti {
		return aggHop{}, &compileerr.SchemaLookupError{Field: name, Table: current.GraphQLName, Message: "ambiguous link name in aggregate chain (both single and multi)"}
	}
	if isSingle {
		link := current.SingleLinks[name]
		return aggHop{nextTable: link.ParentTable, matchColumn: link.ChildColumn, joinColumn: link.ParentColumn}, nil
	}
	if isMulti {
		link := current.MultiLinks[name]
		return aggHop{nextTable: link.ChildTable, matchColumn: link.ParentColumn, joinColumn: link.ChildColumn}, nil
	}
	return aggHop{}, &compileerr.SchemaLookupError{Field: name, Table: current.GraphQLName, Message: "no such link in aggregate chain"}
}

func aggregateFunction(op AggregateOp) string {
	switch op {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMax:
		return "MAX"
	case AggMin:
		return "MIN"
	default:
		return "COUNT"
	}
}

// compileAggregate builds the nested hop-chain SQL for one `_agg` column:
// a base selection of (srcId, joinId) from the driving table under Q's
// filter, one inner join per hop re-projecting (srcId, joinId) for every
// intermediate hop, and a final GROUP BY srcId projecting the aggregate
// function over the terminal column.
func compileAggregate(q *GqlObjectQuery, agg *AggregateColumn, d dialect.Dialect, params *param.Collection) (ParameterizedSQL, error) {
	start := params.Len()

	if len(q.Table.KeyColumns) != 1 {
		return ParameterizedSQL{}, &compileerr.UnsupportedFeatureError{Feature: "aggregate chain over a composite primary key", Dialect: d.Name()}
	}
	pk := q.Table.KeyColumns[0]
	tableRef := d.TableReference(q.Table.Schema, q.Table.DBName)

	filterCompiled, err := filter.Compile(q.Filter, q.Table, q.Table.DBName, d, params)
	if err != nil {
		return ParameterizedSQL{}, err
	}

	currentTable := q.Table
	initialJoinColumn := pk
	if len(agg.Hops) > 0 {
		hop0, err := resolveAggregateHop(currentTable, agg.Hops[0])
		if err != nil {
			return ParameterizedSQL{}, err
		}
		initialJoinColumn = hop0.matchColumn
	}

	base := fmt.Sprintf("SELECT %s AS srcId, %s AS joinId FROM %s", d.EscapeIdentifier(pk.DBName), d.EscapeIdentifier(initialJoinColumn.DBName), tableRef)
	if !filterCompiled.Empty {
		base += " WHERE " + filterCompiled.SQL
	}

	if len(agg.Hops) == 0 {
		col := currentTable.ColumnByGraphQLName(agg.Column)
		if col == nil {
			return ParameterizedSQL{}, &compileerr.SchemaLookupError{Field: agg.Column, Table: currentTable.GraphQLName, Message: "no such column for aggregate"}
		}
		text := fmt.Sprintf(
			"SELECT src.srcId AS srcId, %s(next.%s) AS %s FROM (%s) AS src INNER JOIN %s AS next ON src.joinId = next.%s GROUP BY src.srcId",
			aggregateFunction(agg.Op), d.EscapeIdentifier(col.DBName), d.EscapeIdentifier(agg.ResultKey), base, tableRef, d.EscapeIdentifier(pk.DBName),
		)
		return ParameterizedSQL{Text: text, Params: params.Params()[start:]}, nil
	}

	for i, hopName := range agg.Hops {
		hop, err := resolveAggregateHop(currentTable, hopName)
		if err != nil {
			return ParameterizedSQL{}, err
		}
		nextRef := d.TableReference(hop.nextTable.Schema, hop.nextTable.DBName)
		isLast := i == len(agg.Hops)-1

		if !isLast {
			nextHop, err := resolveAggregateHop(hop.nextTable, agg.Hops[i+1])
			if err != nil {
				return ParameterizedSQL{}, err
			}
			base = fmt.Sprintf(
				"SELECT src.srcId AS srcId, next.%s AS joinId FROM (%s) AS src INNER JOIN %s AS next ON src.joinId = next.%s",
				d.EscapeIdentifier(nextHop.matchColumn.DBName), base, nextRef, d.EscapeIdentifier(hop.joinColumn.DBName),
			)
		} else {
			col := hop.nextTable.ColumnByGraphQLName(agg.Column)
			if col == nil {
				return ParameterizedSQL{}, &compileerr.SchemaLookupError{Field: agg.Column, Table: hop.nextTable.GraphQLName, Message: "no such column for aggregate"}
			}
			base = fmt.Sprintf(
				"SELECT src.srcId AS srcId, %s(next.%s) AS %s FROM (%s) AS src INNER JOIN %s AS next ON src.joinId = next.%s GROUP BY src.srcId",
				aggregateFunction(agg.Op), d.EscapeIdentifier(col.DBName), d.EscapeIdentifier(agg.ResultKey), base, nextRef, d.EscapeIdentifier(hop.joinColumn.DBName),
			)
		}
		currentTable = hop.nextTable
	}

	return ParameterizedSQL{Text: base, Params: params.Params()[start:]}, nil
}

// buildRestrictedIds compiles the restricted id set R for node, projecting
// idColumn AS JoinId: rows of node's own table filtered by node.Filter, and
// when node itself was reached through an ancestor join (incoming != nil)
// also inner-joined against the ancestor's own restricted id set — recursing
// all the way to the root. This is what makes pagination on a 3+-level
// nested join reflect every ancestor's filter, not just the immediate
// parent's: a grandchild row is only ever a candidate if it survives the
// grandparent's WHERE too.
func buildRestrictedIds(idColumn *catalog.Column, node *GqlObjectQuery, incoming *TableJoin, ancestors []ancestorFrame, d dialect.Dialect, params *param.Collection) (string, error) {
	tableRef := d.TableReference(node.Table.Schema, node.Table.DBName)

	if incoming == nil {
		filterCompiled, err := filter.Compile(node.Filter, node.Table, node.Table.DBName, d, params)
		if err != nil {
			return "", err
		}
		r := fmt.Sprintf("SELECT DISTINCT %s AS %s FROM %s", d.EscapeIdentifier(idColumn.DBName), d.EscapeIdentifier("JoinId"), tableRef)
		if !filterCompiled.Empty {
			r += " WHERE " + filterCompiled.SQL
		}
		return r, nil
	}

	parentFrame := ancestors[len(ancestors)-1]
	parentAncestors := ancestors[:len(ancestors)-1]
	parentR, err := buildRestrictedIds(incoming.FromColumn, parentFrame.node, parentFrame.incoming, parentAncestors, d, params)
	if err != nil {
		return "", err
	}

	filterCompiled, err := filter.Compile(node.Filter, node.Table, "b", d, params)
	if err != nil {
		return "", err
	}

	op := d.GetOperator(incoming.Operator)
	r := fmt.Sprintf(
		"SELECT DISTINCT b.%s AS %s FROM (%s) a INNER JOIN %s b ON a.%s %s b.%s",
		d.EscapeIdentifier(idColumn.DBName), d.EscapeIdentifier("JoinId"), parentR, tableRef,
		d.EscapeIdentifier("JoinId"), op, d.EscapeIdentifier(incoming.ConnectedColumn.DBName),
	)
	if !filterCompiled.Empty {
		r += " WHERE " + filterCompiled.SQL
	}
	return r, nil
}

// compileJoin builds one join's correlated sub-query: a restricted
// parent id set R carrying the parent's own filter and, recursively, every
// ancestor's filter above it, wrapped in an inner join to the connected
// table, with C's own filter/sort/pagination appended unless the join is
// single-valued.
func compileJoin(parent *GqlObjectQuery, parentIncoming *TableJoin, ancestors []ancestorFrame, join *TableJoin, d dialect.Dialect, params *param.Collection) (ParameterizedSQL, error) {
	start := params.Len()

	r, err := buildRestrictedIds(join.FromColumn, parent, parentIncoming, ancestors, d, params)
	if err != nil {
		return ParameterizedSQL{}, err
	}

	connectedRef := d.TableReference(join.Connected.Table.Schema, join.Connected.Table.DBName)
	op := d.GetOperator(join.Operator)
	columns := fullColumnNames(join.Connected)
	colsSQL := renderColumnList(columns, d, true, "b")

	text := fmt.Sprintf(
		"SELECT a.%s AS %s, %s FROM (%s) a INNER JOIN %s b ON a.%s %s b.%s",
		d.EscapeIdentifier("JoinId"), d.EscapeIdentifier("src_id"), colsSQL, r, connectedRef,
		d.EscapeIdentifier("JoinId"), op, d.EscapeIdentifier(join.ConnectedColumn.DBName),
	)

	if join.Kind != SingleSelection {
		childFilterCompiled, err := filter.Compile(join.Connected.Filter, join.Connected.Table, "b", d, params)
		if err != nil {
			return ParameterizedSQL{}, err
		}
		if !childFilterCompiled.Empty {
			text += " WHERE " + childFilterCompiled.SQL
		}
		sorts, err := sortClauses(join.Connected, d, "b")
		if err != nil {
			return ParameterizedSQL{}, err
		}
		text += " " + d.Pagination(sorts, dialect.NormalizeOffset(join.Connected.Offset), dialect.NormalizeLimit(join.Connected.Limit))
	}

	return ParameterizedSQL{Text: text, Params: params.Params()[start:]}, nil
}
