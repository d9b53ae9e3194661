package catalog

import (
	"fmt"
	"log/slog"

	"graphqlsql/internal/sqltype"
)

// New builds an immutable Catalog from an introspected table/column list, a
// foreign-key list, and metadata sources, following the five
// construction steps. logger may be nil; when non-nil, it receives a
// warning for every unknown metadata key and one warning counting the
// skipped composite FKs.
func New(tables []InputTable, foreignKeys []InputForeignKey, metadataSources []MetadataSource, typeMapper TypeMapper, logger *slog.Logger) (*Catalog, error) {
	if typeMapper == nil {
		typeMapper = sqltype.Map
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}

	inputByKey := make(map[tableKey]InputTable, len(tables))
	for _, t := range tables {
		inputByKey[tableKey{Schema: t.Schema, Name: t.Name}] = t
	}
	byKey := func(schema, name string) (InputTable, bool) {
		t, ok := inputByKey[tableKey{Schema: schema, Name: name}]
		return t, ok
	}

	n := newNamer()
	cat := &Catalog{
		tables:       make(map[tableKey]*Table),
		byGQLName:    make(map[string]*Table),
		byQueryField: make(map[string]*Table),
	}

	// Step 1: instantiate tables and columns, computing GraphQL names.
	// Schema-prefix resolution needs each table's merged metadata before
	// naming runs, so the priority merge (step 5) runs here, once per table
	// and column, and its result is stored as the final
	// Table.Metadata/Column.Metadata.
	rootMeta, _ := mergeMetadata(rootMetadataKey, metadataSources, knownMetadataKeys)

	for _, t := range tables {
		key := tableKey{Schema: t.Schema, Name: t.Name}
		keyStr := tableKeyString(t.Schema, t.Name)

		tableMeta, unknown := mergeMetadata(keyStr, metadataSources, knownMetadataKeys)
		for _, k := range unknown {
			logger.Warn("unknown table metadata key", "table", keyStr, "key", k)
		}

		prefixEnabled, format := resolveSchemaPrefix(tableMeta, rootMeta)
		dbFieldName := tableDBFieldName(t.Schema, t.Name, prefixEnabled, format)

		gqlName, cerr := n.graphQLTypeName(dbFieldName, keyStr)
		if cerr != nil {
			return nil, cerr
		}
		queryFieldName, cerr := n.graphQLQueryFieldName(pluralize(dbFieldName), keyStr)
		if cerr != nil {
			return nil, cerr
		}

		table := &Table{
			Schema:               t.Schema,
			DBName:               t.Name,
			GraphQLName:          gqlName,
			QueryFieldName:       queryFieldName,
			SingleLinks:          make(map[string]*SingleLink),
			MultiLinks:           make(map[string]*MultiLink),
			ManyToManyLinks:      make(map[string]*ManyToManyLink),
			Metadata:             tableMeta,
			columnsByDBName:      make(map[string]*Column),
			columnsByGraphQLName: make(map[string]*Column),
		}

		for _, c := range t.Columns {
			colMeta, colUnknown := mergeMetadata(keyStr+"."+c.Name, metadataSources, knownMetadataKeys)
			for _, k := range colUnknown {
				logger.Warn("unknown column metadata key", "table", keyStr, "column", c.Name, "key", k)
			}

			col := &Column{
				DBName:      c.Name,
				GraphQLName: n.columnFieldName(gqlName, c.Name),
				Type:        typeMapper(c.DataType),
				Nullable:    c.IsNullable,
				Identity:    c.IsIdentity,
				PrimaryKey:  c.IsPrimaryKey,
				Metadata:    colMeta,
				table:       table,
			}
			table.Columns = append(table.Columns, col)
			table.columnsByDBName[col.DBName] = col
			table.columnsByGraphQLName[col.GraphQLName] = col
			if col.PrimaryKey {
				table.KeyColumns = append(table.KeyColumns, col)
			}
		}

		cat.tables[key] = table
		cat.order = append(cat.order, key)
		cat.byGQLName[gqlName] = table
		cat.byQueryField[queryFieldName] = table
	}
	cat.rootMeta = rootMeta

	// Step 2: synthesize single-column FK links; track FK-bound child
	// columns so step 3 never overrides an explicit FK.
	fkBoundColumns := make(map[tableKey]map[string]bool)
	var compositeFKsSkipped int

	for _, fk := range foreignKeys {
		childKey := tableKey{Schema: fk.ChildSchema, Name: fk.ChildTable}
		parentKey := tableKey{Schema: fk.ParentSchema, Name: fk.ParentTable}

		if len(fk.ChildColumns) != 1 || len(fk.ParentColumns) != 1 {
			compositeFKsSkipped++
			continue
		}

		child := cat.tables[childKey]
		parent := cat.tables[parentKey]
		if child == nil || parent == nil {
			logger.Warn("foreign key references unknown table", "constraint", fk.ConstraintName)
			continue
		}

		childCol := child.ColumnByDBName(fk.ChildColumns[0])
		parentCol := parent.ColumnByDBName(fk.ParentColumns[0])
		if childCol == nil || parentCol == nil {
			logger.Warn("foreign key references unknown column", "constraint", fk.ConstraintName)
			continue
		}

		isOnlyFK := countFKsToParent(foreignKeys, fk.ChildSchema, fk.ChildTable, fk.ParentSchema, fk.ParentTable) == 1

		singleName := manyToOneFieldName(childCol.DBName)
		singleName, cerr := n.relationshipFieldName(child.GraphQLName, singleName, "single:"+fk.ConstraintName, true)
		if cerr != nil {
			return nil, cerr
		}
		child.SingleLinks[singleName] = &SingleLink{
			Name:         singleName,
			ParentTable:  parent,
			ParentColumn: parentCol,
			ChildColumn:  childCol,
		}

		multiName := oneToManyFieldName(child.DBName, childCol.DBName, isOnlyFK)
		multiName, cerr = n.relationshipFieldName(parent.GraphQLName, multiName, "multi:"+fk.ConstraintName, false)
		if cerr != nil {
			return nil, cerr
		}
		parent.MultiLinks[multiName] = &MultiLink{
			Name:         multiName,
			ChildTable:   child,
			ChildColumn:  childCol,
			ParentColumn: parentCol,
		}

		if fkBoundColumns[childKey] == nil {
			fkBoundColumns[childKey] = make(map[string]bool)
		}
		fkBoundColumns[childKey][childCol.DBName] = true
	}
	if compositeFKsSkipped > 0 {
		logger.Warn("composite foreign keys ignored for link synthesis", "count", compositeFKsSkipped)
	}

	// Step 3: name-based fallback for non-FK-bound columns whose normalized
	// name matches a table name and whose type is PK-compatible.
	for _, key := range cat.order {
		child := cat.tables[key]
		for _, col := range child.Columns {
			if fkBoundColumns[key][col.DBName] {
				continue
			}
			candidateBase := manyToOneFieldName(col.DBName)
			parent := findTableByFallbackName(cat, candidateBase)
			if parent == nil || len(parent.KeyColumns) != 1 {
				continue
			}
			pk := parent.KeyColumns[0]
			if pk.Type != col.Type {
				continue
			}

			singleName, cerr := n.relationshipFieldName(child.GraphQLName, candidateBase, "fallback-single:"+col.DBName, true)
			if cerr != nil {
				return nil, cerr
			}
			child.SingleLinks[singleName] = &SingleLink{
				Name:         singleName,
				ParentTable:  parent,
				ParentColumn: pk,
				ChildColumn:  col,
			}

			isOnlyFallback := true
			multiCandidate := oneToManyFieldName(child.DBName, col.DBName, isOnlyFallback)
			multiName, cerr := n.relationshipFieldName(parent.GraphQLName, multiCandidate, "fallback-multi:"+col.DBName, false)
			if cerr != nil {
				return nil, cerr
			}
			parent.MultiLinks[multiName] = &MultiLink{
				Name:         multiName,
				ChildTable:   child,
				ChildColumn:  col,
				ParentColumn: pk,
			}
		}
	}

	// Step 4: detect M:N junctions (self-referencing junctions are
	// permitted and collapse to a single link). An explicit "many-to-many"
	// metadata directive is validated eagerly so a malformed spec fails
	// the build even on a table that wouldn't otherwise reach junction
	// classification.
	for _, key := range cat.order {
		junctionTable := cat.tables[key]
		keyStr := tableKeyString(key.Schema, key.Name)
		if raw, ok := junctionTable.Metadata["many-to-many"]; ok {
			if _, cerr := parseManyToManyDirective(keyStr, raw); cerr != nil {
				return nil, cerr
			}
		}

		input := inputByKey[key]

		var junctionFKs []InputForeignKey
		for _, fk := range foreignKeys {
			if fk.ChildSchema == key.Schema && fk.ChildTable == key.Name {
				junctionFKs = append(junctionFKs, fk)
			}
		}

		info, ok := classifyJunction(input, junctionFKs, byKey)
		if !ok {
			continue
		}

		leftTable := cat.tables[tableKey{Schema: info.LeftFK.ParentSchema, Name: info.LeftFK.ParentTable}]
		rightTable := cat.tables[tableKey{Schema: info.RightFK.ParentSchema, Name: info.RightFK.ParentTable}]
		leftSrcCol := junctionTable.ColumnByDBName(info.LeftFK.ChildColumns[0])
		rightSrcCol := junctionTable.ColumnByDBName(info.RightFK.ChildColumns[0])
		leftTargetCol := leftTable.ColumnByDBName(info.LeftFK.ParentColumns[0])
		rightTargetCol := rightTable.ColumnByDBName(info.RightFK.ParentColumns[0])

		if info.SelfReferencing {
			name, cerr := n.manyToManyFieldName(leftTable.GraphQLName, rightTable.DBName, junctionTable.DBName)
			if cerr != nil {
				return nil, cerr
			}
			leftTable.ManyToManyLinks[name] = &ManyToManyLink{
				Name:                 name,
				SourceColumn:         leftTargetCol,
				JunctionTable:        junctionTable,
				JunctionSourceColumn: leftSrcCol,
				JunctionTargetColumn: rightSrcCol,
				TargetTable:          rightTable,
				TargetColumn:         rightTargetCol,
			}
			continue
		}

		leftName, cerr := n.manyToManyFieldName(leftTable.GraphQLName, rightTable.DBName, junctionTable.DBName)
		if cerr != nil {
			return nil, cerr
		}
		leftTable.ManyToManyLinks[leftName] = &ManyToManyLink{
			Name:                 leftName,
			SourceColumn:         leftTargetCol,
			JunctionTable:        junctionTable,
			JunctionSourceColumn: leftSrcCol,
			JunctionTargetColumn: rightSrcCol,
			TargetTable:          rightTable,
			TargetColumn:         rightTargetCol,
		}

		rightName, cerr := n.manyToManyFieldName(rightTable.GraphQLName, leftTable.DBName, junctionTable.DBName)
		if cerr != nil {
			return nil, cerr
		}
		rightTable.ManyToManyLinks[rightName] = &ManyToManyLink{
			Name:                 rightName,
			SourceColumn:         rightTargetCol,
			JunctionTable:        junctionTable,
			JunctionSourceColumn: rightSrcCol,
			JunctionTargetColumn: leftSrcCol,
			TargetTable:          leftTable,
			TargetColumn:         leftTargetCol,
		}
	}

	// Step 5 (metadata priority merge) already ran per-table/per-column
	// above while resolving names; Table.Metadata/Column.Metadata already
	// hold the final merged values.

	return cat, nil
}

func tableKeyString(schema, name string) string {
	if schema == "" {
		return name
	}
	return fmt.Sprintf("%s.%s", schema, name)
}

func countFKsToParent(fks []InputForeignKey, childSchema, childTable, parentSchema, parentTable string) int {
	count := 0
	for _, fk := range fks {
		if fk.ChildSchema == childSchema && fk.ChildTable == childTable &&
			fk.ParentSchema == parentSchema && fk.ParentTable == parentTable {
			count++
		}
	}
	return count
}

func findTableByFallbackName(cat *Catalog, candidateBase string) *Table {
	singular := singularize(candidateBase)
	plural := pluralize(candidateBase)
	for _, key := range cat.order {
		t := cat.tables[key]
		if t.DBName == candidateBase || t.DBName == singular || t.DBName == plural {
			return t
		}
	}
	return nil
}

// discardWriter is a minimal io.Writer used as the default slog sink when
// the caller supplies no logger, so Catalog construction never panics on a
// nil logger and never writes to the process's real stdout/stderr
// unintentionally.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
