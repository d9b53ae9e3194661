package catalog

// junctionInfo is the classification result for one candidate table.
//
// Deviation: a self-referencing junction (both FKs
// pointing at the same table) is explicitly PERMITTED here and produces a
// single ManyToManyLink entry on that one table, rather than being
// rejected outright.
type junctionInfo struct {
	LeftFK          InputForeignKey
	RightFK         InputForeignKey
	SelfReferencing bool
}

// classifyJunction checks whether table qualifies as a many-to-many
// junction: exactly two single-column foreign keys, no other non-key
// columns beyond the FK pair (a table with any additional attribute column
// is not a valid junction and falls back to ordinary single/multi links),
// both FK columns NOT NULL, and a composite primary key made up of exactly
// the two FK columns. byKey resolves a foreign key's parent table so
// an FK pointing outside the introspected table set never qualifies.
func classifyJunction(table InputTable, fks []InputForeignKey, byKey func(schema, name string) (InputTable, bool)) (junctionInfo, bool) {
	var singleColumnFKs []InputForeignKey
	for _, fk := range fks {
		if len(fk.ChildColumns) == 1 && len(fk.ParentColumns) == 1 {
			singleColumnFKs = append(singleColumnFKs, fk)
		} else {
			// A composite FK on the table disqualifies it: the junction
			// shape requires exactly two single-column FKs and nothing else
			// structural.
			return junctionInfo{}, false
		}
	}
	if len(singleColumnFKs) != 2 {
		return junctionInfo{}, false
	}

	fk1, fk2 := singleColumnFKs[0], singleColumnFKs[1]

	if _, ok := byKey(fk1.ParentSchema, fk1.ParentTable); !ok {
		return junctionInfo{}, false
	}
	if _, ok := byKey(fk2.ParentSchema, fk2.ParentTable); !ok {
		return junctionInfo{}, false
	}

	fkColNames := map[string]bool{
		fk1.ChildColumns[0]: true,
		fk2.ChildColumns[0]: true,
	}
	if fk1.ChildColumns[0] == fk2.ChildColumns[0] {
		// Both FKs bound to the same column can't form a junction pair.
		return junctionInfo{}, false
	}

	for _, col := range table.Columns {
		if fkColNames[col.Name] && col.IsNullable {
			return junctionInfo{}, false
		}
	}

	if !hasCoveringKey(table, fkColNames) {
		return junctionInfo{}, false
	}

	if len(attributeColumns(table, fkColNames)) > 0 {
		return junctionInfo{}, false
	}

	selfRef := fk1.ParentSchema == fk2.ParentSchema && fk1.ParentTable == fk2.ParentTable

	left, right := fk1, fk2
	if !selfRef && (left.ParentSchema+"."+left.ParentTable) > (right.ParentSchema+"."+right.ParentTable) {
		left, right = right, left
	}

	return junctionInfo{
		LeftFK:          left,
		RightFK:         right,
		SelfReferencing: selfRef,
	}, true
}

// hasCoveringKey reports whether the table's primary key, taken as a set,
// exactly covers fkCols. Junction shape requires the FK pair to BE the
// composite identity, not merely overlap it.
func hasCoveringKey(table InputTable, fkCols map[string]bool) bool {
	pkCols := make(map[string]bool)
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			pkCols[col.Name] = true
		}
	}
	if len(pkCols) != len(fkCols) {
		return false
	}
	for col := range fkCols {
		if !pkCols[col] {
			return false
		}
	}
	return true
}

func attributeColumns(table InputTable, fkCols map[string]bool) []string {
	var attrs []string
	for _, col := range table.Columns {
		if !fkCols[col.Name] {
			attrs = append(attrs, col.Name)
		}
	}
	return attrs
}
