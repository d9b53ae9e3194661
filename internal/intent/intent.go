// Package intent builds the Query-Intent Tree: a protocol-neutral tree of
// field selections, arguments, and nested selections produced from a
// visited GraphQL document. It owns no Catalog binding —
// that happens one layer up, in internal/plan — and no SQL knowledge.
package intent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
)

// Kind classifies a QueryField by its name prefix (the
// Query-Intent Tree node classification).
type Kind int

const (
	// Standard is an ordinary field: a scalar column or a relationship
	// resolved by its Catalog-exposed name.
	Standard Kind = iota
	// ExplicitJoin is a "_join_X" field: an explicit multi-valued join
	// naming link X regardless of its default resolution.
	ExplicitJoin
	// ExplicitSingle is a "_single_X" field: an explicit single-row join.
	ExplicitSingle
	// Aggregate is an "_agg" field.
	Aggregate
	// System is a "__"-prefixed introspection field (e.g. __typename).
	System
)

// QueryField is one node of the Query-Intent Tree.
type QueryField struct {
	Name   string
	Alias  string
	Kind   Kind
	// LinkName is the relationship name an ExplicitJoin/ExplicitSingle
	// field names after its "_join_"/"_single_" prefix is stripped; empty
	// for Standard/Aggregate/System fields.
	LinkName string

	Arguments map[string]interface{}
	Fields    []*QueryField

	// IncludeResult is true only for the top-level node of an operation;
	// it tells the executor to emit a {data, total, offset, limit}
	// envelope rather than a bare row set.
	IncludeResult bool
}

// FieldName returns the alias if present, otherwise the field's own name —
// the identifier downstream components key results by.
func (f *QueryField) FieldName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

const (
	joinPrefix   = "_join_"
	singlePrefix = "_single_"
	aggName      = "_agg"
	systemPrefix = "__"
)

func classify(name string) (Kind, string) {
	switch {
	case strings.HasPrefix(name, systemPrefix):
		return System, ""
	case name == aggName:
		return Aggregate, ""
	case strings.HasPrefix(name, joinPrefix):
		return ExplicitJoin, name[len(joinPrefix):]
	case strings.HasPrefix(name, singlePrefix):
		return ExplicitSingle, name[len(singlePrefix):]
	default:
		return Standard, ""
	}
}

// Build walks a single operation out of doc (the operation named opName,
// or the document's sole operation when opName is empty) and returns its
// root Query-Intent Tree node. variables supplies values for any `$var`
// argument reference in the operation.
func Build(doc *ast.Document, opName string, variables map[string]interface{}) (*QueryField, error) {
	op, fragments, err := selectOperation(doc, opName)
	if err != nil {
		return nil, err
	}

	if op.SelectionSet == nil || len(op.SelectionSet.Selections) == 0 {
		return nil, fmt.Errorf("operation has no selections")
	}

	// The top-level node of an operation always has IncludeResult = true;
	// the single top-level field in the operation's selection set becomes
	// the tree root.
	fields, err := buildSelections(op.SelectionSet.Selections, fragments, variables, map[string]bool{})
	if err != nil {
		return nil, err
	}
	if len(fields) != 1 {
		return nil, fmt.Errorf("expected exactly one top-level selection, got %d", len(fields))
	}
	root := fields[0]
	root.IncludeResult = true
	return root, nil
}

// selectOperation locates the operation to build and returns a fragment
// name -> definition map collected from the rest of the document.
func selectOperation(doc *ast.Document, opName string) (*ast.OperationDefinition, map[string]*ast.FragmentDefinition, error) {
	fragments := make(map[string]*ast.FragmentDefinition)
	var ops []*ast.OperationDefinition

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			ops = append(ops, d)
		case *ast.FragmentDefinition:
			if d.Name != nil {
				fragments[d.Name.Value] = d
			}
		}
	}

	if opName != "" {
		for _, op := range ops {
			if op.Name != nil && op.Name.Value == opName {
				return op, fragments, nil
			}
		}
		return nil, nil, fmt.Errorf("no operation named %q", opName)
	}
	if len(ops) != 1 {
		return nil, nil, fmt.Errorf("document has %d operations; an operation name is required", len(ops))
	}
	return ops[0], fragments, nil
}

// buildSelections turns a GraphQL selection list into QueryField nodes,
// expanding fragment spreads and inline fragments inline. visiting tracks
// the fragment names on the current expansion path so a self-referencing
// fragment chain fails closed instead of recursing forever; a fragment
// spread used at two different sites still expands independently at each
// site.
func buildSelections(selections []ast.Selection, fragments map[string]*ast.FragmentDefinition, variables map[string]interface{}, visiting map[string]bool) ([]*QueryField, error) {
	var out []*QueryField
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			field, err := buildField(s, fragments, variables, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, field)
		case *ast.InlineFragment:
			if s.SelectionSet == nil {
				continue
			}
			nested, err := buildSelections(s.SelectionSet.Selections, fragments, variables, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		case *ast.FragmentSpread:
			if s.Name == nil {
				continue
			}
			name := s.Name.Value
			if visiting[name] {
				return nil, fmt.Errorf("fragment %q is self-referencing", name)
			}
			def, ok := fragments[name]
			if !ok || def.SelectionSet == nil {
				return nil, fmt.Errorf("unknown fragment %q", name)
			}
			visiting[name] = true
			nested, err := buildSelections(def.SelectionSet.Selections, fragments, variables, visiting)
			delete(visiting, name)
			if err != nil {
				return nil, err
			}
			// Deep-copy each field produced by this spread site so later
			// passes (Join Expander, SQL Planner) mutating one copy's
			// argument maps never alias another spread site's copy of the
			// same fragment.
			for _, f := range nested {
				out = append(out, deepCopyField(f))
			}
		}
	}
	return out, nil
}

func buildField(f *ast.Field, fragments map[string]*ast.FragmentDefinition, variables map[string]interface{}, visiting map[string]bool) (*QueryField, error) {
	name := ""
	if f.Name != nil {
		name = f.Name.Value
	}
	alias := ""
	if f.Alias != nil {
		alias = f.Alias.Value
	}
	kind, linkName := classify(name)

	args := make(map[string]interface{}, len(f.Arguments))
	for _, arg := range f.Arguments {
		if arg.Name == nil {
			continue
		}
		val, err := resolveValue(arg.Value, variables)
		if err != nil {
			return nil, fmt.Errorf("field %s argument %s: %w", name, arg.Name.Value, err)
		}
		args[arg.Name.Value] = val
	}

	var children []*QueryField
	if f.SelectionSet != nil {
		var err error
		children, err = buildSelections(f.SelectionSet.Selections, fragments, variables, visiting)
		if err != nil {
			return nil, err
		}
	}

	return &QueryField{
		Name:      name,
		Alias:     alias,
		Kind:      kind,
		LinkName:  linkName,
		Arguments: args,
		Fields:    children,
	}, nil
}

// resolveValue converts an AST value node into a plain Go value: scalars
// as themselves, lists as []interface{}, objects as map[string]interface{},
// and variable references resolved against variables.
func resolveValue(v ast.Value, variables map[string]interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case *ast.Variable:
		if val.Name == nil {
			return nil, fmt.Errorf("variable reference with no name")
		}
		resolved, ok := variables[val.Name.Value]
		if !ok {
			return nil, fmt.Errorf("undefined variable $%s", val.Name.Value)
		}
		return resolved, nil
	case *ast.IntValue:
		n, err := strconv.ParseInt(val.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed int literal %q: %w", val.Value, err)
		}
		return n, nil
	case *ast.FloatValue:
		n, err := strconv.ParseFloat(val.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed float literal %q: %w", val.Value, err)
		}
		return n, nil
	case *ast.StringValue:
		return val.Value, nil
	case *ast.BooleanValue:
		return val.Value, nil
	case *ast.EnumValue:
		return val.Value, nil
	case *ast.NullValue:
		return nil, nil
	case *ast.ListValue:
		items := make([]interface{}, 0, len(val.Values))
		for _, item := range val.Values {
			resolved, err := resolveValue(item, variables)
			if err != nil {
				return nil, err
			}
			items = append(items, resolved)
		}
		return items, nil
	case *ast.ObjectValue:
		obj := make(map[string]interface{}, len(val.Fields))
		for _, field := range val.Fields {
			if field.Name == nil {
				continue
			}
			resolved, err := resolveValue(field.Value, variables)
			if err != nil {
				return nil, err
			}
			obj[field.Name.Value] = resolved
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported argument value node %T", v)
	}
}

// deepCopyField clones a QueryField and its entire subtree, including
// argument maps/lists, so a caller can safely hold onto two independently
// mutable copies of the same fragment expansion.
func deepCopyField(f *QueryField) *QueryField {
	if f == nil {
		return nil
	}
	clone := &QueryField{
		Name:          f.Name,
		Alias:         f.Alias,
		Kind:          f.Kind,
		LinkName:      f.LinkName,
		IncludeResult: f.IncludeResult,
	}
	if f.Arguments != nil {
		clone.Arguments = make(map[string]interface{}, len(f.Arguments))
		for k, v := range f.Arguments {
			clone.Arguments[k] = deepCopyValue(v)
		}
	}
	if f.Fields != nil {
		clone.Fields = make([]*QueryField, len(f.Fields))
		for i, child := range f.Fields {
			clone.Fields[i] = deepCopyField(child)
		}
	}
	return clone
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = deepCopyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
