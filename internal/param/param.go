// Package param implements the Parameter Collection: the single
// thread-safe, monotonically-growing list of bound values shared by one
// compilation. Every leaf value in a compiled filter flows through Add or
// AddAll and comes back out as a named placeholder reference. Sort columns
// are escaped identifiers and pagination offset/limit are integers written
// into the SQL text by the Dialect; neither is bound here.
package param

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"graphqlsql/internal/uuidutil"
)

// Param is one bound value: the placeholder name it was assigned, the
// value itself, and an optional database type hint the executor can use
// to bind it precisely (e.g. "uuid", "bytes").
type Param struct {
	Name   string
	Value  interface{}
	DBType string
}

// Collection is the Parameter Collection: the single mutable object
// shared across a single operation's compilation;
// concurrent use across operations is prohibited, but concurrent use
// *within* one operation (e.g. sibling joins compiled in parallel by a
// future executor) is safe because ordinal assignment and the append it
// names happen under the same mutex-guarded critical section, so append
// order always matches placeholder numbering.
type Collection struct {
	prefix string
	mu     sync.Mutex
	params []Param
}

// New creates an empty Collection using the given Dialect's parameter
// prefix (e.g. "@p").
func New(prefix string) *Collection {
	return &Collection{prefix: prefix}
}

// Add assigns the next placeholder name, canonicalizes well-known dbTypes
// (currently "uuid"), appends the record, and returns the placeholder
// reference. Iteration order equals insertion order: ordinal assignment and
// the append it names are one atomic step, so two concurrent callers can
// never interleave such that append order diverges from ordinal numbering.
func (c *Collection) Add(value interface{}, dbType string) string {
	if dbType == "uuid" {
		value = canonicalizeUUID(value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ref := fmt.Sprintf("%s%d", c.prefix, len(c.params))
	c.params = append(c.params, Param{Name: ref, Value: value, DBType: dbType})
	return ref
}

// AddAll binds each value in order and returns a comma-joined list of
// placeholder references, suitable for an IN (...) list.
func (c *Collection) AddAll(values []interface{}, dbType string) string {
	refs := make([]string, len(values))
	for i, v := range values {
		refs[i] = c.Add(v, dbType)
	}
	out := ""
	for i, r := range refs {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}

// Params returns the bound parameters in insertion order. The slice is a
// defensive copy; mutating it does not affect the Collection.
func (c *Collection) Params() []Param {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Param, len(c.params))
	copy(out, c.params)
	return out
}

// Len reports how many parameters have been bound so far.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.params)
}

// canonicalizeUUID normalizes a "uuid"-typed bound value to its lower-case
// string form using uuidutil's parsing rules, so a value supplied as a
// uuid.UUID, a mixed-case string, or raw RFC-order bytes all bind
// identically.
func canonicalizeUUID(value interface{}) interface{} {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String()
	case string:
		if _, canonical, err := uuidutil.ParseString(v); err == nil {
			return canonical
		}
		return v
	case []byte:
		if _, canonical, err := uuidutil.ParseBytes(v); err == nil {
			return canonical
		}
		return v
	default:
		return value
	}
}
