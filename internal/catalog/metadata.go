package catalog

import (
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"graphqlsql/internal/compileerr"
)

// rootMetadataKey is the MetadataSource.Key reserved for model-wide
// directives that apply to every table (e.g. schema-prefix-default).
const rootMetadataKey = ":root"

// manyToManyDirective decodes a "many-to-many" metadata value of the form
// "Target:Junction" or "Target:Junction,Target2:Junction2". The Catalog
// only validates the value's shape; it does not create links from it, and
// junction detection stays FK-based.
type manyToManyDirective struct {
	Pairs string `mapstructure:"many-to-many"`
}

// schemaPrefixDirective decodes the schema-prefix family of keys.
type schemaPrefixDirective struct {
	Enabled bool   `mapstructure:"schema-prefix"`
	Format  string `mapstructure:"schema-prefix-format"`
}

// parsedManyToManyPair is one "Target:Junction" entry from a many-to-many
// directive value.
type parsedManyToManyPair struct {
	Target  string
	Junction string
}

// parseManyToManyDirective decodes and validates a many-to-many metadata
// value, raising a ConfigurationError on a malformed spec.
func parseManyToManyDirective(tableKeyStr string, raw interface{}) ([]parsedManyToManyPair, *compileerr.ConfigurationError) {
	var d manyToManyDirective
	if err := mapstructure.Decode(map[string]interface{}{"many-to-many": raw}, &d); err != nil {
		return nil, &compileerr.ConfigurationError{Table: tableKeyStr, Message: "malformed many-to-many spec: " + err.Error()}
	}
	if strings.TrimSpace(d.Pairs) == "" {
		return nil, &compileerr.ConfigurationError{Table: tableKeyStr, Message: "malformed many-to-many spec: empty value"}
	}

	var pairs []parsedManyToManyPair
	for _, entry := range strings.Split(d.Pairs, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, &compileerr.ConfigurationError{Table: tableKeyStr, Message: "malformed many-to-many spec: expected Target:Junction, got " + entry}
		}
		pairs = append(pairs, parsedManyToManyPair{Target: strings.TrimSpace(parts[0]), Junction: strings.TrimSpace(parts[1])})
	}
	if len(pairs) == 0 {
		return nil, &compileerr.ConfigurationError{Table: tableKeyStr, Message: "malformed many-to-many spec: no pairs parsed from " + d.Pairs}
	}
	return pairs, nil
}

// resolveSchemaPrefix decodes the schema-prefix/-format/-default directives
// that apply to one table, falling through root metadata when the
// per-table sources are silent on a key.
func resolveSchemaPrefix(tableMeta, rootMeta map[string]interface{}) (enabled bool, format casingFormat) {
	format = casingUnderscore

	if v, ok := rootMeta["schema-prefix-default"]; ok {
		if b, ok := v.(bool); ok {
			enabled = b
		}
	}
	if v, ok := rootMeta["schema-prefix-format"].(string); ok {
		format = parseCasingFormat(v)
	}
	if v, ok := tableMeta["schema-prefix-format"].(string); ok {
		format = parseCasingFormat(v)
	}
	if v, ok := tableMeta["schema-prefix"]; ok {
		if b, ok := v.(bool); ok {
			enabled = b
		}
	}
	return enabled, format
}

func parseCasingFormat(s string) casingFormat {
	if strings.EqualFold(s, "camelCase") || strings.EqualFold(s, "camel") {
		return casingCamel
	}
	return casingUnderscore
}

// mergeMetadata merges every MetadataSource whose Key matches tableKeyStr
// (or rootMetadataKey, for model-wide directives) by ascending Priority,
// so a higher-priority source overwrites a lower one key-by-key; equal
// priorities resolve by source-list order (later wins). Unknown keys are
// kept verbatim — recorded, never rejected — and reported via the returned unknown-key list
// so the caller can log a warning.
func mergeMetadata(tableKeyStr string, sources []MetadataSource, knownKeys map[string]bool) (map[string]interface{}, []string) {
	applicable := make([]MetadataSource, 0, len(sources))
	for _, s := range sources {
		if s.Key == tableKeyStr || s.Key == rootMetadataKey {
			applicable = append(applicable, s)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority < applicable[j].Priority
	})

	merged := make(map[string]interface{})
	unknownSeen := make(map[string]bool)
	for _, s := range applicable {
		for k, v := range s.Values {
			merged[k] = v
			if knownKeys != nil && !knownKeys[k] {
				unknownSeen[k] = true
			}
		}
	}

	var unknown []string
	for k := range unknownSeen {
		unknown = append(unknown, k)
	}
	sort.Strings(unknown)
	return merged, unknown
}

// knownMetadataKeys lists every metadata directive the Catalog recognizes.
// Keys outside this set are merged and retained but reported as unknown so
// the caller can warn.
var knownMetadataKeys = map[string]bool{
	"tenant-filter":          true,
	"soft-delete":            true,
	"visibility":             true,
	"many-to-many":           true,
	"enum":                   true,
	"label":                  true,
	"populate":               true,
	"auto-join":              true,
	"default-limit":          true,
	"schema-prefix":          true,
	"schema-prefix-default":  true,
	"schema-prefix-format":   true,
	"raw-sql":                true,
}
