// Package substitute expands {{tag}} placeholders in script bodies.
//
// Replacement is literal: tag names are matched as plain text, never as
// patterns, and replacement values are inserted verbatim without being
// scanned for further tags. A tag whose name is not a key of the value map
// stays in the output exactly as written. A key mapped to the empty string
// expands to nothing.
package substitute

import (
	"sort"
	"strings"
)

const (
	tagOpen  = "{{"
	tagClose = "}}"
)

// Tag returns the placeholder text for name, e.g. Tag("title") == "{{title}}".
func Tag(name string) string {
	return tagOpen + name + tagClose
}

// Apply replaces every occurrence of {{key}} in template with values[key].
// The template is scanned once, so the result does not depend on map
// iteration order and values containing "{{...}}" are not re-expanded.
func Apply(template string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(template, tagOpen) {
		return template
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// strings.Replacer prefers earlier pairs when two patterns match at the
	// same offset; longest first makes "{{a}}}" beat "{{a}}".
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, Tag(k), values[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Tags returns the distinct tag names in template in order of first
// appearance. An opening "{{" without a matching "}}" ends the scan.
func Tags(template string) []string {
	var names []string
	seen := make(map[string]bool)
	rest := template
	for {
		start := strings.Index(rest, tagOpen)
		if start < 0 {
			return names
		}
		rest = rest[start+len(tagOpen):]
		end := strings.Index(rest, tagClose)
		if end < 0 {
			return names
		}
		name := rest[:end]
		// "{{a {{b}}" names b, not "a {{b".
		if i := strings.LastIndex(name, tagOpen); i >= 0 {
			name = name[i+len(tagOpen):]
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		rest = rest[end+len(tagClose):]
	}
}

// Unresolved returns the tags of template that Apply(template, values)
// leaves in place. A tag swallowed by a longer supplied key, as "{{b}}" is
// in "{{a {{b}}" with the key "a {{b", counts as resolved.
func Unresolved(template string, values map[string]string) []string {
	// Supplied keys are replaced with a NUL so neighbouring text cannot
	// join into a new tag, and tags that only appear inside values are
	// never counted.
	marked := make(map[string]string, len(values))
	for k := range values {
		marked[k] = "\x00"
	}
	residue := Apply(template, marked)

	missing := []string{}
	for _, name := range Tags(template) {
		if _, ok := values[name]; ok {
			continue
		}
		if strings.Contains(residue, Tag(name)) {
			missing = append(missing, name)
		}
	}
	return missing
}
