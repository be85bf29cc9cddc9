// Package mirror implements the bidirectional URL-rewrite table applied at
// resolution boundaries: a mirror routes fetches through an alternative
// host while keeping the fetched package's identity unchanged.
package mirror

import "strings"

// Table maps original URL to mirror URL and back. Applied before identity
// derivation when loading dependency edges, and reversed when saving pins
// so the lockfile stays portable across environments with different mirror
// configurations.
type Table struct {
	toMirror   map[string]string
	toOriginal map[string]string
}

// New builds an empty mirror table.
func New() *Table {
	return &Table{
		toMirror:   make(map[string]string),
		toOriginal: make(map[string]string),
	}
}

// Set records a mirror mapping: original resolves to replacement, and
// replacement unresolves back to original. Re-setting the same original
// overwrites the prior mapping and drops its reverse entry.
func (t *Table) Set(original, replacement string) {
	original = strings.TrimRight(original, "/")
	replacement = strings.TrimRight(replacement, "/")
	if prior, ok := t.toMirror[original]; ok {
		delete(t.toOriginal, prior)
	}
	t.toMirror[original] = replacement
	t.toOriginal[replacement] = original
}

// Resolve returns the mirror URL for url, or url unchanged if no mirror is
// configured for it. A mirror set to its own original URL is a no-op: the
// table still round-trips since toOriginal[url] == url in that case.
func (t *Table) Resolve(url string) string {
	if m, ok := t.toMirror[strings.TrimRight(url, "/")]; ok {
		return m
	}
	return url
}

// Unresolve returns the original URL that maps to the mirror url, or url
// unchanged if it is not a known mirror target.
func (t *Table) Unresolve(url string) string {
	if o, ok := t.toOriginal[strings.TrimRight(url, "/")]; ok {
		return o
	}
	return url
}

// Len reports the number of configured mirror mappings.
func (t *Table) Len() int {
	return len(t.toMirror)
}
