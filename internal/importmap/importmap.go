package importmap

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// ImportMap holds specifier mappings that follow the import maps specification:
// https://developer.mozilla.org/en-US/docs/Web/HTML/Reference/Elements/script/type/importmap
//
// An ImportMap is immutable once constructed and is shared by reference across
// an Importer instance's lifetime.
type ImportMap struct {
	Src     string                       `json:"$src,omitempty"`
	Imports map[string]string            `json:"imports"`
	Scopes  map[string]map[string]string `json:"scopes,omitempty"`

	scopeOrder []string
	canonOnce  sync.Once
	canon      []byte
}

// New creates an import map from a plain imports mapping.
func New(imports map[string]string) *ImportMap {
	return &ImportMap{Imports: imports}
}

// Resolve maps a specifier to its target for the module at referrer.
//
// Scopes whose key is a prefix of the referrer URL are checked first, in the
// order returned by ScopeOrder, and a matching scope rule overrides the global
// imports. Resolution is total: an unmapped specifier is returned unchanged
// with ok = false.
func (m *ImportMap) Resolve(specifier string, referrer *url.URL) (string, bool) {
	if referrer != nil && len(m.Scopes) > 0 {
		referrerUrl := referrer.String()
		for _, scope := range m.ScopeOrder() {
			if strings.HasPrefix(referrerUrl, scope) {
				if target, ok := matchImports(m.Scopes[scope], specifier); ok {
					return target, true
				}
			}
		}
	}
	return matchImports(m.Imports, specifier)
}

// matchImports looks up the specifier in a single imports mapping: an exact
// match first, then the longest trailing-slash key that prefixes the
// specifier, concatenating the remainder onto the mapped target.
func matchImports(imports map[string]string, specifier string) (string, bool) {
	if len(imports) > 0 {
		if target, ok := imports[specifier]; ok {
			return target, true
		}
		var matchedKey string
		for key := range imports {
			if strings.HasSuffix(key, "/") && strings.HasPrefix(specifier, key) && len(key) > len(matchedKey) {
				matchedKey = key
			}
		}
		if matchedKey != "" {
			return imports[matchedKey] + specifier[len(matchedKey):], true
		}
	}
	return specifier, false
}

// ScopeOrder returns the scope keys in match order: the insertion order of the
// scopes object when the map was loaded from a document, otherwise a sorted
// fallback so resolution stays deterministic for maps built in code.
func (m *ImportMap) ScopeOrder() []string {
	if len(m.scopeOrder) == len(m.Scopes) {
		return m.scopeOrder
	}
	keys := make([]string, 0, len(m.Scopes))
	for key := range m.Scopes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// CanonicalJSON returns a deterministic serialization of the mappings, used as
// the import-map component of cache keys. Map keys are sorted by the JSON
// encoder, so two maps with equal content serialize identically.
func (m *ImportMap) CanonicalJSON() []byte {
	m.canonOnce.Do(func() {
		m.canon, _ = json.Marshal(map[string]any{
			"imports": m.Imports,
			"scopes":  m.Scopes,
		})
	})
	return m.canon
}
