package importmap

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
)

// Load reads an import map from a JSON (or JSONC) file and validates its
// shape: `imports` is a required mapping of string to string, `scopes` an
// optional mapping of string to such a mapping. Relative-looking target values
// are resolved against the import-map file's own directory into absolute
// file URLs; values that already parse as URLs and bare specifiers pass
// through unchanged.
func Load(filename string) (im *ImportMap, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return
	}
	baseDir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return
	}
	im, err = parse(jsonc.ToJSON(data), baseDir)
	if err != nil {
		err = fmt.Errorf("invalid import map %s: %v", filename, err)
		return
	}
	im.Src = fileUrl(filename)
	return
}

func parse(data []byte, baseDir string) (im *ImportMap, err error) {
	var raw map[string]json.RawMessage
	if err = json.Unmarshal(data, &raw); err != nil {
		return
	}
	importsRaw, ok := raw["imports"]
	if !ok {
		err = fmt.Errorf(`missing "imports" field`)
		return
	}
	var imports map[string]string
	if err = json.Unmarshal(importsRaw, &imports); err != nil {
		err = fmt.Errorf(`"imports" must be a mapping of string to string`)
		return
	}
	for specifier, target := range imports {
		imports[specifier] = resolveTarget(target, baseDir)
		if specifier == "" {
			err = fmt.Errorf("empty specifier in imports")
			return
		}
	}
	im = &ImportMap{Imports: imports}
	if scopesRaw, ok := raw["scopes"]; ok {
		var scopes map[string]map[string]string
		if err = json.Unmarshal(scopesRaw, &scopes); err != nil {
			err = fmt.Errorf(`"scopes" must be a mapping of string to mappings of string to string`)
			return
		}
		for _, scopeImports := range scopes {
			for specifier, target := range scopeImports {
				scopeImports[specifier] = resolveTarget(target, baseDir)
			}
		}
		im.Scopes = scopes
		im.scopeOrder, err = objectKeyOrder(scopesRaw)
		if err != nil {
			return
		}
	}
	return
}

// resolveTarget absolutizes a relative-looking target (starts with "./" or
// "../", or is an absolute filesystem path) against the import-map directory.
func resolveTarget(target string, baseDir string) string {
	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		return fileUrl(filepath.Join(baseDir, filepath.FromSlash(target))) + trailingSlash(target)
	}
	if filepath.IsAbs(target) {
		return fileUrl(target) + trailingSlash(target)
	}
	return target
}

// objectKeyOrder scans a raw JSON object and reports its keys in document
// order; the scope match rule is first-in-insertion-order.
func objectKeyOrder(data []byte) (keys []string, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err = dec.Token(); err != nil { // consume '{'
		return
	}
	for dec.More() {
		tok, e := dec.Token()
		if e != nil {
			err = e
			return
		}
		key, ok := tok.(string)
		if !ok {
			err = fmt.Errorf("unexpected token %v in scopes", tok)
			return
		}
		keys = append(keys, key)
		var value json.RawMessage
		if err = dec.Decode(&value); err != nil {
			return
		}
	}
	return
}

func fileUrl(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

func trailingSlash(path string) string {
	// filepath.Join strips a trailing slash that a prefix mapping relies on
	if strings.HasSuffix(path, "/") {
		return "/"
	}
	return ""
}
