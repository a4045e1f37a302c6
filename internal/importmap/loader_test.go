package importmap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeImportMap(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "importmap.json")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatalf("write import map: %v", err)
	}
	return filename
}

func TestLoad(t *testing.T) {
	filename := writeImportMap(t, `{
  // comments are tolerated
  "imports": {
    "react": "https://esm.sh/react@19.1.0",
    "@utils/": "./src/utils/",
    "lib": "../lib/mod.ts",
  },
  "scopes": {
    "https://esm.sh/": {
      "scheduler": "https://esm.sh/scheduler@0.26.0"
    }
  }
}`)
	im, err := Load(filename)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if im.Imports["react"] != "https://esm.sh/react@19.1.0" {
		t.Fatalf("url target must pass through, got %s", im.Imports["react"])
	}

	baseDir := filepath.Dir(filename)
	wantUtils := "file://" + filepath.ToSlash(filepath.Join(baseDir, "src/utils")) + "/"
	if im.Imports["@utils/"] != wantUtils {
		t.Fatalf("relative prefix target: want %s, got %s", wantUtils, im.Imports["@utils/"])
	}
	wantLib := "file://" + filepath.ToSlash(filepath.Join(filepath.Dir(baseDir), "lib/mod.ts"))
	if im.Imports["lib"] != wantLib {
		t.Fatalf("parent-relative target: want %s, got %s", wantLib, im.Imports["lib"])
	}

	if im.Scopes["https://esm.sh/"]["scheduler"] != "https://esm.sh/scheduler@0.26.0" {
		t.Fatal("scope targets must be kept")
	}
	if im.Src == "" {
		t.Fatal("Src must record the import map location")
	}
}

func TestLoadScopeOrder(t *testing.T) {
	filename := writeImportMap(t, `{
  "imports": {},
  "scopes": {
    "file:///z/": {"x": "1"},
    "file:///a/": {"x": "2"},
    "file:///m/": {"x": "3"}
  }
}`)
	im, err := Load(filename)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	order := im.ScopeOrder()
	want := []string{"file:///z/", "file:///a/", "file:///m/"}
	if len(order) != len(want) {
		t.Fatalf("expected %d scopes, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("scope order must follow the document: want %v, got %v", want, order)
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"invalid json":    `{`,
		"missing imports": `{"scopes": {}}`,
		"imports shape":   `{"imports": {"a": 1}}`,
		"scopes shape":    `{"imports": {}, "scopes": {"a": "b"}}`,
	} {
		filename := writeImportMap(t, content)
		if _, err := Load(filename); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "no such file") {
		t.Fatalf("expected a read error, got %v", err)
	}
}
