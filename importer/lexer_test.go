package importer

import (
	"testing"
)

func findSpan(spans []specifierSpan, specifier string) (specifierSpan, bool) {
	for _, s := range spans {
		if s.specifier == specifier {
			return s, true
		}
	}
	return specifierSpan{}, false
}

func countSpans(spans []specifierSpan, specifier string) int {
	n := 0
	for _, s := range spans {
		if s.specifier == specifier {
			n++
		}
	}
	return n
}

func TestExtractNamedImport(t *testing.T) {
	code := `import {f} from "@x/lib";` + "\n"
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	span, ok := findSpan(spans, "@x/lib")
	if !ok {
		t.Fatal("expected a span for @x/lib")
	}
	if span.startLine != 0 || span.startChar != 17 || span.endLine != 0 || span.endChar != 23 {
		t.Fatalf("wrong span position: %+v", span)
	}
	if code[span.startChar:span.endChar] != "@x/lib" {
		t.Fatalf("span does not cover the specifier text")
	}
}

func TestExtractImportForms(t *testing.T) {
	code := `import def from './a.ts';
import * as ns from "./b.ts";
import './side.ts';
import def2, { named } from "./c.ts";
export { x } from './d.ts';
export * from "./e.ts";
`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	for _, specifier := range []string{"./a.ts", "./b.ts", "./side.ts", "./c.ts", "./d.ts", "./e.ts"} {
		if _, ok := findSpan(spans, specifier); !ok {
			t.Fatalf("missing span for %s", specifier)
		}
	}
}

func TestExtractTypeImports(t *testing.T) {
	// the TS parser erases type-only imports; the gap-filling pass must
	// still report them
	code := `import type { T } from "./types.ts";
import { type U, v } from "./mixed.ts";
export type { W } from "./types.ts";
`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	if countSpans(spans, "./types.ts") != 2 {
		t.Fatalf("expected both ./types.ts occurrences, got %d", countSpans(spans, "./types.ts"))
	}
	if countSpans(spans, "./mixed.ts") != 1 {
		t.Fatalf("expected one ./mixed.ts occurrence, got %d", countSpans(spans, "./mixed.ts"))
	}
}

func TestExtractMultiLineClause(t *testing.T) {
	code := "import {\n  a,\n  b,\n} from 'mod';\n"
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	span, ok := findSpan(spans, "mod")
	if !ok {
		t.Fatal("expected a span for mod")
	}
	if span.startLine != 3 || span.startChar != 8 || span.endChar != 11 {
		t.Fatalf("wrong span position: %+v", span)
	}
}

func TestExtractRepeatedImports(t *testing.T) {
	code := `import { a } from "./m.ts";
import { b } from "./m.ts";
`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	if countSpans(spans, "./m.ts") != 2 {
		t.Fatalf("expected two ./m.ts occurrences, got %d", countSpans(spans, "./m.ts"))
	}
}

func TestExtractExcludesDynamicImport(t *testing.T) {
	code := `const mod = await import("./dynamic.ts");
const req = require("./req.cjs");
`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	if len(spans) != 0 {
		t.Fatalf("dynamic import and require must not be reported, got %+v", spans)
	}
}

func TestExtractExcludesCommentsAndStrings(t *testing.T) {
	code := `// import { a } from "./commented.ts";
/* import { b } from "./blocked.ts"; */
const s = 'import { c } from "./stringed.ts";';
const tpl = ` + "`import { d } from \"./templated.ts\";`" + `;
import { e } from "./real.ts";
`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	if len(spans) != 1 || spans[0].specifier != "./real.ts" {
		t.Fatalf("only the real import must be reported, got %+v", spans)
	}
}

func TestExtractFromAsIdentifier(t *testing.T) {
	// `from` is a legal identifier; a later string literal in the same
	// clause-shaped statement is not a specifier
	code := `export function send(from, to) { notify("./api.ts"); }` + "\n"
	if spans := extractSpecifierSpans("file:///app/main.ts", code); len(spans) != 0 {
		t.Fatalf("ordinary string literal reported as a specifier span: %+v", spans)
	}

	code = `import { notify } from "./api.ts";
export function send(from, to) { notify("./target.ts"); }
`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	if len(spans) != 1 || spans[0].specifier != "./api.ts" {
		t.Fatalf("expected only the real import specifier, got %+v", spans)
	}
}

func TestExtractNoDuplicateSpans(t *testing.T) {
	// the structural pass and the gap-filling pass both see this clause;
	// the merge must keep one span per (line, startChar, endChar)
	code := `import { a } from "./m.ts";` + "\n"
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	if len(spans) != 1 {
		t.Fatalf("expected exactly one span, got %d", len(spans))
	}
}

func TestApplyReplacements(t *testing.T) {
	code := `import {f} from "@x/lib";
import {g} from "@x/other";
`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	replacements := make([]SpecifierReplacement, 0, len(spans))
	for _, s := range spans {
		switch s.specifier {
		case "@x/lib":
			replacements = append(replacements, replacementFor(s, "./src/lib.ts"))
		case "@x/other":
			replacements = append(replacements, replacementFor(s, "./src/other.ts"))
		}
	}
	rewritten := applyReplacements(code, replacements)
	want := `import {f} from "./src/lib.ts";
import {g} from "./src/other.ts";
`
	if rewritten != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, rewritten)
	}
}

func TestApplyReplacementsSameLine(t *testing.T) {
	code := `import {a} from "./a.ts"; import {b} from "./b.ts";`
	spans := extractSpecifierSpans("file:///app/main.ts", code)
	replacements := make([]SpecifierReplacement, 0, len(spans))
	for _, s := range spans {
		replacements = append(replacements, replacementFor(s, "/cache/"+s.specifier[2:]))
	}
	rewritten := applyReplacements(code, replacements)
	want := `import {a} from "/cache/a.ts"; import {b} from "/cache/b.ts";`
	if rewritten != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, rewritten)
	}
}
