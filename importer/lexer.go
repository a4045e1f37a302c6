package importer

import (
	"sort"

	esbuild_ast "github.com/ije/esbuild-internal/ast"
	esbuild_config "github.com/ije/esbuild-internal/config"
	"github.com/ije/esbuild-internal/js_parser"
	"github.com/ije/esbuild-internal/logger"
)

// SpecifierReplacement is one specifier occurrence to rewrite. Positions are
// zero-based; char positions are byte columns within the line.
type SpecifierReplacement struct {
	StartLine    int
	StartChar    int
	EndLine      int
	EndChar      int
	Specifier    string
	NewSpecifier string
}

type specifierSpan struct {
	specifier string
	startLine int
	startChar int
	endLine   int
	endChar   int
}

// extractSpecifierSpans finds every import/export specifier occurrence in the
// source and its exact text span. Two cooperating passes: the structural parse
// yields precise spans for the import records the parser keeps, and a textual
// scan over the raw code fills the gaps the parser drops (type-only imports
// erased by TS parsing, repeated imports of one target, `export ... from`
// clauses). Dynamic `import(...)` calls, comments, and ordinary string or
// template literals are never reported. Duplicates are collapsed by
// (line, startChar, endChar).
func extractSpecifierSpans(sourceUrl string, code string) []specifierSpan {
	spans := parseImportRecords(sourceUrl, code)
	seen := make(map[[3]int]struct{}, len(spans))
	for _, s := range spans {
		seen[[3]int{s.startLine, s.startChar, s.endChar}] = struct{}{}
	}
	for _, s := range scanImportClauses(code) {
		key := [3]int{s.startLine, s.startChar, s.endChar}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			spans = append(spans, s)
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].startLine != spans[j].startLine {
			return spans[i].startLine < spans[j].startLine
		}
		return spans[i].startChar < spans[j].startChar
	})
	return spans
}

// parseImportRecords runs the esbuild parser over the in-memory source and
// converts the retained import-statement records to spans. The parser
// de-duplicates repeated imports of one target, so this pass reports at most
// one occurrence per distinct specifier and statement kind.
func parseImportRecords(sourceUrl string, code string) (spans []specifierSpan) {
	deferLog := logger.NewDeferLog(logger.DeferLogNoVerboseOrDebug, nil)
	parserOpts := js_parser.OptionsFromConfig(&esbuild_config.Options{
		JSX: esbuild_config.JSXOptions{
			Parse: endsWith(sourceUrl, ".jsx", ".tsx"),
		},
		TS: esbuild_config.TSOptions{
			Parse: endsWith(sourceUrl, ".ts", ".mts", ".cts", ".tsx"),
		},
	})
	moduleAst, ok := js_parser.Parse(deferLog, logger.Source{
		Index:          0,
		KeyPath:        logger.Path{Text: sourceUrl},
		PrettyPath:     sourceUrl,
		Contents:       code,
		IdentifierName: "input",
	}, parserOpts)
	if !ok {
		return
	}
	lines := lineOffsets(code)
	for _, record := range moduleAst.ImportRecords {
		if record.Kind != esbuild_ast.ImportStmt {
			// dynamic import() and require() keep their runtime semantics
			continue
		}
		start := int(record.Range.Loc.Start)
		end := start + int(record.Range.Len)
		if end-start < 2 || end > len(code) {
			continue
		}
		// the record range includes the quotes
		spans = append(spans, spanBetween(lines, code, start+1, end-1))
	}
	return
}

const (
	clauseNone = iota
	clauseImport
	clauseExport
)

// scanImportClauses is the gap-filling pass: a comment- and string-aware scan
// of the raw text that reports the specifier of every clause shaped like
// `import ... from "x"`, `export ... from "x"` or `import "x"`.
func scanImportClauses(code string) (spans []specifierSpan) {
	var (
		i         = 0
		n         = len(code)
		line      = 0
		lineStart = 0
		clause    = clauseNone
		expecting = false
	)
	for i < n {
		c := code[i]
		switch {
		case c == '\n':
			line++
			i++
			lineStart = i
		case c == '/' && i+1 < n && code[i+1] == '/':
			i += 2
			for i < n && code[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && code[i+1] == '*':
			i += 2
			for i+1 < n && !(code[i] == '*' && code[i+1] == '/') {
				if code[i] == '\n' {
					line++
					lineStart = i + 1
				}
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}
		case c == '`':
			i++
			for i < n && code[i] != '`' {
				if code[i] == '\\' {
					i++
				} else if code[i] == '\n' {
					line++
					lineStart = i + 1
				}
				i++
			}
			if i < n {
				i++
			}
		case c == '\'' || c == '"':
			quoteStart := i
			j := i + 1
			for j < n && code[j] != c && code[j] != '\n' {
				if code[j] == '\\' {
					j++
				}
				j++
			}
			if j >= n || code[j] != c {
				// unterminated on this line, bail out of the literal
				i = j
				continue
			}
			if expecting {
				spans = append(spans, specifierSpan{
					specifier: code[quoteStart+1 : j],
					startLine: line,
					startChar: quoteStart + 1 - lineStart,
					endLine:   line,
					endChar:   j - lineStart,
				})
				clause = clauseNone
				expecting = false
			}
			i = j + 1
		case isIdentChar(c):
			j := i
			for j < n && isIdentChar(code[j]) {
				j++
			}
			switch code[i:j] {
			case "import":
				next := nextCodeByte(code, j)
				if next == '(' || next == '.' {
					// dynamic import() or import.meta
				} else {
					clause = clauseImport
					// a side-effect import carries its specifier directly
					expecting = next == '\'' || next == '"'
				}
			case "export":
				clause = clauseExport
				expecting = false
			case "from":
				// only a `from` directly followed by a quote names a
				// specifier; `from` is also a legal identifier
				if clause != clauseNone {
					next := nextCodeByte(code, j)
					expecting = next == '\'' || next == '"'
				}
			}
			i = j
		case c == ';':
			clause = clauseNone
			expecting = false
			i++
		default:
			i++
		}
	}
	return
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// nextCodeByte peeks the first non-whitespace byte at or after offset.
func nextCodeByte(code string, offset int) byte {
	for i := offset; i < len(code); i++ {
		switch code[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return code[i]
		}
	}
	return 0
}

// lineOffsets returns the byte offset of the start of each line.
func lineOffsets(code string) []int {
	offsets := []int{0}
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func positionOf(lines []int, offset int) (line int, char int) {
	line = sort.Search(len(lines), func(i int) bool { return lines[i] > offset }) - 1
	char = offset - lines[line]
	return
}

func spanBetween(lines []int, code string, start int, end int) specifierSpan {
	startLine, startChar := positionOf(lines, start)
	endLine, endChar := positionOf(lines, end)
	return specifierSpan{
		specifier: code[start:end],
		startLine: startLine,
		startChar: startChar,
		endLine:   endLine,
		endChar:   endChar,
	}
}

// applyReplacements splices the resolved specifiers into the source text.
// Replacements are applied per line from the end backwards so earlier spans
// keep their positions.
func applyReplacements(code string, replacements []SpecifierReplacement) string {
	if len(replacements) == 0 {
		return code
	}
	lines := splitLines(code)
	sorted := make([]SpecifierReplacement, len(replacements))
	copy(sorted, replacements)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartLine != sorted[j].StartLine {
			return sorted[i].StartLine > sorted[j].StartLine
		}
		return sorted[i].StartChar > sorted[j].StartChar
	})
	for _, r := range sorted {
		if r.StartLine != r.EndLine || r.StartLine >= len(lines) {
			continue
		}
		text := lines[r.StartLine]
		if r.StartChar > len(text) || r.EndChar > len(text) || r.StartChar > r.EndChar {
			continue
		}
		lines[r.StartLine] = text[:r.StartChar] + r.NewSpecifier + text[r.EndChar:]
	}
	return joinLines(lines)
}

func splitLines(code string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			lines = append(lines, code[start:i])
			start = i + 1
		}
	}
	return append(lines, code[start:])
}

func joinLines(lines []string) string {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	buf := make([]byte, 0, n)
	for i, l := range lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}
