package importer

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
)

// whitespace is tolerated around each `.` of the meta property accesses
var (
	regexpImportMetaUrl      = regexp.MustCompile(`\bimport\s*\.\s*meta\s*\.\s*url\b`)
	regexpImportMetaFilename = regexp.MustCompile(`\bimport\s*\.\s*meta\s*\.\s*filename\b`)
	regexpImportMetaDirname  = regexp.MustCompile(`\bimport\s*\.\s*meta\s*\.\s*dirname\b`)
	regexpImportMetaResolve  = regexp.MustCompile(`\bimport\s*\.\s*meta\s*\.\s*resolve\s*\(`)
)

// rewriteModuleIdentity pins self-referential module metadata to the original
// module location. Once the source is copied into a cache file at a different
// physical path, `import.meta` would otherwise describe the cache artifact and
// silently break relative-path semantics.
func rewriteModuleIdentity(code string, originalUrl *url.URL) string {
	urlLiteral := strconv.Quote(originalUrl.String())

	if regexpImportMetaResolve.MatchString(code) {
		// the call argument is preserved verbatim; only the resolution base
		// is pinned
		code = regexpImportMetaResolve.ReplaceAllString(code, "((s) => new URL(s, "+urlLiteral+").href)(")
	}
	if regexpImportMetaUrl.MatchString(code) {
		code = regexpImportMetaUrl.ReplaceAllString(code, urlLiteral)
	}
	if originalUrl.Scheme == "file" {
		filename := urlToFilePath(originalUrl)
		if regexpImportMetaFilename.MatchString(code) {
			code = regexpImportMetaFilename.ReplaceAllString(code, strconv.Quote(filename))
		}
		if regexpImportMetaDirname.MatchString(code) {
			code = regexpImportMetaDirname.ReplaceAllString(code, strconv.Quote(filepath.Dir(filename)))
		}
	}
	return code
}
