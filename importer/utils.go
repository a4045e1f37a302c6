package importer

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// jsExts lists the module extensions the structural parser understands.
var jsExts = []string{".mjs", ".js", ".jsx", ".mts", ".ts", ".tsx", ".cjs"}

func isHttpSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "https://") || strings.HasPrefix(specifier, "http://")
}

func isRelPathSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

func isAbsPathSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "/") || strings.HasPrefix(specifier, "file://")
}

func endsWith(s string, suffixs ...string) bool {
	for _, suffix := range suffixs {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func ensureDir(dir string) (err error) {
	_, err = os.Stat(dir)
	if err != nil && os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0755)
	}
	return
}

func fileExists(filename string) bool {
	fi, err := os.Lstat(filename)
	return err == nil && !fi.IsDir()
}

// toFileUrl converts a filesystem path to a file URL.
func toFileUrl(fsPath string) *url.URL {
	abs, err := filepath.Abs(fsPath)
	if err != nil {
		abs = fsPath
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
}

// urlToFilePath converts a file URL to a filesystem path.
func urlToFilePath(u *url.URL) string {
	return filepath.FromSlash(u.Path)
}

// basenameOf returns the last segment of the URL path of the specifier,
// falling back to a fixed placeholder for root URLs.
func basenameOf(specifier string) string {
	u, err := url.Parse(specifier)
	p := specifier
	if err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(strings.TrimSuffix(p, "/"))
	if name == "" || name == "." || name == "/" {
		return "mod.ts"
	}
	return name
}

func nowUnix() int64 {
	return time.Now().Unix()
}
