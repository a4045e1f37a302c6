package importer

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/ije/gox/set"
	"github.com/ije/gox/utils"

	"mapload/internal/fetch"
	"mapload/internal/importmap"
)

type moduleState uint8

const (
	stateUnprocessed moduleState = iota
	stateInProgress
	stateCached
)

// moduleRecord is the memoization entry for one module URL. It is created on
// the first visit and never destroyed within a transformer's lifetime.
type moduleRecord struct {
	state    moduleState
	cacheUrl string
}

// a cheap matcher that can over-match (inside strings or comments, costing
// only a wasted parse) but never under-matches real import/export syntax
var regexpESMSyntax = regexp.MustCompile(`\b(import|export)\b`)

// transformer rewrites module sources according to an import map and persists
// them into the content-addressed cache, recursing through the dependency
// graph. One transformer serves one Importer instance.
type transformer struct {
	importMap  *importmap.ImportMap
	cacheRoot  string
	clearCache bool
	minify     bool
	meta       *metaDB

	lock    sync.Mutex
	records map[string]*moduleRecord
	cleared map[string]bool
}

func newTransformer(im *importmap.ImportMap, cacheRoot string, meta *metaDB, clearCache bool, minify bool) *transformer {
	return &transformer{
		importMap:  im,
		cacheRoot:  cacheRoot,
		clearCache: clearCache,
		minify:     minify,
		meta:       meta,
		records:    map[string]*moduleRecord{},
		cleared:    map[string]bool{},
	}
}

// transform rewrites the module at moduleUrl and returns the file URL of its
// cache artifact.
//
// State machine per URL: unprocessed -> in-progress -> cached. Re-entering a
// URL that is in progress (a dependency cycle, or a concurrent visitor of a
// diamond) returns the cache URL registered before recursion when it is
// already known, else the original module URL; it never blocks and never
// recurses into the same URL twice.
func (t *transformer) transform(moduleUrl *url.URL) (cacheUrl string, err error) {
	key := moduleUrl.String()

	t.lock.Lock()
	record, ok := t.records[key]
	if ok && record.state == stateCached {
		t.lock.Unlock()
		return record.cacheUrl, nil
	}
	if ok && record.state == stateInProgress {
		cacheUrl = record.cacheUrl
		t.lock.Unlock()
		if cacheUrl == "" {
			cacheUrl = key
		}
		return cacheUrl, nil
	}
	if !ok {
		record = &moduleRecord{}
		t.records[key] = record
	}
	record.state = stateInProgress
	t.lock.Unlock()

	defer func() {
		if err != nil {
			// reset so a later import attempt can retry
			t.lock.Lock()
			record.state = stateUnprocessed
			record.cacheUrl = ""
			t.lock.Unlock()
		}
	}()

	if t.clearCache {
		t.clearPrior(key)
	}

	code, err := t.fetchSource(moduleUrl)
	if err != nil {
		return
	}

	if !regexpESMSyntax.MatchString(code) {
		// no import/export syntax at all: the specifier resolver is never
		// consulted, only module identity gets pinned
		final := rewriteModuleIdentity(code, moduleUrl)
		return t.persist(key, record, final, "")
	}

	spans := extractSpecifierSpans(key, code)
	resolved := make(map[string]string, len(spans))
	for _, s := range spans {
		if _, done := resolved[s.specifier]; !done {
			target, _ := t.importMap.Resolve(s.specifier, moduleUrl)
			resolved[s.specifier] = target
		}
	}

	// first rewrite: splice in the import-map resolution
	replacements := make([]SpecifierReplacement, 0, len(spans))
	for _, s := range spans {
		if target := resolved[s.specifier]; target != s.specifier {
			replacements = append(replacements, replacementFor(s, target))
		}
	}
	code = applyReplacements(code, replacements)
	code = rewriteModuleIdentity(code, moduleUrl)

	// register the cache location before recursing; a circular dependency
	// that re-enters this URL links here instead of recursing forever
	relPath := cacheRelPath(key, code, t.importMap)
	absPath := filepath.Join(t.cacheRoot, filepath.FromSlash(relPath))
	cacheUrl = toFileUrl(absPath).String()
	t.lock.Lock()
	record.cacheUrl = cacheUrl
	t.lock.Unlock()

	// recurse into every local/remote dependency, all issued before any join
	// so a slow dependency does not hold up its siblings
	depTargets := set.New[string]()
	for _, target := range resolved {
		if isTransformableTarget(target) {
			depTargets.Add(target)
		}
	}
	finals := make(map[string]string, depTargets.Len())
	if depTargets.Len() > 0 {
		var (
			wg         sync.WaitGroup
			finalsLock sync.Mutex
		)
		for _, target := range depTargets.Values() {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				depUrl := absolutize(target, moduleUrl)
				final, depErr := t.transform(depUrl)
				if depErr != nil {
					// non-fatal: fall back to the resolved absolute URL
					log.Warnf("transform dependency %s: %v", target, depErr)
					final = depUrl.String()
				}
				finalsLock.Lock()
				finals[target] = final
				finalsLock.Unlock()
			}(target)
		}
		wg.Wait()
	}

	// second rewrite: the cached file imports other cached files, not
	// the originals
	if len(finals) > 0 {
		spans = extractSpecifierSpans(key, code)
		replacements = replacements[:0]
		for _, s := range spans {
			if final, done := finals[s.specifier]; done && final != s.specifier {
				replacements = append(replacements, replacementFor(s, final))
			}
		}
		code = applyReplacements(code, replacements)
	}

	return t.persist(key, record, code, cacheUrl)
}

// persist writes the final text durably and flips the record to cached. When
// registeredCacheUrl is empty (the no-syntax fast path skipped registration),
// the cache location is derived from the final text here.
func (t *transformer) persist(key string, record *moduleRecord, code string, registeredCacheUrl string) (cacheUrl string, err error) {
	cacheUrl = registeredCacheUrl
	var absPath string
	if cacheUrl == "" {
		relPath := cacheRelPath(key, code, t.importMap)
		absPath = filepath.Join(t.cacheRoot, filepath.FromSlash(relPath))
		cacheUrl = toFileUrl(absPath).String()
	} else {
		u, _ := url.Parse(cacheUrl)
		absPath = urlToFilePath(u)
	}

	if t.minify {
		code, err = minify(code, key)
		if err != nil {
			err = fmt.Errorf("minify %s: %v", key, err)
			return
		}
	}

	// a cache write failure is fatal: the host loader needs the artifact
	if err = ensureDir(filepath.Dir(absPath)); err != nil {
		return
	}
	if err = os.WriteFile(absPath, []byte(code), 0644); err != nil {
		return
	}
	if t.meta != nil {
		hash, _ := utils.SplitByFirstByte(filepath.Base(absPath), '-')
		if err = t.meta.Put(key, metaRecord{CachePath: absPath, Hash: hash, Time: nowUnix()}); err != nil {
			return
		}
	}

	t.lock.Lock()
	record.state = stateCached
	record.cacheUrl = cacheUrl
	t.lock.Unlock()
	return
}

// clearPrior removes a pre-existing artifact and its sidecar record for a URL
// before transforming it, once per transformer lifetime.
func (t *transformer) clearPrior(moduleUrl string) {
	t.lock.Lock()
	if t.cleared[moduleUrl] || t.meta == nil {
		t.lock.Unlock()
		return
	}
	t.cleared[moduleUrl] = true
	t.lock.Unlock()

	rec, err := t.meta.Get(moduleUrl)
	if err != nil {
		return
	}
	os.Remove(rec.CachePath)
	t.meta.Delete(moduleUrl)
}

func (t *transformer) fetchSource(moduleUrl *url.URL) (code string, err error) {
	if moduleUrl.Scheme == "file" {
		data, e := os.ReadFile(urlToFilePath(moduleUrl))
		if e != nil {
			err = fmt.Errorf("load %s: %v", moduleUrl, e)
			return
		}
		return string(data), nil
	}
	client, recycle := fetch.NewClient("mapload/"+VERSION, 60)
	defer recycle()
	return client.Text(moduleUrl)
}

// isTransformableTarget reports whether a resolved target denotes a local
// (relative/file) or remote (http/https) module that should itself be
// transformed. Bare specifiers and exotic schemes pass through untouched.
func isTransformableTarget(target string) bool {
	return isRelPathSpecifier(target) || isAbsPathSpecifier(target) || isHttpSpecifier(target)
}

// absolutize resolves a target against the importing module's URL.
func absolutize(target string, base *url.URL) *url.URL {
	ref, err := url.Parse(target)
	if err != nil {
		ref = &url.URL{Path: target}
	}
	return base.ResolveReference(ref)
}

func replacementFor(s specifierSpan, newSpecifier string) SpecifierReplacement {
	return SpecifierReplacement{
		StartLine:    s.startLine,
		StartChar:    s.startChar,
		EndLine:      s.endLine,
		EndChar:      s.endChar,
		Specifier:    s.specifier,
		NewSpecifier: newSpecifier,
	}
}
