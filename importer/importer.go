package importer

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"mapload/internal/app_dir"
	"mapload/internal/importmap"
)

const VERSION = "0.3.0"

// Module holds the exported bindings of a loaded module, as handed back by
// the host runtime. Only JSON-serializable exports survive the host boundary;
// see Loader.
type Module map[string]any

// Loader is the host runtime's dynamic module-loading capability: it is given
// an absolute file URL of a cache artifact and returns the module's exported
// bindings. The core depends on this capability but does not implement the
// module system itself.
type Loader interface {
	Load(moduleUrl string) (Module, error)
}

// Options configures an Importer.
type Options struct {
	// ImportMap is the validated import map shared across the instance.
	ImportMap *importmap.ImportMap
	// CacheDir is the cache root; relative paths resolve against the working
	// directory. Empty selects the platform default (see internal/app_dir).
	CacheDir string
	// ClearPriorCache removes a pre-existing artifact and its sidecar record
	// for a URL before transforming it, forcing a rebuild when a host-level
	// cache might otherwise shadow this system's output.
	ClearPriorCache bool
	// Minify compresses cache artifacts with esbuild after rewriting.
	Minify bool
	// Loader overrides the host loader; defaults to a Deno subprocess.
	Loader Loader
}

// Importer is the public entry point: it resolves a root specifier, drives
// the transformation engine, performs the actual module load through the host
// runtime, and memoizes results by the originally requested specifier.
type Importer struct {
	importMap *importmap.ImportMap
	baseUrl   *url.URL
	engine    *transformer
	loader    Loader
	meta      *metaDB

	lock    sync.Mutex
	modules map[string]Module
}

// New creates an Importer. The cache directory and its metadata sidecar are
// created eagerly; a cache that cannot be set up is a construction error
// since every subsequent load depends on it.
func New(options Options) (im *Importer, err error) {
	if options.ImportMap == nil {
		err = errors.New("options.ImportMap is required")
		return
	}
	cacheDir := options.CacheDir
	if cacheDir == "" {
		cacheDir, err = app_dir.CacheDir()
		if err != nil {
			return
		}
	}
	if !filepath.IsAbs(cacheDir) {
		cwd, e := os.Getwd()
		if e != nil {
			err = e
			return
		}
		cacheDir = filepath.Join(cwd, cacheDir)
	}
	if err = ensureDir(cacheDir); err != nil {
		return
	}
	meta, err := openMetaDB(cacheDir)
	if err != nil {
		err = fmt.Errorf("open cache metadata: %v", err)
		return
	}
	cwd, err := os.Getwd()
	if err != nil {
		meta.Close()
		return
	}
	loader := options.Loader
	if loader == nil {
		loader = &DenoLoader{}
	}
	baseUrl := toFileUrl(cwd)
	baseUrl.Path += "/"
	im = &Importer{
		importMap: options.ImportMap,
		baseUrl:   baseUrl,
		engine:    newTransformer(options.ImportMap, cacheDir, meta, options.ClearPriorCache, options.Minify),
		loader:    loader,
		meta:      meta,
		modules:   map[string]Module{},
	}
	return
}

// Import loads the module named by specifier through the rewrite pipeline and
// the host runtime. Re-importing the same specifier returns the identical
// in-memory module without re-entering the pipeline.
func (im *Importer) Import(specifier string) (module Module, err error) {
	im.lock.Lock()
	module, cached := im.modules[specifier]
	im.lock.Unlock()
	if cached {
		return
	}

	moduleUrl, err := im.resolveRoot(specifier)
	if err != nil {
		return
	}
	cacheUrl, err := im.engine.transform(moduleUrl)
	if err != nil {
		// a root load failure is fatal
		err = fmt.Errorf("import %s: %v", specifier, err)
		return
	}
	module, err = im.loader.Load(cacheUrl)
	if err != nil {
		err = fmt.Errorf("load %s: %v", cacheUrl, err)
		return
	}

	im.lock.Lock()
	im.modules[specifier] = module
	im.lock.Unlock()
	return
}

// Close releases the metadata sidecar. The on-disk cache remains valid for
// later Importer instances.
func (im *Importer) Close() error {
	return im.meta.Close()
}

// resolveRoot turns the originally requested specifier into an absolute
// module URL: the import map applies first (a bare root like "@x/lib" is
// expected to be mapped), then relative and path specifiers resolve against
// the working-directory base.
func (im *Importer) resolveRoot(specifier string) (moduleUrl *url.URL, err error) {
	target, _ := im.importMap.Resolve(specifier, im.baseUrl)
	if isHttpSpecifier(target) || isRelPathSpecifier(target) || isAbsPathSpecifier(target) {
		return absolutize(target, im.baseUrl), nil
	}
	if filepath.IsAbs(target) {
		return toFileUrl(target), nil
	}
	err = fmt.Errorf("cannot resolve %q: not in the import map and not a path or URL", specifier)
	return
}
