package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"mapload/importer"
	"mapload/internal/importmap"
)

const helpMessage = `mapload v%s - import-map driven module importer

Usage: mapload [options] <specifier>

Options:
  --importmap <file>   import map file (default: "importmap.json")
  --cache-dir <dir>    cache directory (default: platform cache root)
  --reload             clear the prior cache artifacts before importing
  --minify             minify cache artifacts
`

func main() {
	var (
		importMapFile string
		cacheDir      string
		reload        bool
		minify        bool
	)
	flag.StringVar(&importMapFile, "importmap", "importmap.json", "import map file")
	flag.StringVar(&cacheDir, "cache-dir", "", "cache directory")
	flag.BoolVar(&reload, "reload", false, "clear the prior cache artifacts before importing")
	flag.BoolVar(&minify, "minify", false, "minify cache artifacts")
	flag.Usage = func() {
		fmt.Printf(helpMessage, importer.VERSION)
	}
	flag.Parse()

	specifier := flag.Arg(0)
	if specifier == "" {
		flag.Usage()
		os.Exit(1)
	}

	im, err := importmap.Load(importMapFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	loader, err := importer.New(importer.Options{
		ImportMap:       im,
		CacheDir:        cacheDir,
		ClearPriorCache: reload,
		Minify:          minify,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer loader.Close()

	module, err := loader.Import(specifier)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	output, err := json.MarshalIndent(module, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(output))
}
