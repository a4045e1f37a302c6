package importer

import (
	"errors"

	"github.com/evanw/esbuild/pkg/api"
)

// minify compresses the given module code. Identifier renaming is left off so
// exported names survive as written.
func minify(code string, sourceUrl string) (string, error) {
	loader := api.LoaderJS
	switch {
	case endsWith(sourceUrl, ".ts", ".mts", ".cts"):
		loader = api.LoaderTS
	case endsWith(sourceUrl, ".tsx"):
		loader = api.LoaderTSX
	case endsWith(sourceUrl, ".jsx"):
		loader = api.LoaderJSX
	}
	ret := api.Transform(code, api.TransformOptions{
		Target:           api.ESNext,
		Format:           api.FormatESModule,
		Platform:         api.PlatformNeutral,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		Loader:           loader,
	})
	if len(ret.Errors) > 0 {
		return "", errors.New(ret.Errors[0].Text)
	}
	return string(ret.Code), nil
}
