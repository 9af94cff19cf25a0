package fsvfs

import (
	"strings"

	esbuild_config "github.com/ije/esbuild-internal/config"
	"github.com/ije/esbuild-internal/js_ast"
	"github.com/ije/esbuild-internal/js_parser"
	"github.com/ije/esbuild-internal/logger"
)

var jsExts = []string{".js", ".mjs", ".jsx", ".ts", ".mts", ".tsx", ".cjs", ".cts"}

func isJSPath(p string) bool {
	for _, ext := range jsExts {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// classifyJS parses contents and reports whether the file is an ESM module.
// Parse failures classify as not-ESM rather than propagating an error: the
// VFS never fails on write.
func classifyJS(path, contents string) bool {
	if !isJSPath(path) || contents == "" {
		return false
	}
	log := logger.NewDeferLog(logger.DeferLogNoVerboseOrDebug, nil)
	opts := js_parser.OptionsFromConfig(&esbuild_config.Options{
		JSX: esbuild_config.JSXOptions{
			Parse: strings.HasSuffix(path, ".jsx") || strings.HasSuffix(path, ".tsx"),
		},
		TS: esbuild_config.TSOptions{
			Parse: strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".mts") ||
				strings.HasSuffix(path, ".cts") || strings.HasSuffix(path, ".tsx"),
		},
	})
	ast, pass := js_parser.Parse(log, logger.Source{
		Index:      0,
		KeyPath:    logger.Path{Text: path},
		PrettyPath: path,
		Contents:   contents,
	}, opts)
	if !pass {
		return false
	}
	return ast.ExportsKind == js_ast.ExportsESM
}
