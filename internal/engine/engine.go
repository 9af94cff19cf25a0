// Package engine wraps the embedded esbuild engine the worker pool drives
// for the transform and build operations. It pins a single modern esbuild
// release (see go.mod) rather than branching on engine version, per
// spec.md §9's "Engine version drift" REDESIGN FLAG.
package engine

import (
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Diagnostic is a single esbuild error/warning, deliberately shaped to
// serialise straight into the {errors, warnings} JSON the IPC layer
// returns (spec.md §4.4's "Error protocol").
type Diagnostic struct {
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
}

func toDiagnostics(msgs []api.Message) []Diagnostic {
	out := make([]Diagnostic, len(msgs))
	for i, m := range msgs {
		d := Diagnostic{Text: m.Text}
		if m.Location != nil {
			d.Location = fmt.Sprintf("%s:%d:%d", m.Location.File, m.Location.Line, m.Location.Column)
		}
		out[i] = d
	}
	return out
}

// TransformOptions mirrors the subset of esbuild.TransformOptions the
// worker's "transform" request shape exposes.
type TransformOptions struct {
	Loader   string
	Target   string
	Minify   bool
	Sourcemap bool
}

// TransformResult is the worker's {code, map, warnings, errors,
// legalComments} response for a "transform" request. It carries no
// duration.
type TransformResult struct {
	Code        string
	Map         string
	Warnings    []Diagnostic
	Errors      []Diagnostic
	LegalComments string
}

var targets = map[string]api.Target{
	"chrome67": api.Chrome67,
	"esnext":   api.ESNext,
	"es2020":   api.ES2020,
	"es2015":   api.ES2015,
}

var loaders = map[string]api.Loader{
	"js":   api.LoaderJS,
	"jsx":  api.LoaderJSX,
	"ts":   api.LoaderTS,
	"tsx":  api.LoaderTSX,
	"css":  api.LoaderCSS,
	"json": api.LoaderJSON,
	"text": api.LoaderText,
}

func resolveTarget(t string) api.Target {
	if v, ok := targets[strings.ToLower(t)]; ok {
		return v
	}
	return api.Chrome67
}

func resolveLoader(l string) api.Loader {
	if v, ok := loaders[strings.ToLower(l)]; ok {
		return v
	}
	return api.LoaderJS
}

// Transform runs esbuild's single-file transform, resetting no state: each
// call is independent, matching the worker's "reset FS to empty" semantics
// (the VFS reset happens one layer up, in the worker handler).
func Transform(code string, opts TransformOptions) TransformResult {
	sourcemap := api.SourceMapNone
	if opts.Sourcemap {
		sourcemap = api.SourceMapInline
	}

	ret := api.Transform(code, api.TransformOptions{
		Loader:        resolveLoader(opts.Loader),
		Target:        resolveTarget(opts.Target),
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		Sourcemap:     sourcemap,
		LegalComments: api.LegalCommentsEndOfFile,
	})

	return TransformResult{
		Code:          string(ret.Code),
		Map:           string(ret.Map),
		Warnings:      toDiagnostics(ret.Warnings),
		Errors:        toDiagnostics(ret.Errors),
		LegalComments: string(ret.LegalComments),
	}
}

// BuildOptions mirrors the worker's "build" request shape: a project
// snapshot plus the bundler options. An empty or unknown Target builds for
// chrome67 and any Format other than cjs or iife builds esm; the boolean
// fields carry no defaults, so an unset Splitting, Bundle or Sourcemap is
// false.
type BuildOptions struct {
	Files       map[string]string
	EntryPoints []string
	Target      string
	Format      string
	Splitting   bool
	Bundle      bool
	Sourcemap   bool
	Minify      bool
}

// OutputFile is one emitted build artifact, with the outdir prefix already
// stripped per spec.md §4.4's "build" handler contract.
type OutputFile struct {
	Path     string
	Contents []byte
}

// BuildResult is the worker's {outputFiles, metafile, warnings, errors}
// response for a "build" request. It carries no duration.
type BuildResult struct {
	OutputFiles []OutputFile
	Metafile    string
	Warnings    []Diagnostic
	Errors      []Diagnostic
}

const buildOutdir = "/dist/"

// Build bundles a project snapshot held entirely in memory: esbuild never
// touches the real filesystem, matching spec.md §4.4's "reset the
// worker-local FS to the provided snapshot" contract.
func Build(opts BuildOptions) BuildResult {
	format := api.FormatESModule
	if strings.EqualFold(opts.Format, "cjs") {
		format = api.FormatCommonJS
	} else if strings.EqualFold(opts.Format, "iife") {
		format = api.FormatIIFE
	}

	sourcemap := api.SourceMapNone
	if opts.Sourcemap {
		sourcemap = api.SourceMapLinked
	}

	entryPoints := opts.EntryPoints
	if len(entryPoints) == 0 {
		entryPoints = defaultEntryPoints(opts.Files)
	}

	ret := api.Build(api.BuildOptions{
		EntryPoints: entryPoints,
		Bundle:      opts.Bundle,
		Splitting:   opts.Splitting,
		Format:      format,
		Target:      resolveTarget(opts.Target),
		Platform:    api.PlatformBrowser,
		Outdir:      buildOutdir,
		Write:       false,
		Sourcemap:   sourcemap,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		Metafile:    true,
		Plugins:     []api.Plugin{memoryFSPlugin(opts.Files)},
	})

	files := make([]OutputFile, len(ret.OutputFiles))
	for i, f := range ret.OutputFiles {
		files[i] = OutputFile{
			Path:     strings.TrimPrefix(f.Path, buildOutdir),
			Contents: f.Contents,
		}
	}

	return BuildResult{
		OutputFiles: files,
		Metafile:    ret.Metafile,
		Warnings:    toDiagnostics(ret.Warnings),
		Errors:      toDiagnostics(ret.Errors),
	}
}

// defaultEntryPoints picks every file flagged as an entry by convention
// when the caller does not name explicit entry points: every file in the
// snapshot whose base name starts with "index.", at any depth. package.json's
// "main" is not consulted.
func defaultEntryPoints(files map[string]string) []string {
	var out []string
	for p := range files {
		base := path.Base(p)
		if strings.HasPrefix(base, "index.") {
			out = append(out, "/"+strings.TrimPrefix(p, "/"))
		}
	}
	return out
}
