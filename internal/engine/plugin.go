package engine

import (
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// memoryFSPlugin resolves and loads every import against an in-memory
// {path -> text} snapshot instead of the real filesystem, the Go
// equivalent of the worker resetting its private VFS to the provided
// snapshot before calling into the engine.
func memoryFSPlugin(files map[string]string) api.Plugin {
	return api.Plugin{
		Name: "memory-fs",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				resolved := resolveSpecifier(files, args.ResolveDir, args.Path)
				if resolved == "" {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{Path: resolved, Namespace: "memfs"}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "memfs"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents, ok := files[strings.TrimPrefix(args.Path, "/")]
				if !ok {
					return api.OnLoadResult{}, fmt.Errorf("memfs: no such file %q", args.Path)
				}
				loader := resolveLoader(strings.TrimPrefix(path.Ext(args.Path), "."))
				// esbuild only derives a resolve dir for the "file" namespace;
				// without one, relative imports from this file cannot resolve.
				return api.OnLoadResult{Contents: &contents, Loader: loader, ResolveDir: path.Dir(args.Path)}, nil
			})
		},
	}
}

// resolveSpecifier attempts each candidate path a relative or bare-entry
// import could refer to within the snapshot, trying common extensions and
// an index fallback the way Node module resolution would.
func resolveSpecifier(files map[string]string, resolveDir, specifier string) string {
	candidates := []string{specifier}
	if strings.HasPrefix(specifier, ".") {
		candidates = []string{path.Join(resolveDir, specifier)}
	}

	base := candidates[0]
	tryExts := []string{"", ".ts", ".tsx", ".js", ".jsx", ".json", ".css"}
	for _, ext := range tryExts {
		p := strings.TrimPrefix(base+ext, "/")
		if _, ok := files[p]; ok {
			return "/" + p
		}
	}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		p := strings.TrimPrefix(path.Join(base, "index"+ext), "/")
		if _, ok := files[p]; ok {
			return "/" + p
		}
	}
	return ""
}
