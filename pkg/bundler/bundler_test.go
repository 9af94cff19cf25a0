package bundler

import (
	"context"
	"testing"

	"github.com/esbuild-dev/bundlerd/internal/engine"
)

func newTestBundler(t *testing.T) *Bundler {
	t.Helper()
	b, err := Init(Options{
		MinConcurrency: 1,
		MaxConcurrency: 1,
		CacheDir:       t.TempDir(),
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestTransformThroughFacade(t *testing.T) {
	b := newTestBundler(t)
	result, err := b.Transform(context.Background(), "const x = 1", engine.TransformOptions{Loader: "js"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
}

func TestBuildUsesFacadeVFSWhenFilesOmitted(t *testing.T) {
	b := newTestBundler(t)
	b.FS().WriteFile("/app/index.js", "import './other.js'; console.log('entry')")
	b.FS().WriteFile("/app/other.js", "export const x = 1")

	result, err := b.Build(context.Background(), engine.BuildOptions{Bundle: true, EntryPoints: []string{"app/index.js"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.OutputFiles) == 0 {
		t.Fatal("expected at least one output file")
	}
}

func TestReloadRecoversPool(t *testing.T) {
	b := newTestBundler(t)
	b.Reload()
	_, err := b.Transform(context.Background(), "1+1", engine.TransformOptions{Loader: "js"})
	if err != nil {
		t.Fatalf("transform after reload: %v", err)
	}
}
