// Package bundler is the public façade spec.md §6 names: a single entry
// point a caller uses to transform a file, bundle a project, or install its
// npm dependencies, without reaching into the worker pool or VFS packages
// directly.
package bundler

import (
	"context"
	"fmt"

	"github.com/esbuild-dev/bundlerd/internal/cache"
	"github.com/esbuild-dev/bundlerd/internal/engine"
	"github.com/esbuild-dev/bundlerd/internal/fsvfs"
	"github.com/esbuild-dev/bundlerd/internal/installer"
	"github.com/esbuild-dev/bundlerd/internal/pool"
	"github.com/esbuild-dev/bundlerd/internal/storage"
)

// Options configures Init, mirroring initWorker({esbuildVersion, workerUrl,
// minConcurrency?, maxConcurrency?}).
type Options struct {
	MinConcurrency int
	MaxConcurrency int

	RegistryBaseURL string
	CacheDir        string
	LocalCacheSize  int
}

// Bundler is the long-lived handle returned by Init: it owns the worker
// pool, the installer, and the caller-visible VFS that Build/NPMInstall
// snapshots flow through.
type Bundler struct {
	opts  Options
	pool  *pool.Pool
	fs    *fsvfs.VFS
	store storage.Store
}

// Init wires the ambient dependencies (persistent cache, installer, worker
// pool) and returns a ready-to-use Bundler, matching initWorker's contract.
func Init(opts Options) (*Bundler, error) {
	if opts.LocalCacheSize <= 0 {
		opts.LocalCacheSize = 256
	}
	if opts.CacheDir == "" {
		opts.CacheDir = ".bundlerd"
	}

	store, err := storage.Open("bolt:" + opts.CacheDir + "/cache.db")
	if err != nil {
		return nil, fmt.Errorf("open package cache: %w", err)
	}

	c, err := cache.New(opts.LocalCacheSize, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init package cache: %w", err)
	}

	inst := installer.New(c)
	p := pool.New(pool.Options{
		MinConcurrency: opts.MinConcurrency,
		MaxConcurrency: opts.MaxConcurrency,
	}, inst)

	return &Bundler{
		opts:  opts,
		pool:  p,
		fs:    fsvfs.New(),
		store: store,
	}, nil
}

// FS returns the caller-visible virtual file system: the source of truth
// backing NPMInstall's rawFiles snapshot and Build's default file set.
func (b *Bundler) FS() *fsvfs.VFS {
	return b.fs
}

// Close releases the persistent cache handle.
func (b *Bundler) Close() error {
	return b.store.Close()
}

// Transform compiles a single in-memory file, surfacing diagnostics through
// the returned TransformResult rather than err; err is reserved for
// worker-harness failures (spec.md §4.4's error protocol).
func (b *Bundler) Transform(ctx context.Context, code string, opts engine.TransformOptions) (*engine.TransformResult, error) {
	resp, err := b.pool.Submit(ctx, pool.Request{
		Kind:             pool.KindTransform,
		Code:             code,
		TransformOptions: opts,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	return resp.TransformResult, nil
}

// defaultBuildOptions fills in the string defaults of esbuild__bundle
// (target chrome67, format esm). Splitting, Bundle, Sourcemap and Minify
// are left exactly as the caller set them.
func defaultBuildOptions(opts engine.BuildOptions) engine.BuildOptions {
	if opts.Target == "" {
		opts.Target = "chrome67"
	}
	if opts.Format == "" {
		opts.Format = "esm"
	}
	return opts
}

// Build bundles the caller's project. If opts.Files is nil the Bundler's
// own VFS snapshot is used, matching spec.md §5's "main-thread FS is the
// source of truth for rawFiles snapshots passed into build".
func (b *Bundler) Build(ctx context.Context, opts engine.BuildOptions) (*engine.BuildResult, error) {
	opts = defaultBuildOptions(opts)
	if opts.Files == nil {
		raw := b.fs.RawFiles()
		files := make(map[string]string, len(raw))
		for p, rec := range raw {
			files[p] = rec.Contents
		}
		opts.Files = files
	}
	// splitting/bundle/sourcemap are not defaulted here: a bool zero value
	// cannot be told apart from an explicit false, so each is false unless
	// the caller sets it true in engine.BuildOptions.

	resp, err := b.pool.Submit(ctx, pool.Request{
		Kind:         pool.KindBuild,
		Files:        opts.Files,
		BuildOptions: opts,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return resp.BuildResult, nil
}

// NPMInstall resolves and fetches the project's npm dependencies into
// node_modules, merging the result back into the Bundler's own VFS.
func (b *Bundler) NPMInstall(ctx context.Context, progress pool.ProgressFunc) error {
	raw := b.fs.RawFiles()
	files := make(map[string]string, len(raw))
	for p, rec := range raw {
		files[p] = rec.Contents
	}

	registryBaseURL := b.opts.RegistryBaseURL

	resp, err := b.pool.Submit(ctx, pool.Request{
		Kind:  pool.KindNPMInstall,
		Files: files,
		InstallOptions: installer.Options{
			RegistryBaseURL: registryBaseURL,
		},
	}, progress)
	if err != nil {
		return fmt.Errorf("npm install: %w", err)
	}

	b.fs.SetFiles(resp.InstalledFiles)
	return nil
}

// Reload terminates every worker unconditionally and rejects every
// outstanding task with pool.ErrReload, then warms a fresh pool of the same
// width bounds.
func (b *Bundler) Reload() {
	b.pool.Reload(pool.Options{
		MinConcurrency: b.opts.MinConcurrency,
		MaxConcurrency: b.opts.MaxConcurrency,
	})
}
