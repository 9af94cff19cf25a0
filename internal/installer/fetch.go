package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/esbuild-dev/bundlerd/internal/cache"
	"github.com/esbuild-dev/bundlerd/internal/cdn"
	"github.com/esbuild-dev/bundlerd/internal/fsvfs"
)

// fetchConcurrency and fetchTimeout are spec.md §4.3's global bound: "10
// simultaneous in-flight requests, each with a 60-second timeout".
const (
	fetchConcurrency = 10
	fetchTimeout     = 60 * time.Second
	fetchRetries     = 3
	fetchBackoff     = 1 * time.Second
)

// Install implements spec.md §4.3's fetch algorithm: resolve, then fetch
// every resolved package concurrently under a bounded queue with retries,
// writing each into /node_modules and rebuilding the script map.
func (in *Installer) Install(ctx context.Context, fs *fsvfs.VFS, opts Options, progress Progress) error {
	if progress == nil {
		progress = noopProgress
	}

	deps, _, err := in.ResolveDependencies(ctx, fs, opts, progress)
	if err != nil {
		return err
	}
	if deps == nil {
		// fingerprint matched: nothing to resolve, and per spec.md's
		// install-idempotence property nothing to fetch either. The
		// script map from the prior install remains valid and in
		// process-local state.
		return nil
	}

	client := newCDNClient(opts)
	var scriptsMu sync.Mutex
	scripts := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for name, version := range deps {
		name, version := name, version
		g.Go(func() error {
			return in.installOne(gctx, fs, client, name, version, progress, &scriptsMu, scripts)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	data, err := json.Marshal(scripts)
	if err != nil {
		return err
	}
	fs.WriteFile(scriptsPath, string(data))

	in.mu.Lock()
	in.scripts = scripts
	in.mu.Unlock()

	progress("info", "install complete")
	return nil
}

func (in *Installer) installOne(ctx context.Context, fs *fsvfs.VFS, client *cdn.Client, name, version string, progress Progress, scriptsMu *sync.Mutex, scripts map[string]string) error {
	pkgJSONPath := resolvedNodeModulesPath(name, "package.json")[1:] // fs keys are normalised without a leading slash

	if fs.Exists(pkgJSONPath) {
		if existing, err := parsePackageJSON(fs.ReadFile(pkgJSONPath)); err == nil && existing.Version == version {
			progress("info", fmt.Sprintf("%s@%s already installed, skipping", name, version))
			recordScripts(existing, name, scriptsMu, scripts)
			return nil
		}
	}

	reqPath := cdn.ModuleRequestPath(name, version)
	hit := in.cache.IsCached(reqPath)
	if hit {
		progress("info", fmt.Sprintf("%s@%s: cache hit", name, version))
	} else {
		progress("info", fmt.Sprintf("%s@%s: cache miss, fetching", name, version))
	}

	data, err := cache.WithCacheData(in.cache, reqPath,
		func() ([]byte, error) { return fetchWithRetries(ctx, client, name, version) },
		cdn.DecodeModuleFiles,
	)
	if err != nil {
		progress("error", fmt.Sprintf("%s@%s: %v", name, version, err))
		return fmt.Errorf("installer: fetch %s@%s: %w", name, version, err)
	}

	for relPath, contents := range data {
		fs.WriteFile(resolvedNodeModulesPath(name, relPath)[1:], string(contents))
	}

	pkg, err := parsePackageJSON(fs.ReadFile(pkgJSONPath))
	if err != nil {
		return fmt.Errorf("installer: %s@%s produced an unreadable package.json: %w", name, version, err)
	}
	recordScripts(pkg, name, scriptsMu, scripts)
	return nil
}

// recordScripts updates the script map per spec.md §4.3 step 6: a string
// bin -> {name: resolve(name, bin)}; an object bin -> one entry per key;
// otherwise if main -> {name: resolve(name, main)}.
func recordScripts(pkg packageJSON, name string, mu *sync.Mutex, scripts map[string]string) {
	mu.Lock()
	defer mu.Unlock()

	if len(pkg.Bin) > 0 {
		var binStr string
		if err := json.Unmarshal(pkg.Bin, &binStr); err == nil {
			scripts[name] = resolvedNodeModulesPath(name, binStr)
			return
		}
		var binObj map[string]string
		if err := json.Unmarshal(pkg.Bin, &binObj); err == nil {
			for binName, entry := range binObj {
				scripts[binName] = resolvedNodeModulesPath(name, entry)
			}
			return
		}
	}
	if pkg.Main != "" {
		scripts[name] = resolvedNodeModulesPath(name, pkg.Main)
	}
}

// fetchWithRetries issues GET /v2/mod/{base64(name@version)} with up to
// fetchRetries retries at a fixed fetchBackoff, each attempt bounded by
// fetchTimeout, per spec.md §4.3's fetch algorithm.
func fetchWithRetries(ctx context.Context, client *cdn.Client, name, version string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= fetchRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		data, err := client.FetchModuleRaw(attemptCtx, name, version)
		cancel()
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt < fetchRetries {
			select {
			case <-time.After(fetchBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}
