package installer

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/esbuild-dev/bundlerd/internal/cache"
	"github.com/esbuild-dev/bundlerd/internal/cdn"
	"github.com/esbuild-dev/bundlerd/internal/fsvfs"
)

// versionGreater reports whether a outranks b, falling back to a plain
// string comparison when either side isn't valid semver (npm dist-tag
// resolution can surface pre-release or build-tagged versions).
func versionGreater(a, b string) bool {
	av, aerr := semver.NewVersion(a)
	bv, berr := semver.NewVersion(b)
	if aerr != nil || berr != nil {
		return a > b
	}
	return av.GreaterThan(bv)
}

// ResolveDependencies implements spec.md §4.3's resolution algorithm. It
// returns (nil, fingerprint, nil) when the computed fingerprint matches the
// one already persisted at /~system/package-json-hash — "nothing to do" —
// and otherwise returns the freshly resolved name->version map.
func (in *Installer) ResolveDependencies(ctx context.Context, fs *fsvfs.VFS, opts Options, progress Progress) (map[string]string, string, error) {
	if progress == nil {
		progress = noopProgress
	}

	pkg, err := readPackageJSON(fs)
	if err != nil {
		return nil, "", err
	}

	deps := mergedDependencies(pkg, opts.Overrides)
	fingerprint := cdn.Fingerprint(deps)

	previous := fs.ReadFile(systemHashPath)
	if previous == fingerprint {
		progress("info", "dependencies up to date, nothing to resolve")
		return nil, fingerprint, nil
	}
	if opts.FrozenLockfile && previous != "" {
		return nil, fingerprint, ErrLockfileDrift
	}

	client := newCDNClient(opts)
	reqPath := cdn.DepsRequestPath(fingerprint)

	progress("info", "resolving dependencies from "+opts.RegistryBaseURL)
	distTags, err := cache.WithLocalCacheData(in.cache, reqPath,
		func() ([]byte, error) { return client.GetRaw(ctx, reqPath) },
		cdn.DecodeDistTags,
	)
	if err != nil {
		progress("error", err.Error())
		return nil, fingerprint, err
	}

	resolved := make(map[string]string, len(distTags))
	in.mu.Lock()
	for majorKey, version := range distTags {
		name := cdn.StripMajorSuffix(majorKey)
		resolved[name] = version
		// legacy dedup table: only the highest major wins. Unused by the
		// authoritative return value, kept for parity with spec.md §9.
		if prev, ok := in.highestMajor[name]; !ok || versionGreater(version, prev) {
			in.highestMajor[name] = version
		}
	}
	in.mu.Unlock()

	fs.WriteFile(systemHashPath, fingerprint)
	progress("info", "resolved dependencies")
	return resolved, fingerprint, nil
}
