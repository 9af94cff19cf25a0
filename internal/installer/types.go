// Package installer implements the Dependency Installer: resolving a
// transitive dependency set from a remote CDN, memoising results, fetching
// package tarballs concurrently under a bounded queue with retries, and
// populating a virtual /node_modules tree plus an executable-script map.
package installer

import (
	"encoding/json"
	"errors"
)

// ErrRetriesExhausted is returned when a per-package fetch fails after all
// retries, matching spec.md §4.3's "On retry exhaustion, propagate the
// error."
var ErrRetriesExhausted = errors.New("installer: retries exhausted")

// ErrLockfileDrift is returned by ResolveDependencies when FrozenLockfile is
// set and the computed fingerprint differs from the one already persisted
// on the FS. This is an additive, opt-in feature (see SPEC_FULL.md) and
// never fires on the default path.
var ErrLockfileDrift = errors.New("installer: dependency set drifted from the frozen lockfile")

// Options configures a resolution or install.
type Options struct {
	RegistryBaseURL string
	// Overrides are merged into the package.json-derived dependency map,
	// taking precedence over it.
	Overrides map[string]string
	// FrozenLockfile rejects with ErrLockfileDrift instead of silently
	// re-resolving when the fingerprint has changed.
	FrozenLockfile bool
}

// Progress reports a phase boundary or a per-package hit/miss, mirroring
// spec.md §4.3's ('info'|'error', message) progress record.
type Progress func(level, message string)

func noopProgress(string, string) {}

// packageJSON is the subset of package.json fields the installer reads.
type packageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Main             string            `json:"main"`
	Bin              json.RawMessage   `json:"bin"`
	Dependencies     map[string]string `json:"dependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Scripts          map[string]string `json:"scripts"`
}

func parsePackageJSON(contents string) (packageJSON, error) {
	var pkg packageJSON
	if contents == "" {
		return pkg, errors.New("installer: package.json is empty or missing")
	}
	err := json.Unmarshal([]byte(contents), &pkg)
	return pkg, err
}

// mergedDependencies unions dependencies and peerDependencies (deliberately
// excluding devDependencies) with caller-supplied overrides.
func mergedDependencies(pkg packageJSON, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(pkg.Dependencies)+len(pkg.PeerDependencies)+len(overrides))
	for name, version := range pkg.Dependencies {
		out[name] = version
	}
	for name, version := range pkg.PeerDependencies {
		out[name] = version
	}
	for name, version := range overrides {
		out[name] = version
	}
	return out
}
