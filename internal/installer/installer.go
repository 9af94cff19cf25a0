package installer

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/esbuild-dev/bundlerd/internal/cache"
	"github.com/esbuild-dev/bundlerd/internal/cdn"
	"github.com/esbuild-dev/bundlerd/internal/fsvfs"
)

// systemHashPath and scriptsPath are the FS-resident state paths spec.md
// §6 names.
const (
	systemHashPath = "~system/package-json-hash"
	scriptsPath    = "node_modules/.scripts.json"
)

// Installer is the Dependency Installer. One Installer is shared across
// every worker in the pool, the way the teacher shares a single
// buildQueue/cache across request handlers.
type Installer struct {
	cache *cache.Cache

	mu sync.Mutex
	// scripts holds the most recent successful install's script map, kept
	// in process-local state for DependencyScripts lookups per spec.md
	// §4.3.
	scripts map[string]string
	// highestMajor is the legacy "highest major per package" table
	// spec.md §9 describes as present in the source but unused by the
	// authoritative return value. Kept here for diagnostics only.
	highestMajor map[string]string
}

// New returns an Installer backed by the given Package Cache.
func New(c *cache.Cache) *Installer {
	return &Installer{
		cache:        c,
		scripts:      make(map[string]string),
		highestMajor: make(map[string]string),
	}
}

func newCDNClient(opts Options) *cdn.Client {
	return cdn.NewClient(opts.RegistryBaseURL)
}

func readPackageJSON(fs *fsvfs.VFS) (packageJSON, error) {
	p := path.Join(fs.Cwd(), "package.json")
	return parsePackageJSON(fs.ReadFile(p))
}

func splitFields(line string) []string {
	return strings.Fields(line)
}

// PackageScript derives (cmd, args) for scriptName from <cwd>/package.json's
// "scripts" map. It does not attempt full shell-quoting semantics: the
// script string is split on whitespace, matching the simplest case every
// real package.json "scripts" entry normally needs.
func (in *Installer) PackageScript(fs *fsvfs.VFS, scriptName string) (cmd string, args []string, err error) {
	pkg, err := readPackageJSON(fs)
	if err != nil {
		return "", nil, err
	}
	line, ok := pkg.Scripts[scriptName]
	if !ok {
		return "", nil, fmt.Errorf("installer: no script named %q", scriptName)
	}
	fields := splitFields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("installer: script %q is empty", scriptName)
	}
	return fields[0], fields[1:], nil
}

// DependencyScripts returns the absolute resolved path registered for cmd
// by the most recent successful Install, or "" if none is registered.
func (in *Installer) DependencyScripts(cmd string) (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	p, ok := in.scripts[cmd]
	return p, ok
}

func resolvedNodeModulesPath(name, relative string) string {
	return "/" + path.Join("node_modules", name, relative)
}
