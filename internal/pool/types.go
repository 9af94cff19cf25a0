// Package pool implements the Worker Pool & IPC: loading the embedded
// esbuild engine, warming a pool of background executors, dispatching
// correlated request/response/progress messages, and serialising
// cancellation on reload. Workers here are goroutines rather than Web
// Workers (see SPEC_FULL.md's REDESIGN note), but every ordering and
// correlation invariant of spec.md §4.4/§5 is preserved.
package pool

import (
	"errors"

	"github.com/esbuild-dev/bundlerd/internal/engine"
	"github.com/esbuild-dev/bundlerd/internal/fsvfs"
	"github.com/esbuild-dev/bundlerd/internal/installer"
)

// ErrReload is the rejection reason for every task outstanding when Reload
// is called, matching spec.md's literal "Task aborted due to reload".
var ErrReload = errors.New("Task aborted due to reload")

// ErrQueueTimeout is returned by Submit when no worker becomes available
// before the caller's context deadline, per spec.md §4.4's "The queue
// throws on timeout."
var ErrQueueTimeout = errors.New("pool: queue timeout waiting for an idle worker")

// Kind discriminates the three request shapes spec.md §4.4 names.
type Kind int

const (
	KindTransform Kind = iota
	KindBuild
	KindNPMInstall
)

// Request is a tagged union of the three accepted request shapes.
type Request struct {
	Kind Kind

	// Transform
	Code              string
	TransformOptions  engine.TransformOptions

	// Build
	Files           map[string]string
	BuildOptions    engine.BuildOptions

	// NPMInstall
	InstallOptions installer.Options
}

// Response is the terminal payload returned to a caller of Submit. Engine
// diagnostics (compile/bundle errors) are delivered here, as a successful
// result carrying Stderr/Stdout, per spec.md §4.4's "Error protocol" — a
// protocol-level error (the `error` Submit itself returns) is reserved for
// worker-harness failures.
type Response struct {
	Stdout string
	Stderr string

	TransformResult *engine.TransformResult
	BuildResult     *engine.BuildResult

	// InstalledFiles is the npm_install handler's flushed FS snapshot,
	// merged back into the caller-visible VFS by the caller.
	InstalledFiles map[string]fsvfs.FileRecord
}

// ProgressMsg is a single non-terminal progress frame, delivered in the
// exact order the worker produced it.
type ProgressMsg struct {
	Level   string
	Message string
}

// ProgressFunc receives progress frames for a single submitted task.
type ProgressFunc func(ProgressMsg)
