package pool

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/esbuild-dev/bundlerd/internal/engine"
	"github.com/esbuild-dev/bundlerd/internal/fsvfs"
	"github.com/esbuild-dev/bundlerd/internal/installer"
)

// task is the mailbox entry a Pool keeps in its waiting table: a
// correlation id, the request, and the channels a terminal/non-terminal
// status is routed to. Exactly one worker is ever handed a given task.
type task struct {
	id       string
	req      Request
	resolve  chan Response
	reject   chan error
	progress ProgressFunc
}

// worker owns a private FS and runs requests sequentially from its inbox.
// Neither the FS nor any engine state is shared across workers, per
// spec.md §5's "Resource ownership".
//
// mu guards stopped and serialises it against submit/stop so a Pool can pop
// a worker off its idle list and later decide to reload it without ever
// sending on (or closing) the inbox from both sides at once.
type worker struct {
	inbox chan *task
	fs    *fsvfs.VFS
	inst  *installer.Installer

	mu      sync.Mutex
	stopped bool
}

func newWorker(inst *installer.Installer) *worker {
	w := &worker{
		inbox: make(chan *task),
		fs:    fsvfs.New(),
		inst:  inst,
	}
	go w.run()
	return w
}

// submit hands t to the worker's inbox, returning false instead of sending
// if the worker has already been stopped. A caller that loses this race
// must treat the task as rejected rather than retry the send.
func (w *worker) submit(t *task) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.inbox <- t
	return true
}

// stop marks the worker stopped and closes the inbox; the run loop exits
// once drained. Holding mu here means stop can never race a concurrent
// submit onto a channel it is in the middle of closing. A worker that is
// mid-task when stop is called still finishes that task and attempts to
// reply — the buffered resolve/reject channel absorbs that reply even if
// the pool has already stopped listening (a late reply after reload).
func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	close(w.inbox)
}

func (w *worker) run() {
	for t := range w.inbox {
		w.handle(t)
	}
}

func (w *worker) handle(t *task) {
	switch t.req.Kind {
	case KindTransform:
		w.handleTransform(t)
	case KindBuild:
		w.handleBuild(t)
	case KindNPMInstall:
		w.handleNPMInstall(t)
	}
}

func (w *worker) handleTransform(t *task) {
	w.fs.Reset()
	start := time.Now()
	result := engine.Transform(t.req.Code, t.req.TransformOptions)
	duration := time.Since(start)

	if len(result.Errors) > 0 {
		resp := diagnosticResponse(result.Errors, result.Warnings, duration)
		t.resolve <- resp
		return
	}

	formatted := engine.FormatDiagnostics(result.Warnings, false)
	stderr := engine.MergeStderr("", formatted)

	t.resolve <- Response{
		Stderr:          stderr,
		TransformResult: &result,
	}
}

func (w *worker) handleBuild(t *task) {
	w.fs.Reset()
	w.fs.SetFiles(toFileRecords(t.req.Files))

	buildOpts := t.req.BuildOptions
	buildOpts.Files = snapshotContents(w.fs)

	start := time.Now()
	result := engine.Build(buildOpts)
	duration := time.Since(start)

	if len(result.Errors) > 0 {
		resp := diagnosticResponse(result.Errors, result.Warnings, duration)
		t.resolve <- resp
		return
	}

	formatted := engine.FormatDiagnostics(result.Warnings, false)
	stderr := engine.MergeStderr("", formatted)

	t.resolve <- Response{
		Stderr:      stderr,
		BuildResult: &result,
	}
}

func (w *worker) handleNPMInstall(t *task) {
	localFS := fsvfs.New()
	localFS.SetFiles(toFileRecords(t.req.Files))

	progress := func(level, message string) {
		if t.progress != nil {
			t.progress(ProgressMsg{Level: level, Message: message})
		}
	}

	err := w.inst.Install(context.Background(), localFS, t.req.InstallOptions, progress)
	if err != nil {
		// Reload may already have filled the one-slot reject buffer with
		// ErrReload; a late failure from a stale worker is then dropped.
		select {
		case t.reject <- err:
		default:
		}
		return
	}

	t.resolve <- Response{
		InstalledFiles: localFS.RawFiles(),
	}
}

func snapshotContents(fs *fsvfs.VFS) map[string]string {
	raw := fs.RawFiles()
	out := make(map[string]string, len(raw))
	for p, rec := range raw {
		out[p] = rec.Contents
	}
	return out
}

func toFileRecords(files map[string]string) map[string]fsvfs.FileRecord {
	out := make(map[string]fsvfs.FileRecord, len(files))
	for p, contents := range files {
		out[p] = fsvfs.FileRecord{Path: p, Contents: contents}
	}
	return out
}

// diagnosticResponse implements spec.md §4.4's error protocol: an engine
// rejection (or, here, a non-empty Errors slice) is still delivered as a
// resolved IPC result carrying stderr and a JSON stdout of
// {errors, warnings}.
func diagnosticResponse(errs, warnings []engine.Diagnostic, duration time.Duration) Response {
	formattedErrs := engine.FormatDiagnostics(errs, false)
	stderr := engine.MergeStderr("", formattedErrs)

	payload, _ := json.Marshal(map[string]any{
		"errors":   errs,
		"warnings": warnings,
	})

	return Response{
		Stderr: stderr,
		Stdout: string(payload),
	}
}
