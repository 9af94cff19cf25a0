package pool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/esbuild-dev/bundlerd/internal/cache"
	"github.com/esbuild-dev/bundlerd/internal/engine"
	"github.com/esbuild-dev/bundlerd/internal/installer"
	"github.com/esbuild-dev/bundlerd/internal/storage"
)

func newTestInstaller(t *testing.T) *installer.Installer {
	t.Helper()
	store, err := storage.Open("bolt:" + t.TempDir() + "/cache.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	c, err := cache.New(64, store)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return installer.New(c)
}

func TestPoolWidthClampedToBounds(t *testing.T) {
	p := New(Options{MinConcurrency: 3, MaxConcurrency: 3}, newTestInstaller(t))
	if got := p.Size(); got != 3 {
		t.Fatalf("pool size = %d, want 3", got)
	}
}

func TestPoolWidthDefaultsWhenUnset(t *testing.T) {
	p := New(Options{}, newTestInstaller(t))
	size := p.Size()
	if size < 2 || size > 5 {
		t.Fatalf("pool size = %d, want within [2,5]", size)
	}
}

func TestSubmitTransformRoundTrip(t *testing.T) {
	p := New(Options{MinConcurrency: 1, MaxConcurrency: 1}, newTestInstaller(t))

	req := Request{
		Kind: KindTransform,
		Code: "const x: number = 1; console.log(x)",
		TransformOptions: engine.TransformOptions{
			Loader: "ts",
		},
	}

	resp, err := p.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.TransformResult == nil {
		t.Fatal("expected a transform result")
	}
	if len(resp.TransformResult.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", resp.TransformResult.Errors)
	}
}

func TestSubmitTransformDiagnosticIsNotAProtocolError(t *testing.T) {
	p := New(Options{MinConcurrency: 1, MaxConcurrency: 1}, newTestInstaller(t))

	req := Request{
		Kind: KindTransform,
		Code: "let a =",
		TransformOptions: engine.TransformOptions{
			Loader: "js",
		},
	}

	resp, err := p.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("a syntax error must surface as a resolved diagnostic response, not a Submit error: %v", err)
	}
	if resp.Stdout == "" {
		t.Fatal("expected a JSON errors/warnings payload in Stdout")
	}
}

// slowWorker-style scenario: a task that blocks forever is rejected with
// ErrReload when Reload fires, and the pool recovers to serve a later
// submission normally. Mirrors spec.md §8 scenario 6.
func TestReloadRejectsInFlightTaskAndPoolRecovers(t *testing.T) {
	inst := newTestInstaller(t)
	p := New(Options{MinConcurrency: 1, MaxConcurrency: 1}, inst)

	// a registry that does not answer until the test ends keeps the
	// install blocked in its dependency-resolution request.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { <-release }))
	defer srv.Close()
	defer close(release)

	blocked := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		req := Request{
			Kind: KindNPMInstall,
			Files: map[string]string{
				"app/package.json": `{"name":"x","dependencies":{"left-pad":"1.0.0"}}`,
			},
			InstallOptions: installer.Options{RegistryBaseURL: srv.URL},
		}
		close(blocked)
		_, err := p.Submit(context.Background(), req, nil)
		done <- err
	}()

	<-blocked
	// give the worker a moment to pick the task off its inbox before we
	// reload out from under it.
	time.Sleep(20 * time.Millisecond)

	p.Reload(Options{MinConcurrency: 1, MaxConcurrency: 1})

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected the in-flight task to be rejected")
		}
		if ok, _ := regexp.MatchString("(?i)reload", err.Error()); !ok {
			t.Fatalf("rejection reason %q does not mention reload", err.Error())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight task was never rejected after reload")
	}

	// the new pool must still serve requests.
	resp, err := p.Submit(context.Background(), Request{
		Kind: KindTransform,
		Code: "1 + 1",
		TransformOptions: engine.TransformOptions{
			Loader: "js",
		},
	}, nil)
	if err != nil {
		t.Fatalf("submit after reload: %v", err)
	}
	if resp.TransformResult == nil {
		t.Fatal("expected a transform result from the recovered pool")
	}
}

// TestConcurrentSubmitAndReloadNeverPanics hammers Submit and Reload
// concurrently on a single-worker pool. It does not assert on outcomes
// beyond "no panic and every Submit returns" — the point is to race the
// idle-pop-then-send window against a concurrent worker teardown, which a
// sleep-based test can't reliably hit.
func TestConcurrentSubmitAndReloadNeverPanics(t *testing.T) {
	inst := newTestInstaller(t)
	p := New(Options{MinConcurrency: 1, MaxConcurrency: 1}, inst)

	const rounds = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			p.Reload(Options{MinConcurrency: 1, MaxConcurrency: 1})
		}
	}()

	for i := 0; i < rounds; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		p.Submit(ctx, Request{Kind: KindTransform, Code: "1", TransformOptions: engine.TransformOptions{Loader: "js"}}, nil)
		cancel()
	}

	<-done
}

func TestSubmitRespectsCallerContextTimeout(t *testing.T) {
	p := New(Options{MinConcurrency: 1, MaxConcurrency: 1}, newTestInstaller(t))

	// exhaust the only worker with an install against a registry that does
	// not answer until the test ends.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { <-release }))
	defer srv.Close()
	defer close(release)

	go p.Submit(context.Background(), Request{
		Kind: KindNPMInstall,
		Files: map[string]string{
			"app/package.json": `{"name":"x","dependencies":{"left-pad":"1.0.0"}}`,
		},
		InstallOptions: installer.Options{RegistryBaseURL: srv.URL},
	}, nil)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Submit(ctx, Request{Kind: KindTransform, Code: "1", TransformOptions: engine.TransformOptions{Loader: "js"}}, nil)
	if err != ErrQueueTimeout {
		t.Fatalf("got %v, want ErrQueueTimeout", err)
	}
}
