// Command bundlerd runs the bundler core as a standalone HTTP service: the
// preview/upload surface and the worker pool behind it, wired from process
// flags the way the teacher's own root command wires server.Serve.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ije/rex"

	"github.com/esbuild-dev/bundlerd/internal/cache"
	"github.com/esbuild-dev/bundlerd/internal/config"
	"github.com/esbuild-dev/bundlerd/internal/installer"
	"github.com/esbuild-dev/bundlerd/internal/logging"
	"github.com/esbuild-dev/bundlerd/internal/pool"
	"github.com/esbuild-dev/bundlerd/internal/preview"
	"github.com/esbuild-dev/bundlerd/internal/storage"
)

func portFromAddr(addr string) uint16 {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		portStr = addr
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p <= 0 {
		return 8080
	}
	return uint16(p)
}

func main() {
	c, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(c)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}

	store, err := storage.Open(fmt.Sprintf("bolt:%s/cache.db", c.CacheDir))
	if err != nil {
		log.Fatalf("init cache store: %v", err)
	}

	cch, err := cache.New(256, store)
	if err != nil {
		log.Fatalf("init package cache: %v", err)
	}

	inst := installer.New(cch)
	p := pool.New(pool.Options{
		MinConcurrency: c.WorkerPoolMin,
		MaxConcurrency: c.WorkerPoolMax,
	}, inst)
	log.Debugf("worker pool ready, width %d", p.Size())

	previewStore := preview.New(store, c.PreviewSuffix)

	rex.Use(
		rex.ErrorLogger(log),
		rex.Header("Server", "bundlerd"),
		rex.Cors(rex.CORS{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Content-Length"},
		}),
		preview.Handler(previewStore),
	)

	port := portFromAddr(c.HTTPAddr)
	errc := rex.Serve(rex.ServerConfig{Port: port})
	log.Debugf("bundlerd listening on :%d", port)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-sigc:
	case err := <-errc:
		log.Errorf("server exited: %v", err)
	}

	store.Close()
	log.FlushBuffer()
}
