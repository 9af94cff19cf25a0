// Package config parses the process flags every entrypoint shares, mirroring
// the teacher's flag-based Serve wiring in server.go.
package config

import (
	"flag"
	"fmt"
)

// Config holds every flag-derived setting the worker pool, installer, cache
// and preview server need at startup.
type Config struct {
	HTTPAddr string

	WorkerPoolMin int
	WorkerPoolMax int

	RegistryBaseURL string
	CacheDir        string

	CDNPrimary  string
	CDNFallback string

	PreviewSuffix string

	LogLevel string
	LogDir   string
}

// Parse reads flags from args (excluding the program name) into a Config,
// applying spec.md's defaults where a flag is omitted.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("bundlerd", flag.ContinueOnError)

	c := &Config{}
	fs.StringVar(&c.HTTPAddr, "http-addr", ":8080", "preview/admin http listener address")
	fs.IntVar(&c.WorkerPoolMin, "worker-pool-min", 2, "minimum worker pool width")
	fs.IntVar(&c.WorkerPoolMax, "worker-pool-max", 5, "maximum worker pool width")
	fs.StringVar(&c.RegistryBaseURL, "registry-base-url", "", "CDN registry base url used to resolve and fetch npm packages")
	fs.StringVar(&c.CacheDir, "cache-dir", ".bundlerd", "directory holding the persistent package cache's bbolt file")
	fs.StringVar(&c.CDNPrimary, "cdn-primary", "cdn.jsdelivr.net", "primary module CDN host")
	fs.StringVar(&c.CDNFallback, "cdn-fallback", "unpkg.com", "fallback module CDN host (recorded in Config; no request falls back to it)")
	fs.StringVar(&c.PreviewSuffix, "preview-suffix", ".preview.local", "hostname suffix a preview request's project id is extracted from")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&c.LogDir, "log-dir", "", "log dir, empty logs to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if c.RegistryBaseURL == "" {
		c.RegistryBaseURL = "https://" + c.CDNPrimary
	}

	return c, nil
}
