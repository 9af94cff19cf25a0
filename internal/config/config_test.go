package config

import "testing"

func TestParseDefaults(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.WorkerPoolMin != 2 || c.WorkerPoolMax != 5 {
		t.Fatalf("pool bounds = [%d,%d], want [2,5]", c.WorkerPoolMin, c.WorkerPoolMax)
	}
	if c.CDNPrimary != "cdn.jsdelivr.net" || c.CDNFallback != "unpkg.com" {
		t.Fatalf("unexpected cdn defaults: %+v", c)
	}
	if c.RegistryBaseURL != "https://cdn.jsdelivr.net" {
		t.Fatalf("registry base url default = %q", c.RegistryBaseURL)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]string{"-worker-pool-min=3", "-registry-base-url=https://example.test"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.WorkerPoolMin != 3 {
		t.Fatalf("worker-pool-min = %d, want 3", c.WorkerPoolMin)
	}
	if c.RegistryBaseURL != "https://example.test" {
		t.Fatalf("registry-base-url = %q", c.RegistryBaseURL)
	}
}
