package engine

import "github.com/mssola/useragent"

// TargetFromUserAgent maps a browser's User-Agent string onto one of the
// esbuild targets this package knows, the same sniffing a CDN build
// endpoint does to serve modern output to modern browsers without a
// client-supplied target query param. Unrecognised or headless agents fall
// back to the widest-compatibility default, chrome67.
func TargetFromUserAgent(ua string) string {
	a := useragent.New(ua)
	name, version := a.Browser()

	switch name {
	case "Chrome", "Chromium":
		if majorVersionAtLeast(version, 90) {
			return "esnext"
		}
		if majorVersionAtLeast(version, 80) {
			return "es2020"
		}
		return "chrome67"
	case "Firefox":
		if majorVersionAtLeast(version, 78) {
			return "es2020"
		}
		return "chrome67"
	case "Safari":
		if majorVersionAtLeast(version, 14) {
			return "es2020"
		}
		return "chrome67"
	default:
		return "chrome67"
	}
}

func majorVersionAtLeast(version string, min int) bool {
	n := 0
	for _, r := range version {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n >= min
}
