package engine

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"
)

const ansiRed = "\x1b[31m"
const ansiReset = "\x1b[0m"

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// FormatDiagnostics renders diagnostics as line/column-annotated text,
// ANSI-coloured only when the ultimate consumer is a TTY (the CLI); HTTP
// and worker-pool callers always get plain text, matching the teacher's
// dev-vs-prod branching in server.go.
func FormatDiagnostics(diags []Diagnostic, colorize bool) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		line := d.Text
		if d.Location != "" {
			line = fmt.Sprintf("%s: %s", d.Location, d.Text)
		}
		if colorize {
			line = ansiRed + line + ansiReset
		}
		out[i] = line
	}
	return out
}

// IsTerminalStderr reports whether the process's own stderr is a TTY,
// gating CLI-side colourisation.
func IsTerminalStderr() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// MergeStderr de-duplicates formatted diagnostic lines against a raw
// stderr stream, per spec.md §4.4: entries that already appear in stderr
// (with or without ANSI escapes) are suppressed; unique formatted entries
// are prepended. Formatting an empty diagnostics list merges to the raw
// stream unchanged (spec.md §8's stderr-merge-idempotence property).
func MergeStderr(rawStderr string, formatted []string) string {
	if len(formatted) == 0 {
		return rawStderr
	}

	plainRaw := stripANSI(rawStderr)
	var unique []string
	for _, line := range formatted {
		if strings.Contains(plainRaw, stripANSI(line)) {
			continue
		}
		unique = append(unique, line)
	}
	if len(unique) == 0 {
		return rawStderr
	}
	return strings.Join(unique, "\n") + "\n" + rawStderr
}
