// Package stacktrace trims raw goroutine stacks down to this module's frames.
package stacktrace

import "strings"

const internalMarker = "/internal/"

// InternalPaths returns the "internal/...go:line" locations found in a raw
// stack trace, as produced by runtime/debug.Stack.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines)/2)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, internalMarker) {
			continue
		}

		idx := strings.Index(line, ".go:")
		if idx == -1 {
			continue
		}

		loc := line
		if end := strings.IndexByte(line[idx:], ' '); end != -1 {
			loc = line[:idx+end]
		}

		if i := strings.Index(loc, internalMarker); i != -1 {
			paths = append(paths, loc[i+1:])
		}
	}

	return paths
}
