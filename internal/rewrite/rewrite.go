// Package rewrite provides the path transformations applied to proxied requests.
package rewrite

import "strings"

// Func maps an incoming request path to the path sent upstream.
type Func func(path string) string

// Identity leaves the path unchanged.
func Identity(path string) string {
	return path
}

// StripPrefix returns a Func that removes prefix from the start of the path
// exactly once. Paths that do not start with prefix pass through unchanged.
//
// The result is not idempotent: "/api/api/x" becomes "/api/x" on the first
// application and "/x" on the second.
func StripPrefix(prefix string) Func {
	return func(path string) string {
		if prefix == "" || !strings.HasPrefix(path, prefix) {
			return path
		}
		return path[len(prefix):]
	}
}
