package main

import (
	"path/filepath"
	"runtime"
	"strings"
)

var dangerousWindows = []string{`c:\`, `c:\windows`, `c:\program files`, `c:\program files (x86)`, `c:\users`}
var dangerousUnix = []string{"/", "/etc", "/bin", "/sbin", "/usr", "/lib", "/boot", "/home", "/root"}

// IsDangerousPath reports whether path is a system directory or one of the
// extra protected paths.
func IsDangerousPath(path string, protected []string) bool {
	norm := normalizePath(path)

	builtin := dangerousUnix
	if runtime.GOOS == "windows" {
		builtin = dangerousWindows
	}
	for _, p := range builtin {
		if norm == p {
			return true
		}
	}
	for _, p := range protected {
		if norm == normalizePath(p) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		if len(path) > 3 {
			path = strings.TrimRight(path, `\`)
		}
	}
	return path
}
