package forkjoin

import "fmt"

// assertf reports a programmer contract violation per spec.md §7: these are
// bugs in the caller, not recoverable conditions, so they panic rather than
// return an error — the Go analogue of the original's assert()-and-abort.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("forkjoin: "+format, args...))
	}
}
