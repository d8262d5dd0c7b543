package base

import "fmt"

// Assert panics with diagnostics when an internal invariant is violated.
// Never used for control flow; a failed assertion means the index is
// poisoned and the process should not continue trusting it.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("ridx: invariant violation: "+format, args...))
	}
}
