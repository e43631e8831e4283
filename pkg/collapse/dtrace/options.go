// Package dtrace folds the output of DTrace `ustack()` aggregations.
//
// Input is a header, a blank line, then stacks of the form
//
//	unix`tsc_gethrtimeunscaled+0x21
//	genunix`gethrtime_unscaled+0xa
//	unix`sys_syscall+0x10e
//	  1
//
// where frames are listed leaf first and the last line is the sample count.
package dtrace

import "github.com/danpilch/foldstack/pkg/collapse"

// Options configures a Folder.
type Options struct {
	// Demangle function names.
	Demangle bool

	// IncludeOffset keeps function offsets on every frame except the leaf.
	IncludeOffset bool

	// Threads is the number of workers. Zero means one.
	Threads int
}

// DefaultOptions returns the defaults: no demangling, offsets stripped and one
// worker per CPU.
func DefaultOptions() Options {
	return Options{
		Threads: collapse.DefaultThreads,
	}
}
