// Package debug provides always-on assertion helpers for the simulation
// core's internal invariants (exactly one open substep per entity, no
// double-resolution within a substep, descriptor indices contiguous, etc).
//
// Adapted from the teacher's build-tag-gated cmn/debug/debug_on.go: the
// simulation core's invariants must hold in every build, not only a
// "debug" build, so the tag is dropped and the module-verbosity machinery
// is trimmed down to the panic-on-violation helpers this repo actually
// uses.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package debug

import (
	"bytes"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/glog"
)

func _panic(a ...interface{}) {
	msg := "DEBUG PANIC: "
	if len(a) > 0 {
		msg += fmt.Sprint(a...)
	}
	buffer := bytes.NewBuffer(make([]byte, 0, 1024))
	fmt.Fprint(buffer, msg)
	for i := 2; i < 9; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if !strings.Contains(file, "josh") {
			break
		}
		f := filepath.Base(file)
		if buffer.Len() > len(msg) {
			buffer.WriteString(" <- ")
		}
		fmt.Fprintf(buffer, "%s:%d", f, line)
	}
	glog.Errorf("%s", buffer.Bytes())
	glog.Flush()
	panic(msg)
}

// Assert panics (after logging a caller chain) if cond is false.
func Assert(cond bool, a ...interface{}) {
	if !cond {
		_panic(a...)
	}
}

// Assertf is Assert with a format string.
func Assertf(cond bool, f string, a ...interface{}) {
	if !cond {
		_panic(fmt.Sprintf(f, a...))
	}
}

// AssertMsg panics with msg if cond is false.
func AssertMsg(cond bool, msg string) {
	if !cond {
		_panic(msg)
	}
}

// AssertNoErr panics if err is non-nil.
func AssertNoErr(err error) {
	if err != nil {
		_panic(err)
	}
}

// Func runs f; used to gate expensive consistency checks behind a single
// call site so they read the same way as the teacher's debug.Func.
func Func(f func()) { f() }
