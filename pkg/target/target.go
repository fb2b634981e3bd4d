// Package target defines the execution contract between a GDB remote serial
// protocol engine and a single-threaded debuggee (an emulator, an embedded
// core, a VM).
//
// The packet framing layer, the command dispatch table and breakpoint
// bookkeeping live in the protocol engine; this package only models the
// target side: resuming, stopping, interrupting, and reading and writing
// registers and memory.
package target

import (
	"fmt"

	"github.com/remotedbg/gdbtarget/pkg/arch"
)

// Signal is a signal number in GDB's own numbering (see
// gdb/include/gdb/signals.def in the GDB source tree). This numbering is
// part of the remote protocol and is independent of any host OS.
type Signal uint8

const (
	SignalNone Signal = 0 // GDB_SIGNAL_0, "no signal"
	SIGHUP     Signal = 1
	SIGINT     Signal = 2
	SIGQUIT    Signal = 3
	SIGILL     Signal = 4
	SIGTRAP    Signal = 5
	SIGABRT    Signal = 6
	SIGEMT     Signal = 7
	SIGFPE     Signal = 8
	SIGKILL    Signal = 9
	SIGBUS     Signal = 10
	SIGSEGV    Signal = 11
	SIGSYS     Signal = 12
	SIGPIPE    Signal = 13
	SIGALRM    Signal = 14
	SIGTERM    Signal = 15
)

// ResumeAction specifies how a target should be resumed. The zero value is
// a plain continue.
type ResumeAction struct {
	// Step executes a single instruction instead of free-running.
	Step bool
	// Signal is delivered to the target on resume, if not SignalNone.
	Signal Signal
}

func (a ResumeAction) String() string {
	verb := "continue"
	if a.Step {
		verb = "step"
	}
	if a.Signal != SignalNone {
		return fmt.Sprintf("%s(sig=%d)", verb, a.Signal)
	}
	return verb
}

// StopKind enumerates why a resumed target stopped.
type StopKind uint8

const (
	// StopDoneStep reports a completed single step.
	StopDoneStep StopKind = iota
	// StopInterrupt reports an externally requested interrupt (the
	// checkInterrupt callback returned true).
	StopInterrupt
	// StopSwBreak reports a software breakpoint instruction. The reported
	// PC must point at the breakpoint address; see Target.Resume.
	StopSwBreak
	// StopHwBreak reports a hardware breakpoint.
	StopHwBreak
	// StopWatchpoint reports a watchpoint hit; StopReason.Addr holds the
	// data address.
	StopWatchpoint
	// StopSignal reports a signal delivered to the target;
	// StopReason.Signal holds the signal number.
	StopSignal
	// StopExited reports that the target exited; StopReason.Status holds
	// the exit code. Terminal.
	StopExited
	// StopTerminated reports that the target was killed by a signal;
	// StopReason.Signal holds the signal number. Terminal.
	StopTerminated
)

var stopKindNames = map[StopKind]string{
	StopDoneStep:   "done-step",
	StopInterrupt:  "interrupt",
	StopSwBreak:    "sw-break",
	StopHwBreak:    "hw-break",
	StopWatchpoint: "watchpoint",
	StopSignal:     "signal",
	StopExited:     "exited",
	StopTerminated: "terminated",
}

func (k StopKind) String() string {
	if s, ok := stopKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("StopKind(%d)", uint8(k))
}

// StopReason reports why a resumed target stopped. Only the payload fields
// relevant to Kind are meaningful.
type StopReason[A arch.Addr] struct {
	Kind   StopKind
	Signal Signal // StopSignal, StopTerminated
	Status int    // StopExited
	Addr   A      // StopWatchpoint
}

// Terminal reports whether the stop ends the debuggee's life (exit or kill).
func (r StopReason[A]) Terminal() bool {
	return r.Kind == StopExited || r.Kind == StopTerminated
}

func (r StopReason[A]) String() string {
	switch r.Kind {
	case StopSignal, StopTerminated:
		return fmt.Sprintf("%v(sig=%d)", r.Kind, r.Signal)
	case StopExited:
		return fmt.Sprintf("%v(status=%d)", r.Kind, r.Status)
	case StopWatchpoint:
		return fmt.Sprintf("%v(addr=%#x)", r.Kind, uint64(r.Addr))
	default:
		return r.Kind.String()
	}
}

// Target is implemented by a single-threaded debuggee. The protocol engine
// drives it through a Session; exactly one operation is in flight at a
// time and the Target never retains the register files or buffers it is
// handed.
//
// Errors follow a two-tier model: a non-nil error from any method is fatal,
// the session is torn down and never retried. Failures that leave the
// session usable are reported in-band (false from ReadAddrs/WriteAddrs).
type Target[A arch.Addr, R arch.Registers] interface {
	// Resume resumes execution according to action and blocks until the
	// target stops again.
	//
	// checkInterrupt may be nil; when non-nil the execution loop should
	// invoke it every so often (the cadence is the implementation's choice)
	// and, as soon as it returns true, stop immediately with a StopInterrupt
	// reason, even mid-block.
	//
	// On architectures where a breakpoint trap leaves the program counter
	// past the breakpoint instruction, Resume must roll the PC back to the
	// breakpoint address before reporting StopSwBreak. This layer performs
	// no adjustment of its own; omitting it breaks the debugger's resume
	// logic.
	Resume(action ResumeAction, checkInterrupt func() bool) (StopReason[A], error)

	// ReadRegisters populates regs with the full register file. It never
	// fails for a merely inconsistent read; errors are fatal only.
	ReadRegisters(regs R) error

	// WriteRegisters writes the full register file atomically.
	WriteRegisters(regs R) error

	// ReadAddrs reads len(data) bytes starting at start. It returns
	// (false, nil) if the range is inaccessible (MMU fault, unmapped page);
	// the session remains usable and the next access may succeed.
	ReadAddrs(start A, data []byte) (bool, error)

	// WriteAddrs writes data starting at start, with the same non-fatal
	// false result as ReadAddrs for inaccessible ranges.
	WriteAddrs(start A, data []byte) (bool, error)
}
