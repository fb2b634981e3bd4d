package target

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/remotedbg/gdbtarget/pkg/arch"
	"github.com/remotedbg/gdbtarget/pkg/logflags"
)

// State describes where a Session is in its lifecycle.
type State uint8

const (
	// Idle: created, never resumed.
	Idle State = iota
	// Running: a Resume call is in flight.
	Running
	// Stopped: the target stopped and can be inspected or resumed again.
	Stopped
	// Terminated: the target exited, was killed, or a fatal target error
	// tore the session down.
	Terminated
)

var stateNames = [...]string{"idle", "running", "stopped", "terminated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

var (
	// ErrResumeInFlight is returned when a session operation is attempted
	// while a Resume call is still outstanding, for example from inside the
	// checkInterrupt callback. The contract is strictly single-threaded.
	ErrResumeInFlight = errors.New("resume already in flight")

	// ErrSessionTerminated is returned by every operation after the target
	// exited or a fatal target error occurred.
	ErrSessionTerminated = errors.New("session terminated")
)

// Session wraps a Target and enforces the execution contract: states
// {Idle, Running, Stopped, Terminated} with transitions driven exclusively
// by Resume, exactly one operation in flight at a time, and teardown on
// fatal target errors.
//
// A Session is not safe for concurrent use; RequestInterrupt is the single
// exception and may be called from any goroutine.
type Session[A arch.Addr, R arch.Registers] struct {
	t     Target[A, R]
	state State
	fatal error

	interruptRequested int32 // atomic

	log logflags.Logger
}

// NewSession returns a Session in the Idle state.
func NewSession[A arch.Addr, R arch.Registers](t Target[A, R]) *Session[A, R] {
	return &Session[A, R]{t: t, log: logflags.TargetLogger()}
}

// State returns the session's current state.
func (s *Session[A, R]) State() State {
	return s.state
}

// Err returns the fatal target error that terminated the session, if any.
func (s *Session[A, R]) Err() error {
	return s.fatal
}

// RequestInterrupt asks the target to stop at its next interrupt poll
// point. It is routed through the same checkInterrupt callback the protocol
// engine supplies to Resume, so there is a single cancellation path. Safe
// to call from any goroutine, including signal handlers' dispatch
// goroutines.
func (s *Session[A, R]) RequestInterrupt() {
	atomic.StoreInt32(&s.interruptRequested, 1)
}

// Resume resumes the target. Valid only in the Idle and Stopped states; the
// call blocks until the target stops, the checkInterrupt callback returns
// true, or a previously issued RequestInterrupt is observed.
func (s *Session[A, R]) Resume(action ResumeAction, checkInterrupt func() bool) (StopReason[A], error) {
	var zero StopReason[A]
	if err := s.guard(); err != nil {
		return zero, err
	}

	check := func() bool {
		if atomic.LoadInt32(&s.interruptRequested) != 0 {
			return true
		}
		return checkInterrupt != nil && checkInterrupt()
	}

	s.state = Running
	s.log.Debugf("resume %v", action)
	reason, err := s.t.Resume(action, check)
	atomic.StoreInt32(&s.interruptRequested, 0)
	if err != nil {
		s.teardown(err)
		return zero, err
	}

	if reason.Terminal() {
		s.state = Terminated
	} else {
		s.state = Stopped
	}
	s.log.Debugf("stopped: %v (state %v)", reason, s.state)
	return reason, nil
}

// ReadRegisters reads the full register file into regs.
func (s *Session[A, R]) ReadRegisters(regs R) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.t.ReadRegisters(regs); err != nil {
		s.teardown(err)
		return err
	}
	return nil
}

// WriteRegisters writes the full register file.
func (s *Session[A, R]) WriteRegisters(regs R) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.t.WriteRegisters(regs); err != nil {
		s.teardown(err)
		return err
	}
	return nil
}

// ReadAddrs reads target memory. A false result is a non-fatal access
// failure and leaves the session usable.
func (s *Session[A, R]) ReadAddrs(start A, data []byte) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	ok, err := s.t.ReadAddrs(start, data)
	if err != nil {
		s.teardown(err)
		return false, err
	}
	return ok, nil
}

// WriteAddrs writes target memory, with the same non-fatal false result as
// ReadAddrs.
func (s *Session[A, R]) WriteAddrs(start A, data []byte) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	ok, err := s.t.WriteAddrs(start, data)
	if err != nil {
		s.teardown(err)
		return false, err
	}
	return ok, nil
}

func (s *Session[A, R]) guard() error {
	switch s.state {
	case Running:
		return ErrResumeInFlight
	case Terminated:
		return ErrSessionTerminated
	}
	return nil
}

func (s *Session[A, R]) teardown(err error) {
	s.state = Terminated
	if s.fatal == nil {
		s.fatal = err
	}
	s.log.Errorf("fatal target error, tearing down session: %v", err)
}
