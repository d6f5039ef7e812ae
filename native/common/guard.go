package common

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

var (
	// ErrModulePaused is returned when a module has been halted by operations.
	ErrModulePaused = errors.New("module paused")
	// ErrReentrancy is returned when a guarded operation is entered while
	// another guarded operation is still in flight.
	ErrReentrancy = errors.New("reentrancy detected")
)

// PauseView exposes the operational kill-switch state per module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a config-driven PauseView: the named modules stay paused for
// the lifetime of the process.
type StaticPauses map[string]bool

// IsPaused implements the PauseView interface.
func (p StaticPauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	return p[module]
}

// ReentrancyGuard protects state-mutating operations that perform external
// asset transfers. It serializes concurrent callers behind a mutex, since the
// engines are driven directly by concurrent RPC handlers, and records the
// holding goroutine so a callback that re-enters the engine before the
// current operation has finished fails with ErrReentrancy instead of
// deadlocking. Enter must be paired with a deferred Exit so the lock is
// released on every exit path.
type ReentrancyGuard struct {
	mu     sync.Mutex
	holder atomic.Uint64
}

// Enter acquires the guard, blocking while another goroutine holds it. It
// fails with ErrReentrancy when the calling goroutine already holds the
// guard.
func (g *ReentrancyGuard) Enter() error {
	if g == nil {
		return nil
	}
	id := goroutineID()
	if id != 0 && g.holder.Load() == id {
		return ErrReentrancy
	}
	g.mu.Lock()
	g.holder.Store(id)
	return nil
}

// Exit releases the guard unconditionally.
func (g *ReentrancyGuard) Exit() {
	if g == nil {
		return
	}
	g.holder.Store(0)
	g.mu.Unlock()
}

// goroutineID parses the current goroutine's identifier from its stack
// header ("goroutine N [..."). Identifiers are unique among live goroutines
// and never zero.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
