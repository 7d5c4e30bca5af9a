// Package oplock serializes conflicting bulk mutations against shared
// locale files. A single process-wide operation slot admits one holder at
// a time (re-entrant for the same operation type), with an optional FIFO
// wait queue, and a stale-lock safety net reclaims the slot from a holder
// that crashed or forgot to release. A separate per-file lock map guards
// individual writes, with a much shorter staleness window and a minimum
// spacing between consecutive writes.
package oplock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OperationType identifies a class of bulk operation; two operations of
// the same type may nest, different types conflict.
type OperationType string

const (
	// StaleAfter is how long a global lock may be held before the next
	// IsHeld check reclaims it. A safety net, not a normal code path.
	StaleAfter = 5 * time.Minute

	// FileStaleAfter is the per-file lock staleness window.
	FileStaleAfter = 30 * time.Second

	// MinWriteSpacing is the minimum delay between consecutive file
	// writes across all files, smoothing write bursts.
	MinWriteSpacing = 50 * time.Millisecond
)

var (
	// ErrLockBusy reports a fail-fast acquire against a different holder.
	ErrLockBusy = errors.New("operation lock held by a conflicting operation")
	// ErrLockTimeout reports a queued acquire that was not served in time.
	ErrLockTimeout = errors.New("timed out waiting for operation lock")
	// ErrFileLocked reports a file-lock acquire against a different holder.
	ErrFileLocked = errors.New("file locked by another operation")
)

// OperationLock describes the current holder.
type OperationLock struct {
	ID          uuid.UUID
	Type        OperationType
	Description string
	StartTime   time.Time
	count       int
}

// FileLock is one entry of the per-file lock map.
type FileLock struct {
	Path      string
	Holder    OperationType
	Timestamp time.Time
}

type waiter struct {
	typ     OperationType
	desc    string
	granted chan *OperationLock
}

// Logf receives stale-lock reclamation notices and similar self-healing
// events. The zero value discards them.
type Logf func(format string, args ...any)

// Manager owns the single global operation slot and the file-lock map.
// Construct one per hosting process; tests construct one per test.
type Manager struct {
	mu        sync.Mutex
	holder    *OperationLock
	waiters   []*waiter
	fileLocks map[string]*FileLock
	lastWrite time.Time
	logf      Logf

	// now is swappable so staleness can be tested without sleeping.
	now func() time.Time
}

// NewManager creates an idle lock manager. logf may be nil.
func NewManager(logf Logf) *Manager {
	return &Manager{
		fileLocks: make(map[string]*FileLock),
		logf:      logf,
		now:       time.Now,
	}
}

func (m *Manager) log(format string, args ...any) {
	if m.logf != nil {
		m.logf(format, args...)
	}
}

// ---------------------------------------------------------------------------
// Global operation lock
// ---------------------------------------------------------------------------

// Acquire takes the global slot, failing fast with ErrLockBusy when a
// different operation type holds it. Same-type acquisition is re-entrant.
func (m *Manager) Acquire(typ OperationType, description string) (*OperationLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reclaimStaleLocked()
	if m.holder != nil {
		if m.holder.Type == typ {
			m.holder.count++
			return m.holder, nil
		}
		return nil, ErrLockBusy
	}
	m.holder = m.newLockLocked(typ, description)
	return m.holder, nil
}

// AcquireWait takes the global slot, joining a FIFO queue when it is held
// by a different type. It returns ErrLockTimeout if not served within
// timeout, or the context's error on cancellation.
func (m *Manager) AcquireWait(ctx context.Context, typ OperationType, description string, timeout time.Duration) (*OperationLock, error) {
	m.mu.Lock()
	m.reclaimStaleLocked()
	if m.holder == nil {
		m.holder = m.newLockLocked(typ, description)
		lock := m.holder
		m.mu.Unlock()
		return lock, nil
	}
	if m.holder.Type == typ {
		m.holder.count++
		lock := m.holder
		m.mu.Unlock()
		return lock, nil
	}

	w := &waiter{typ: typ, desc: description, granted: make(chan *OperationLock, 1)}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lock := <-w.granted:
		return lock, nil
	case <-timer.C:
		m.removeWaiter(w)
		// The grant may have raced the timeout; honor it if so.
		select {
		case lock := <-w.granted:
			return lock, nil
		default:
		}
		return nil, ErrLockTimeout
	case <-ctx.Done():
		m.removeWaiter(w)
		select {
		case lock := <-w.granted:
			return lock, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// Release drops one level of the holder's re-entrancy; the final release
// promotes the next waiter directly into Held. Releasing a type that is
// not the current holder is a no-op.
func (m *Manager) Release(typ OperationType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.holder == nil || m.holder.Type != typ {
		return
	}
	m.holder.count--
	if m.holder.count > 0 {
		return
	}
	m.promoteLocked()
}

// IsHeld reports whether the slot is occupied, reclaiming a stale holder
// first.
func (m *Manager) IsHeld() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reclaimStaleLocked()
	return m.holder != nil
}

// Holder returns a copy of the current holder, if any.
func (m *Manager) Holder() (OperationLock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder == nil {
		return OperationLock{}, false
	}
	return *m.holder, true
}

// WithLock runs fn while holding the global slot, releasing it afterward.
// When wait is false and the slot is busy it returns ErrLockBusy without
// running fn, so the caller can tell the user what is blocking them.
func (m *Manager) WithLock(ctx context.Context, typ OperationType, description string, wait bool, timeout time.Duration, fn func(context.Context) error) error {
	var err error
	if wait {
		_, err = m.AcquireWait(ctx, typ, description, timeout)
	} else {
		_, err = m.Acquire(typ, description)
	}
	if err != nil {
		return err
	}
	defer m.Release(typ)
	return fn(ctx)
}

func (m *Manager) newLockLocked(typ OperationType, description string) *OperationLock {
	return &OperationLock{
		ID:          uuid.New(),
		Type:        typ,
		Description: description,
		StartTime:   m.now(),
		count:       1,
	}
}

// promoteLocked hands the slot to the next waiter without passing
// through Idle, or clears it when the queue is empty.
func (m *Manager) promoteLocked() {
	for len(m.waiters) > 0 {
		w := m.waiters[0]
		m.waiters = m.waiters[1:]
		lock := m.newLockLocked(w.typ, w.desc)
		select {
		case w.granted <- lock:
			m.holder = lock
			return
		default:
			// Waiter already timed out; try the next one.
		}
	}
	m.holder = nil
}

func (m *Manager) reclaimStaleLocked() {
	if m.holder != nil && m.now().Sub(m.holder.StartTime) > StaleAfter {
		m.log("reclaiming stale %s lock held since %s (%s)",
			m.holder.Type, m.holder.StartTime.Format(time.RFC3339), m.holder.Description)
		m.promoteLocked()
	}
}

func (m *Manager) removeWaiter(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cand := range m.waiters {
		if cand == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Per-file locks
// ---------------------------------------------------------------------------

// AcquireFile locks one file path for a holder type. A lock held by a
// different type fails with ErrFileLocked unless it is stale, in which
// case it is reclaimed.
func (m *Manager) AcquireFile(path string, holder OperationType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fl, ok := m.fileLocks[path]; ok {
		if fl.Holder != holder {
			if m.now().Sub(fl.Timestamp) <= FileStaleAfter {
				return ErrFileLocked
			}
			m.log("reclaiming stale file lock on %s held by %s", path, fl.Holder)
		}
	}
	m.fileLocks[path] = &FileLock{Path: path, Holder: holder, Timestamp: m.now()}
	return nil
}

// ReleaseFile unlocks a file path; a mismatched holder is a no-op.
func (m *Manager) ReleaseFile(path string, holder OperationType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fl, ok := m.fileLocks[path]; ok && fl.Holder == holder {
		delete(m.fileLocks, path)
	}
}

// ThrottleWrite blocks until at least MinWriteSpacing has elapsed since
// the previous throttled write, across all files, then records this one.
func (m *Manager) ThrottleWrite(ctx context.Context) error {
	for {
		m.mu.Lock()
		elapsed := m.now().Sub(m.lastWrite)
		if elapsed >= MinWriteSpacing {
			m.lastWrite = m.now()
			m.mu.Unlock()
			return nil
		}
		wait := MinWriteSpacing - elapsed
		m.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WithFileLock acquires the file lock, applies the write throttle, runs
// fn, and releases. This is the read-modify-write-once sequence every
// locale-file mutation must use.
func (m *Manager) WithFileLock(ctx context.Context, path string, holder OperationType, fn func() error) error {
	if err := m.AcquireFile(path, holder); err != nil {
		return err
	}
	defer m.ReleaseFile(path, holder)
	if err := m.ThrottleWrite(ctx); err != nil {
		return err
	}
	return fn()
}
