package watch

import "sync"

// LockdownRule names one presentation deterrent the page should apply while
// a session is active.
type LockdownRule string

const (
	RuleBlockContextMenu LockdownRule = "block_context_menu"
	RuleBlockSelection   LockdownRule = "block_selection"
	RuleBlockDrag        LockdownRule = "block_drag"
	RuleBlockClipboard   LockdownRule = "block_clipboard"
	RuleBlockCaptureKeys LockdownRule = "block_capture_keys"
	RulePauseOnHide      LockdownRule = "pause_on_hide"
)

// defaultLockdownRules is the full deterrent set applied to every session.
var defaultLockdownRules = []LockdownRule{
	RuleBlockContextMenu,
	RuleBlockSelection,
	RuleBlockDrag,
	RuleBlockClipboard,
	RuleBlockCaptureKeys,
	RulePauseOnHide,
}

// Lockdown is a disposable presentation-lockdown acquisition tied to a
// session's lifetime: acquired at session start, released at teardown.
// It is a best-effort deterrent against casual capture, not a security
// boundary; a determined viewer can bypass every rule.
type Lockdown struct {
	mu       sync.Mutex
	released bool
	rules    []LockdownRule
}

// AcquireLockdown returns a Lockdown holding the default rule set.
func AcquireLockdown() *Lockdown {
	rules := make([]LockdownRule, len(defaultLockdownRules))
	copy(rules, defaultLockdownRules)
	return &Lockdown{rules: rules}
}

// Rules returns the active rule set, or nil after release.
func (l *Lockdown) Rules() []LockdownRule {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	out := make([]LockdownRule, len(l.rules))
	copy(out, l.rules)
	return out
}

// Release ends the lockdown. Safe to call more than once.
func (l *Lockdown) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	l.rules = nil
}

// Released reports whether Release has been called.
func (l *Lockdown) Released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}
