package common

import "errors"

// ErrModulePaused is returned by Guard when governance has halted the module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module is halted. The credit engine
// checks it at the top of every state-changing entry point; the params
// registry is the production implementation.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or an
// empty module name leaves the call unguarded.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
