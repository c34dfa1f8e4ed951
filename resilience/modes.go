package resilience

import (
	"fmt"
	"maps"
	"sync"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMock, ModeReal:
		return Mode(s), nil
	}

	return "", fmt.Errorf("not a valid Mode: %q", s)
}

// ModeRegistry tracks the operating mode per dependency. Dependencies
// without an explicit entry run in the registry's default mode.
type ModeRegistry struct {
	mu          sync.RWMutex
	defaultMode Mode
	modes       map[string]Mode
}

// NewModeRegistry creates a registry whose unset dependencies report
// defaultMode.
func NewModeRegistry(defaultMode Mode) *ModeRegistry {
	if defaultMode != ModeMock {
		defaultMode = ModeReal
	}

	return &ModeRegistry{
		defaultMode: defaultMode,
		modes:       make(map[string]Mode),
	}
}

// Get returns the operating mode for a dependency.
func (r *ModeRegistry) Get(dependency string) Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if mode, ok := r.modes[dependency]; ok {
		return mode
	}

	return r.defaultMode
}

// Set switches a dependency's operating mode.
func (r *ModeRegistry) Set(dependency string, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.modes[dependency] = mode

	return nil
}

// All returns a snapshot of the explicit per-dependency modes.
func (r *ModeRegistry) All() map[string]Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]Mode, len(r.modes))
	maps.Copy(snapshot, r.modes)

	return snapshot
}
