package registry

import (
	"sync"
	"sync/atomic"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// Holder publishes registry snapshots. Readers take a snapshot once per
// run and keep using it even if a reload happens meanwhile.
type Holder struct {
	current atomic.Pointer[model.Registry]

	// mu orders writers so published versions only increase.
	mu      sync.Mutex
	version int64
}

// NewHolder returns a holder containing an empty registry.
func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(&model.Registry{})
	return h
}

// Snapshot returns the current registry. It is never nil and must not be
// modified.
func (h *Holder) Snapshot() *model.Registry {
	return h.current.Load()
}

// Replace installs a copy of reg, stamped with the next version, as the
// current snapshot and returns it.
func (h *Holder) Replace(reg *model.Registry) *model.Registry {
	if reg == nil {
		reg = &model.Registry{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.version++
	snap := *reg
	snap.Version = h.version
	h.current.Store(&snap)
	return &snap
}

// Reload loads path and installs it. On error the current snapshot is
// left in place.
func (h *Holder) Reload(path string) (*model.Registry, error) {
	reg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return h.Replace(reg), nil
}
