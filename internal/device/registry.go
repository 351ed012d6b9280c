package device

import (
	"reflect"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry stores the last known record of every device.
//
// byID owns the devices; byName maps display names to ids and is updated
// together with byID under the same lock. dirty holds ids whose next record
// must be reported as changed even if it equals the stored one.
//
// All public methods are thread-safe.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Device
	byName map[string]string
	dirty  map[string]struct{}

	logger   Logger
	loggerMu sync.RWMutex

	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Device),
		byName: make(map[string]string),
		dirty:  make(map[string]struct{}),
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Registry) log() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Ingest records a freshly fetched vendor record.
//
// Returns:
//   - *Device: the stored device (a copy)
//   - bool: true when the device is new or any field of its record changed
//   - error: ErrInvalidRecord when the record has no identifier
func (r *Registry) Ingest(record map[string]any) (*Device, bool, error) {
	dev, err := FromRecord(record)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.byID[dev.ID]
	_, dirty := r.dirty[dev.ID]
	if exists && !dirty && reflect.DeepEqual(prev.Raw, dev.Raw) {
		return prev.DeepCopy(), false, nil
	}
	delete(r.dirty, dev.ID)

	if exists && prev.Name != dev.Name && r.byName[prev.Name] == dev.ID {
		delete(r.byName, prev.Name)
	}
	if owner, taken := r.byName[dev.Name]; taken && owner != dev.ID {
		r.log().Warn("device name collision, last write wins",
			"name", dev.Name,
			"previous_id", owner,
			"id", dev.ID)
	}

	dev.UpdatedAt = r.now()
	r.byID[dev.ID] = dev
	r.byName[dev.Name] = dev.ID

	if !exists {
		r.log().Debug("device discovered", "id", dev.ID, "name", dev.Name)
	}

	return dev.DeepCopy(), true, nil
}

// MarkDirty makes the next Ingest for id report a change. The device
// stays stored and resolvable by name. Unknown ids are ignored.
func (r *Registry) MarkDirty(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; ok {
		r.dirty[id] = struct{}{}
	}
}

// LookupByName returns the device currently registered under name.
// Returns ErrDeviceNotFound if the name was never seen.
func (r *Registry) LookupByName(name string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	dev, ok := r.byID[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev.DeepCopy(), nil
}

// Get returns the device with the given identifier.
// Returns ErrDeviceNotFound if it does not exist.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.byID[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev.DeepCopy(), nil
}

// List returns copies of all devices sorted by name, then id.
func (r *Registry) List() []Device {
	r.mu.RLock()
	devices := make([]Device, 0, len(r.byID))
	for _, d := range r.byID {
		devices = append(devices, *d.DeepCopy())
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
