package registry

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// DefaultOwnerIDBase is the first owner id handed to an installed package
const DefaultOwnerIDBase int32 = 10000

// Validator re-parses a stale entry
type Validator interface {
	Validate(summary types.PackageSummary) (*types.PackageRecord, error)
}

// entry is one registry slot. Writers replace the entry; readers only
// swap a stale record for its validated form.
type entry struct {
	rec atomic.Pointer[types.PackageRecord]
}

func newEntry(rec *types.PackageRecord) *entry {
	e := &entry{}
	e.rec.Store(rec)
	return e
}

// Manager is the package registry
type Manager struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	validator   Validator
	ownerIDBase int32
	metrics     *monitoring.Metrics
	log         *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithOwnerIDBase sets the first allocated owner id
func WithOwnerIDBase(base int32) Option {
	return func(m *Manager) {
		if base > 0 {
			m.ownerIDBase = base
		}
	}
}

// WithMetrics publishes the registry size
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates an empty registry
func NewManager(validator Validator, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		entries:     make(map[string]*entry),
		validator:   validator,
		ownerIDBase: DefaultOwnerIDBase,
		log:         log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the named record, validating it first if stale.
// The read lock is held until validation ends so writers never commit
// underneath a manifest being parsed.
func (m *Manager) Get(name string) (*types.PackageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, types.Errorf(types.KindNotFound, "get", name, "package is not installed")
	}

	rec, err := m.resolveRLocked(name, e)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// GetAll returns copies of every record that validates, sorted by name.
// Entries failing validation are logged and skipped.
func (m *Manager) GetAll() []*types.PackageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := m.sortedNamesLocked()
	out := make([]*types.PackageRecord, 0, len(names))
	for _, name := range names {
		rec, err := m.resolveRLocked(name, m.entries[name])
		if err != nil {
			m.log.Warn("Skipping package that failed validation", zap.String("package", name), zap.Error(err))
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}

// Names returns the names of every record that validates, sorted
func (m *Manager) Names() []string {
	all := m.GetAll()
	names := make([]string, len(all))
	for i, rec := range all {
		names[i] = rec.PackageName
	}
	return names
}

// Summaries returns the persisted view of every entry without validating
func (m *Manager) Summaries() []types.PackageSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := m.sortedNamesLocked()
	out := make([]types.PackageSummary, len(names))
	for i, name := range names {
		out[i] = m.entries[name].rec.Load().Summary()
	}
	return out
}

// Lookup returns the persisted summary of name without validating
func (m *Manager) Lookup(name string) (types.PackageSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return types.PackageSummary{}, false
	}
	return e.rec.Load().Summary(), true
}

// Contains reports whether name has an entry, stale or not
func (m *Manager) Contains(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

// Upsert inserts rec, replacing any record of the same name and keeping its owner id
func (m *Manager) Upsert(rec *types.PackageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(rec)
}

// Remove deletes the in-memory entry and reports whether it existed
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(name)
}

// Len returns the number of entries, stale or not
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns registry statistics without triggering validation
func (m *Manager) Stats() types.RegistryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := types.RegistryStats{
		TotalPackages: len(m.entries),
		Types:         make(map[string]int),
	}
	for _, e := range m.entries {
		rec := e.rec.Load()
		if rec.Validated {
			stats.Validated++
		}
		stats.Types[rec.Type.String()]++
	}
	return stats
}

// Update runs fn with the write lock held. Everything fn does through the
// Tx is atomic with respect to other registry users.
func (m *Manager) Update(fn func(tx *Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&Tx{m: m})
}

// resolveRLocked validates e with the read lock held. Concurrent readers may
// both parse the same stale record; only the first swap promotes it.
func (m *Manager) resolveRLocked(name string, e *entry) (*types.PackageRecord, error) {
	stale := e.rec.Load()
	if stale.Validated {
		return stale, nil
	}
	validated, err := m.validate(name, stale)
	if err != nil {
		return nil, err
	}
	if e.rec.CompareAndSwap(stale, validated) {
		m.log.Debug("Promoted package to validated", zap.String("package", name))
		return validated, nil
	}
	return e.rec.Load(), nil
}

// resolveLocked validates with the write lock already held
func (m *Manager) resolveLocked(name string, e *entry) (*types.PackageRecord, error) {
	stale := e.rec.Load()
	if stale.Validated {
		return stale, nil
	}
	validated, err := m.validate(name, stale)
	if err != nil {
		return nil, err
	}
	e.rec.Store(validated)
	return validated, nil
}

// validate re-parses a stale record. Any failure, a vanished manifest
// included, reports the record as malformed.
func (m *Manager) validate(name string, stale *types.PackageRecord) (*types.PackageRecord, error) {
	if m.validator == nil {
		return nil, types.Errorf(types.KindIllegalState, "validate", name, "no validator configured")
	}
	validated, err := m.validator.Validate(stale.Summary())
	if err != nil {
		return nil, types.NewError(types.KindMalformedManifest, "get", name, err)
	}
	return validated, nil
}

func (m *Manager) upsertLocked(rec *types.PackageRecord) {
	stored := rec.Clone()
	if prev, ok := m.entries[rec.PackageName]; ok {
		stored.OwnerID = prev.rec.Load().OwnerID
	}
	m.entries[rec.PackageName] = newEntry(stored)
	m.metrics.SetRegistryPackages(len(m.entries))
}

func (m *Manager) removeLocked(name string) bool {
	if _, ok := m.entries[name]; !ok {
		return false
	}
	delete(m.entries, name)
	m.metrics.SetRegistryPackages(len(m.entries))
	return true
}

func (m *Manager) nextOwnerIDLocked() int32 {
	highest := m.ownerIDBase - 1
	for _, e := range m.entries {
		if id := e.rec.Load().OwnerID; id > highest {
			highest = id
		}
	}
	return highest + 1
}

func (m *Manager) sortedNamesLocked() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tx is the registry view inside Manager.Update. It must not escape fn.
type Tx struct {
	m *Manager
}

// Get returns a copy of the named record, validating it if stale
func (tx *Tx) Get(name string) (*types.PackageRecord, error) {
	e, ok := tx.m.entries[name]
	if !ok {
		return nil, types.Errorf(types.KindNotFound, "get", name, "package is not installed")
	}
	rec, err := tx.m.resolveLocked(name, e)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Lookup returns the persisted summary without validating
func (tx *Tx) Lookup(name string) (types.PackageSummary, bool) {
	e, ok := tx.m.entries[name]
	if !ok {
		return types.PackageSummary{}, false
	}
	return e.rec.Load().Summary(), true
}

// Upsert inserts rec, keeping the owner id of a replaced record
func (tx *Tx) Upsert(rec *types.PackageRecord) {
	tx.m.upsertLocked(rec)
}

// Insert adds rec as given, including its owner id
func (tx *Tx) Insert(rec *types.PackageRecord) {
	tx.m.entries[rec.PackageName] = newEntry(rec.Clone())
	tx.m.metrics.SetRegistryPackages(len(tx.m.entries))
}

// Remove deletes the entry and reports whether it existed
func (tx *Tx) Remove(name string) bool {
	return tx.m.removeLocked(name)
}

// NextOwnerID returns max(existing owner ids, base-1) + 1
func (tx *Tx) NextOwnerID() int32 {
	return tx.m.nextOwnerIDLocked()
}

// Reset drops every entry
func (tx *Tx) Reset() {
	tx.m.entries = make(map[string]*entry)
	tx.m.metrics.SetRegistryPackages(0)
}

// Names returns every entry name, stale or not, sorted
func (tx *Tx) Names() []string {
	return tx.m.sortedNamesLocked()
}
