// Package storage owns the in-memory classroom cache and decides which
// backend serves it.
//
// Backend A (the legacy store) may still hold data written by earlier
// versions of the activity. Backend B (the local store) is the long-term
// home. A Facade selects one of them once, at Init, serves every read from
// its cache and persists every mutation to the selected backend in the
// background. Moving data from A to B only happens on request, through
// Migrate or Import, and is verified before the source is cleared.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"atelier-server-go/db"
	"atelier-server-go/metrics"
	"atelier-server-go/models"

	"github.com/rs/zerolog"
)

// Backend identifies which store is authoritative
type Backend string

const (
	BackendNone   Backend = ""
	BackendLegacy Backend = "legacy"
	BackendLocal  Backend = "local"
)

const defaultPersistTimeout = 10 * time.Second

// InitReport describes what Init selected and why
type InitReport struct {
	Backend    Backend `json:"backend"`
	Classrooms int     `json:"classrooms"`
	// Bootstrapped is set when the older local generation was copied into the legacy store
	Bootstrapped bool `json:"bootstrapped"`
	// LegacyUnavailable is set when the legacy store could not be read. Its
	// data, if any, is not being served.
	LegacyUnavailable bool   `json:"legacyUnavailable"`
	LegacyError       string `json:"legacyError,omitempty"`
}

// Option configures a Facade
type Option func(*Facade)

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(f *Facade) { f.log = log }
}

// WithMetrics sets the Prometheus recorder
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Facade) { f.metrics = m }
}

// WithNow sets the time function for testing.
func WithNow(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

// WithPersistTimeout bounds each background write
func WithPersistTimeout(d time.Duration) Option {
	return func(f *Facade) { f.persistTimeout = d }
}

// Facade is constructed once per process and shared by reference.
type Facade struct {
	legacy db.Store
	local  db.Store
	ledger *Ledger

	log            zerolog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
	persistTimeout time.Duration

	initOnce   sync.Once
	initReport InitReport
	initErr    error

	// mu guards the cache and backend selection. Migrate, Import and Reset
	// hold it for their whole run so no mutation interleaves with a switch.
	mu      sync.RWMutex
	cache   []models.Classroom
	backend Backend
	version uint64

	writeMu sync.Mutex
	written uint64
	pending sync.WaitGroup
}

// New creates a Facade over the legacy (A) and local (B) stores. Call Init before use.
func New(legacy, local db.Store, opts ...Option) *Facade {
	f := &Facade{
		legacy:         legacy,
		local:          local,
		log:            zerolog.Nop(),
		now:            time.Now,
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With().Str("component", "storage").Logger()
	f.ledger = NewLedger(local, f.log)
	return f
}

// Ledger exposes the migration ledger
func (f *Facade) Ledger() *Ledger { return f.ledger }

// Init selects the authoritative backend and loads the cache. It runs once;
// concurrent and later callers get the result of that single run.
func (f *Facade) Init(ctx context.Context) (InitReport, error) {
	f.initOnce.Do(func() {
		f.initReport, f.initErr = f.selectBackend(ctx)
		if f.initErr != nil {
			f.log.Error().Err(f.initErr).Msg("storage init failed")
			return
		}
		f.log.Info().
			Str("backend", string(f.initReport.Backend)).
			Int("classrooms", f.initReport.Classrooms).
			Bool("legacy_unavailable", f.initReport.LegacyUnavailable).
			Msg("storage initialized")
	})
	return f.initReport, f.initErr
}

func (f *Facade) selectBackend(ctx context.Context) (InitReport, error) {
	var report InitReport

	if f.ledger.IsCompleted(ctx) {
		return f.selectLocal(ctx, report)
	}

	legacy, err := f.loadLegacy(ctx, &report)
	if err != nil {
		report.LegacyUnavailable = true
		report.LegacyError = err.Error()
		f.metrics.LegacyUnavailable()
		f.log.Warn().Err(err).Msg("legacy store unavailable; serving from local store, legacy data (if any) is not loaded")
		return f.selectLocal(ctx, report)
	}

	if !meaningful(legacy) {
		return f.selectLocal(ctx, report)
	}

	f.mu.Lock()
	f.cache = legacy
	f.switchLocked(BackendLegacy)
	f.mu.Unlock()
	report.Backend = BackendLegacy
	report.Classrooms = len(legacy)
	return report, nil
}

// loadLegacy reads backend A, first copying the older local generation into
// it when A is empty. The older payload is copied byte for byte and never deleted.
func (f *Facade) loadLegacy(ctx context.Context, report *InitReport) ([]models.Classroom, error) {
	legacy, _, err := f.readCollection(ctx, f.legacy, LegacyKey)
	if err != nil {
		return nil, err
	}
	if len(legacy) > 0 {
		return legacy, nil
	}

	raw, err := f.local.Get(ctx, LegacyLocalKey)
	if err != nil {
		return legacy, nil
	}
	var older []models.Classroom
	if err := json.Unmarshal(raw, &older); err != nil || len(older) == 0 {
		return legacy, nil
	}
	if err := f.legacy.Put(ctx, LegacyKey, raw); err != nil {
		return nil, fmt.Errorf("bootstrap legacy store: %w", err)
	}
	report.Bootstrapped = true
	f.log.Info().Int("classrooms", len(older)).Msg("bootstrapped legacy store from older local data")
	return older, nil
}

func (f *Facade) selectLocal(ctx context.Context, report InitReport) (InitReport, error) {
	data, _, err := f.readCollection(ctx, f.local, TargetKey)
	if err != nil {
		return report, fmt.Errorf("read local store: %w", err)
	}
	f.mu.Lock()
	f.cache = data
	f.switchLocked(BackendLocal)
	f.mu.Unlock()
	report.Backend = BackendLocal
	report.Classrooms = len(data)
	return report, nil
}

// Backend reports the active backend, BackendNone before Init
func (f *Facade) Backend() Backend {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.backend
}

// readCollection decodes the classroom list under key. A missing key and a
// corrupt payload both come back as (nil, false, nil); only store failures
// are returned as errors.
func (f *Facade) readCollection(ctx context.Context, store db.Store, key string) ([]models.Classroom, bool, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var data []models.Classroom
	if err := json.Unmarshal(raw, &data); err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("stored classrooms are corrupt; treating as absent")
		return nil, false, nil
	}
	return data, true, nil
}

// meaningful is true when at least one classroom has at least one child
func meaningful(data []models.Classroom) bool {
	for _, c := range data {
		if len(c.Children) > 0 {
			return true
		}
	}
	return false
}

func (f *Facade) storeFor(b Backend) (db.Store, string) {
	switch b {
	case BackendLegacy:
		return f.legacy, LegacyKey
	case BackendLocal:
		return f.local, TargetKey
	default:
		return nil, ""
	}
}

func (f *Facade) switchLocked(b Backend) {
	f.backend = b
	f.metrics.SetActiveBackend(string(b), string(BackendLegacy), string(BackendLocal))
}

// commitLocked replaces the cache and schedules a write of it to the active
// backend. Callers hold f.mu.
func (f *Facade) commitLocked(next []models.Classroom) {
	f.cache = next
	f.version++
	store, key := f.storeFor(f.backend)
	if store == nil {
		f.log.Warn().Msg("mutation before Init; change kept in memory only")
		return
	}
	f.pending.Add(1)
	go f.persist(f.version, f.backend, store, key, next)
}

// persist writes one cache snapshot. Writes are serialized and a snapshot
// older than one already written is dropped, so the store always ends up
// holding the latest cache.
func (f *Facade) persist(version uint64, backend Backend, store db.Store, key string, snapshot []models.Classroom) {
	defer f.pending.Done()
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if version <= f.written {
		return
	}
	f.written = version

	raw, err := Serialize(snapshot)
	if err != nil {
		f.log.Error().Err(err).Msg("encode cache")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.persistTimeout)
	defer cancel()
	if err := store.Put(ctx, key, raw); err != nil {
		f.metrics.PersistFailed(string(backend))
		f.log.Error().Err(err).Str("backend", string(backend)).Uint64("version", version).Msg("persist failed")
	}
}

// Flush waits until every scheduled write has finished or ctx is done.
// Writes are scheduled under f.mu, so holding the read lock keeps new ones
// from being added while Wait runs.
func (f *Facade) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.mu.RLock()
		f.pending.Wait()
		f.mu.RUnlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for pending writes and closes both stores
func (f *Facade) Close(ctx context.Context) error {
	flushErr := f.Flush(ctx)
	return errors.Join(flushErr, f.legacy.Close(), f.local.Close())
}
