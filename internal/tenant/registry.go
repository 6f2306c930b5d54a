package tenant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"card-gacha/internal/economy"
	"card-gacha/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	ErrStorage       = errors.New("storage_failure")
	ErrInvalidTenant = errors.New("invalid_tenant")
	// ErrUnchanged tells Update that fn made no change worth saving.
	ErrUnchanged = errors.New("unchanged")
)

// Initializer runs once on a tenant's first load and reports whether it
// changed the snapshot (for example by seeding the catalog).
type Initializer func(tenantID string, snap *economy.Snapshot) (bool, error)

// Registry owns every tenant's committed snapshot and the per-tenant
// exclusion that linearizes mutations. Tenants never share a lock.
type Registry struct {
	backend store.Backend
	init    Initializer

	mu      sync.Mutex
	tenants map[string]*entry
}

type entry struct {
	sem    chan struct{}
	snap   *economy.Snapshot
	loaded atomic.Bool
}

type Option func(*Registry)

func WithInitializer(fn Initializer) Option {
	return func(r *Registry) { r.init = fn }
}

func NewRegistry(backend store.Backend, opts ...Option) *Registry {
	r := &Registry{backend: backend, tenants: make(map[string]*entry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) lookup(tenantID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tenants[tenantID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		r.tenants[tenantID] = e
	}
	return e
}

// Tenants lists tenants loaded into this process, sorted.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tenants))
	for id, e := range r.tenants {
		if e.loaded.Load() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) acquire(ctx context.Context, tenantID string) (*entry, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	e := r.lookup(tenantID)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.snap == nil {
		if err := r.load(ctx, tenantID, e); err != nil {
			<-e.sem
			return nil, err
		}
	}
	return e, nil
}

func (r *Registry) load(ctx context.Context, tenantID string, e *entry) error {
	snap, err := r.backend.Load(ctx, tenantID)
	if err != nil {
		metricStorageFailures.Add(1)
		return fmt.Errorf("%w: load %s: %v", ErrStorage, tenantID, err)
	}
	if r.init != nil {
		changed, err := r.init(tenantID, snap)
		if err != nil {
			return fmt.Errorf("initialize tenant %s: %w", tenantID, err)
		}
		if changed {
			if err := r.backend.Save(ctx, tenantID, snap); err != nil {
				metricStorageFailures.Add(1)
				return fmt.Errorf("%w: save %s: %v", ErrStorage, tenantID, err)
			}
		}
	}
	e.snap = snap
	e.loaded.Store(true)
	metricTenantLoads.Add(1)
	log.Info().Str("tenant_id", tenantID).Int("cards", len(snap.Cards())).Int("players", len(snap.Players())).Msg("tenant loaded")
	return nil
}

// Begin acquires the tenant's exclusion and returns a transaction over a
// working copy of its snapshot. The caller must defer Rollback.
func (r *Registry) Begin(ctx context.Context, tenantID string) (*Tx, error) {
	e, err := r.acquire(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &Tx{r: r, tenantID: tenantID, e: e, Snapshot: e.snap.Clone()}, nil
}

// Update runs fn inside a transaction and commits unless fn fails or
// returns ErrUnchanged.
func (r *Registry) Update(ctx context.Context, tenantID string, fn func(*economy.Snapshot) error) error {
	tx, err := r.Begin(ctx, tenantID)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx.Snapshot); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return nil
		}
		return err
	}
	return tx.Commit(ctx)
}

// View runs fn against the committed snapshot under the tenant's exclusion.
// fn must not modify the snapshot.
func (r *Registry) View(ctx context.Context, tenantID string, fn func(*economy.Snapshot) error) error {
	e, err := r.acquire(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() { <-e.sem }()
	return fn(e.snap)
}

// Tx is one exclusive unit of work on a tenant.
type Tx struct {
	r        *Registry
	tenantID string
	e        *entry

	// Snapshot is the working copy; it becomes the committed state on Commit
	// and must not be modified afterwards.
	Snapshot *economy.Snapshot

	committed bool
	released  bool
}

func (tx *Tx) TenantID() string {
	return tx.tenantID
}

// Commit validates and durably saves the working snapshot, then publishes it.
// On failure the tenant keeps its last durable snapshot. The exclusion stays
// held until Rollback so callers can update ephemeral state consistently.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.released || tx.committed {
		return errors.New("tenant: transaction already finished")
	}
	if err := tx.Snapshot.CheckInvariants(); err != nil {
		return err
	}
	if err := tx.r.backend.Save(ctx, tx.tenantID, tx.Snapshot); err != nil {
		metricStorageFailures.Add(1)
		log.Error().Err(err).Str("tenant_id", tx.tenantID).Msg("snapshot save failed; mutation rolled back")
		return fmt.Errorf("%w: save %s: %v", ErrStorage, tx.tenantID, err)
	}
	tx.e.snap = tx.Snapshot
	tx.committed = true
	metricCommits.Add(1)
	return nil
}

// Rollback releases the exclusion. Uncommitted changes are discarded. It is
// safe to call more than once.
func (tx *Tx) Rollback() {
	if tx.released {
		return
	}
	tx.released = true
	<-tx.e.sem
}
