package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"card-gacha/internal/economy"
	"card-gacha/internal/store"
	"card-gacha/internal/testutil"
)

type flakyBackend struct {
	*store.Memory
	failSaves atomic.Bool
	saves     atomic.Int64
}

func (f *flakyBackend) Save(ctx context.Context, tenantID string, snap *economy.Snapshot) error {
	if f.failSaves.Load() {
		return errors.New("disk full")
	}
	f.saves.Add(1)
	return f.Memory.Save(ctx, tenantID, snap)
}

func newFlaky() *flakyBackend {
	return &flakyBackend{Memory: store.NewMemory()}
}

func seedInit(t *testing.T) Initializer {
	return func(_ string, snap *economy.Snapshot) (bool, error) {
		if !snap.Empty() {
			return false, nil
		}
		for _, c := range testutil.SampleCatalog() {
			if _, err := snap.AddCard(c); err != nil {
				return false, err
			}
		}
		return true, nil
	}
}

func TestBeginLoadsLazilyAndInitializesOnce(t *testing.T) {
	b := newFlaky()
	reg := NewRegistry(b, WithInitializer(seedInit(t)))
	ctx := context.Background()

	if got := reg.Tenants(); len(got) != 0 {
		t.Fatalf("Tenants() before use = %v", got)
	}
	err := reg.View(ctx, "guild-a", func(s *economy.Snapshot) error {
		if len(s.Cards()) != 2 {
			t.Fatalf("seeded cards = %d, want 2", len(s.Cards()))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if b.saves.Load() != 1 {
		t.Fatalf("initializer save count = %d, want 1", b.saves.Load())
	}
	if err := reg.View(ctx, "guild-a", func(*economy.Snapshot) error { return nil }); err != nil {
		t.Fatalf("second view: %v", err)
	}
	if b.saves.Load() != 1 {
		t.Fatalf("initializer ran twice, saves = %d", b.saves.Load())
	}
	if got := reg.Tenants(); len(got) != 1 || got[0] != "guild-a" {
		t.Fatalf("Tenants() = %v", got)
	}
}

func TestUpdateCommitsAndUnchangedSkipsSave(t *testing.T) {
	b := newFlaky()
	reg := NewRegistry(b)
	ctx := context.Background()

	err := reg.Update(ctx, "g", func(s *economy.Snapshot) error {
		_, err := s.AddCard(testutil.SampleCatalog()[0])
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if b.saves.Load() != 1 {
		t.Fatalf("saves = %d, want 1", b.saves.Load())
	}
	if err := reg.Update(ctx, "g", func(*economy.Snapshot) error { return ErrUnchanged }); err != nil {
		t.Fatalf("unchanged update: %v", err)
	}
	if b.saves.Load() != 1 {
		t.Fatalf("ErrUnchanged still saved, saves = %d", b.saves.Load())
	}

	persisted, err := b.Load(ctx, "g")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := persisted.Card("Hero"); !ok {
		t.Fatal("Hero not persisted")
	}
}

func TestStorageFailureKeepsLastDurableSnapshot(t *testing.T) {
	b := newFlaky()
	reg := NewRegistry(b, WithInitializer(seedInit(t)))
	ctx := context.Background()

	b.failSaves.Store(false)
	if err := reg.View(ctx, "g", func(*economy.Snapshot) error { return nil }); err != nil {
		t.Fatalf("load: %v", err)
	}
	b.failSaves.Store(true)
	err := reg.Update(ctx, "g", func(s *economy.Snapshot) error {
		p, _ := s.EnsurePlayer("p1", time.Now())
		p.Coins = 500
		return s.Assign("Hero", "p1")
	})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("update err = %v, want ErrStorage", err)
	}
	err = reg.View(ctx, "g", func(s *economy.Snapshot) error {
		if _, ok := s.Player("p1"); ok {
			t.Fatal("player from failed commit is visible")
		}
		if c, _ := s.Card("Hero"); c.Claimed() {
			t.Fatal("claim from failed commit is visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCommitRejectsInconsistentSnapshot(t *testing.T) {
	reg := NewRegistry(store.NewMemory(), WithInitializer(seedInit(t)))
	err := reg.Update(context.Background(), "g", func(s *economy.Snapshot) error {
		c, _ := s.Card("Hero")
		c.ClaimedBy = "ghost"
		return nil
	})
	if !errors.Is(err, economy.ErrInconsistent) {
		t.Fatalf("err = %v, want ErrInconsistent", err)
	}
}

func TestTenantExclusionIsLinearizable(t *testing.T) {
	reg := NewRegistry(store.NewMemory())
	ctx := context.Background()
	const workers = 32

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reg.Update(ctx, "g", func(s *economy.Snapshot) error {
				p, _ := s.EnsurePlayer("p1", time.Now())
				p.Coins++
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	_ = reg.View(ctx, "g", func(s *economy.Snapshot) error {
		p, _ := s.Player("p1")
		if p.Coins != workers {
			t.Fatalf("coins = %d, want %d (lost update)", p.Coins, workers)
		}
		return nil
	})
}

func TestTenantsDoNotShareLock(t *testing.T) {
	reg := NewRegistry(store.NewMemory())
	ctx := context.Background()

	held, err := reg.Begin(ctx, "a")
	if err != nil {
		t.Fatalf("begin a: %v", err)
	}
	defer held.Rollback()

	done := make(chan error, 1)
	go func() {
		done <- reg.Update(ctx, "b", func(*economy.Snapshot) error { return nil })
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("update b: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tenant b blocked behind tenant a")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := reg.Begin(waitCtx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second begin on held tenant err = %v, want deadline exceeded", err)
	}
}

func TestBeginRejectsBlankTenant(t *testing.T) {
	reg := NewRegistry(store.NewMemory())
	if _, err := reg.Begin(context.Background(), " "); !errors.Is(err, ErrInvalidTenant) {
		t.Fatalf("err = %v, want ErrInvalidTenant", err)
	}
}

func TestRollbackIsIdempotent(t *testing.T) {
	reg := NewRegistry(store.NewMemory())
	tx, err := reg.Begin(context.Background(), "g")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	tx.Rollback()
	tx.Rollback()
	if err := tx.Commit(context.Background()); err == nil {
		t.Fatal("commit after finish should fail")
	}
	tx2, err := reg.Begin(context.Background(), "g")
	if err != nil {
		t.Fatalf("begin after rollback: %v", err)
	}
	tx2.Rollback()
}
