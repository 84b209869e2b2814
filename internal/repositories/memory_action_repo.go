package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/payflow/backend/internal/models"
)

// MemoryActionRepo is the in-memory ActionStore used in dev mode and tests.
type MemoryActionRepo struct {
	mu      sync.RWMutex
	wallets map[string]map[string]*models.PaymentAction
}

func NewMemoryActionRepo() *MemoryActionRepo {
	return &MemoryActionRepo{wallets: make(map[string]map[string]*models.PaymentAction)}
}

func (r *MemoryActionRepo) Create(ctx context.Context, a *models.PaymentAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	ns, ok := r.wallets[a.WalletAddress]
	if !ok {
		ns = make(map[string]*models.PaymentAction)
		r.wallets[a.WalletAddress] = ns
	}
	ns[a.ID] = a.Clone()
	return nil
}

func (r *MemoryActionRepo) Get(ctx context.Context, wallet, id string) (*models.PaymentAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.wallets[wallet][id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryActionRepo) List(ctx context.Context, wallet string, f ActionFilter) ([]*models.PaymentAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var actions []*models.PaymentAction
	for _, a := range r.wallets[wallet] {
		if f.ActionType != nil && a.ActionType != *f.ActionType {
			continue
		}
		if f.Enabled != nil && a.IsEnabled != *f.Enabled {
			continue
		}
		actions = append(actions, a.Clone())
	}
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
	return actions, nil
}

func (r *MemoryActionRepo) Update(ctx context.Context, a *models.PaymentAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.wallets[a.WalletAddress][a.ID]
	if !ok {
		return ErrNotFound
	}
	updated := a.Clone()
	// Usage bookkeeping only changes through MarkUsed.
	updated.UsageCount = existing.UsageCount
	updated.LastUsed = existing.LastUsed
	updated.CreatedAt = existing.CreatedAt
	r.wallets[a.WalletAddress][a.ID] = updated
	return nil
}

func (r *MemoryActionRepo) Delete(ctx context.Context, wallet, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wallets[wallet][id]; !ok {
		return ErrNotFound
	}
	delete(r.wallets[wallet], id)
	return nil
}

func (r *MemoryActionRepo) MarkUsed(ctx context.Context, wallet, id string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.wallets[wallet][id]
	if !ok {
		return ErrNotFound
	}
	a.UsageCount++
	t := usedAt
	a.LastUsed = &t
	return nil
}

func (r *MemoryActionRepo) Wallets(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wallets := make([]string, 0, len(r.wallets))
	for w := range r.wallets {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets, nil
}
