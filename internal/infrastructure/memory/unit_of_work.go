package memory

import (
	"context"
	"fmt"
	"sync"

	"holidaysri-admin/internal/domain/repository"
)

// UnitOfWork is an in-memory repository.UnitOfWork
type UnitOfWork struct {
	store *Store
	mu    sync.Mutex
	snap  *snapshot
}

// Begin waits for any running transaction on the store to finish
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.IsInTransaction() {
		return fmt.Errorf("unit of work is already in transaction")
	}
	select {
	case u.store.tx <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to begin transaction: %w", ctx.Err())
	}

	snap := u.store.snapshot()
	u.mu.Lock()
	u.snap = &snap
	u.mu.Unlock()
	return nil
}

func (u *UnitOfWork) Commit(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.snap == nil {
		return fmt.Errorf("no active transaction to commit")
	}
	u.snap = nil
	<-u.store.tx
	return nil
}

func (u *UnitOfWork) Rollback(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.snap == nil {
		return fmt.Errorf("no active transaction to rollback")
	}
	u.store.restore(*u.snap)
	u.snap = nil
	<-u.store.tx
	return nil
}

func (u *UnitOfWork) PayoutRequestRepository() repository.PayoutRequestRepository {
	return &payoutRequestRepo{repo{u.store, u}}
}

func (u *UnitOfWork) EarningRepository() repository.EarningRepository {
	return &earningRepo{repo{u.store, u}}
}

func (u *UnitOfWork) CampaignRepository() repository.CampaignRepository {
	return &campaignRepo{repo{u.store, u}}
}

func (u *UnitOfWork) AdvertisementRepository() repository.AdvertisementRepository {
	return &advertisementRepo{repo{u.store, u}}
}

func (u *UnitOfWork) PaidFundRepository() repository.PaidFundRepository {
	return &paidFundRepo{repo{u.store, u}}
}

func (u *UnitOfWork) AdminRepository() repository.AdminRepository {
	return &adminRepo{repo{u.store, u}}
}

func (u *UnitOfWork) Close() error {
	u.mu.Lock()
	snap := u.snap
	u.snap = nil
	u.mu.Unlock()

	if snap != nil {
		u.store.restore(*snap)
		<-u.store.tx
	}
	return nil
}

func (u *UnitOfWork) IsInTransaction() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snap != nil
}

// Factory hands out units of work over one Store
type Factory struct {
	Store *Store
}

func NewFactory(store *Store) *Factory {
	return &Factory{Store: store}
}

func (f *Factory) CreateUnitOfWork() repository.UnitOfWork {
	return &UnitOfWork{store: f.Store}
}
