package memory

import (
	"context"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

type partyRepository struct {
	store *Store
}

func (r partyRepository) FindClientByName(ctx context.Context, name string) (domain.ClientID, error) {
	if err := ctx.Err(); err != nil {
		return 0, mapContextError(err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.clientIDs[name]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func (r partyRepository) FindSupplierByName(ctx context.Context, name string) (domain.SupplierID, error) {
	if err := ctx.Err(); err != nil {
		return 0, mapContextError(err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.supplierIDs[name]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

var _ domain.PartyRepository = partyRepository{}
