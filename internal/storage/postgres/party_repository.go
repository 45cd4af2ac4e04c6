package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

type partyRepository struct {
	q querier
}

func (r partyRepository) FindClientByName(ctx context.Context, name string) (domain.ClientID, error) {
	id, err := r.findByName(ctx, `SELECT id FROM clients WHERE nom = $1 ORDER BY id LIMIT 1`, name, "find client")
	return domain.ClientID(id), err
}

func (r partyRepository) FindSupplierByName(ctx context.Context, name string) (domain.SupplierID, error) {
	id, err := r.findByName(ctx, `SELECT id FROM fournisseurs WHERE nom = $1 ORDER BY id LIMIT 1`, name, "find supplier")
	return domain.SupplierID(id), err
}

func (r partyRepository) findByName(ctx context.Context, query, name, op string) (int64, error) {
	var id int64
	if err := r.q.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, mapError(op, err)
	}
	return id, nil
}

var _ domain.PartyRepository = partyRepository{}
