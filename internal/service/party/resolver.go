package party

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// Resolver находит идентификаторы клиента и поставщика по точному имени.
// Создаётся на репозиторий транзакции, чтобы поиск шёл в том же снимке, что и вставка.
type Resolver struct {
	repo   domain.PartyRepository
	logger *log.Entry
}

// NewResolver создаёт резолвер поверх репозитория сторон.
func NewResolver(repo domain.PartyRepository, logger *log.Entry) *Resolver {
	if logger == nil {
		logger = log.New().WithField("component", "party-resolver")
	}
	return &Resolver{repo: repo, logger: logger}
}

// ResolveClient возвращает идентификатор клиента по clients.nom.
func (r *Resolver) ResolveClient(ctx context.Context, name string) (domain.ClientID, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return 0, domain.NewValidationError("client_nom", "is required")
	}

	id, err := r.repo.FindClientByName(ctx, trimmed)
	if err != nil {
		return 0, r.mapLookupError(domain.PartyClient, trimmed, err)
	}
	return id, nil
}

// ResolveSupplier возвращает идентификатор поставщика по fournisseurs.nom.
func (r *Resolver) ResolveSupplier(ctx context.Context, name string) (domain.SupplierID, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return 0, domain.NewValidationError("fournisseur_nom", "is required")
	}

	id, err := r.repo.FindSupplierByName(ctx, trimmed)
	if err != nil {
		return 0, r.mapLookupError(domain.PartySupplier, trimmed, err)
	}
	return id, nil
}

func (r *Resolver) mapLookupError(kind domain.PartyKind, name string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.WithFields(log.Fields{
			"party_kind": kind,
			"party_name": name,
		}).Info("party not found")
		return &domain.PartyNotFoundError{Kind: kind, Name: name}
	}
	return fmt.Errorf("resolve %s %q: %w", kind, name, err)
}
