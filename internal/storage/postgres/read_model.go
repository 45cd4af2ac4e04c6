package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// ListViews возвращает заказы с именами клиента и поставщика, новые первыми.
func (s *Store) ListViews(ctx context.Context) ([]domain.OrderView, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			so.id, so.client_id, so.fournisseur_id, so.marque, so.modele, so.stockage, so.type,
			so.type_carton, so.imei, so.prix_achat_fournisseur, so.prix_vente_client,
			so.montant_paye, so.montant_restant, so.statut, so.raison_annulation,
			so.date_commande, so.date_statut_change,
			c.nom, COALESCE(c.telephone, ''), f.nom
		FROM special_orders so
		JOIN clients c ON so.client_id = c.id
		JOIN fournisseurs f ON so.fournisseur_id = f.id
		ORDER BY so.date_commande DESC, so.id DESC
	`)
	if err != nil {
		return nil, mapError("list special orders", err)
	}
	defer rows.Close()

	result := make([]domain.OrderView, 0)
	for rows.Next() {
		var view domain.OrderView
		order, err := scanOrder(viewScanner{rows: rows, view: &view})
		if err != nil {
			return nil, mapError("scan special order view", err)
		}
		view.Order = order
		result = append(result, view)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate special orders", err)
	}

	return result, nil
}

// viewScanner дополняет колонки заказа именами сторон.
type viewScanner struct {
	rows *sql.Rows
	view *domain.OrderView
}

func (v viewScanner) Scan(dest ...any) error {
	dest = append(dest, &v.view.ClientName, &v.view.ClientPhone, &v.view.SupplierName)
	return v.rows.Scan(dest...)
}

// CountByStatus считает заказы по всем статусам одним запросом.
func (s *Store) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := "SELECT"
	args := make([]any, 0, len(domain.AllStatuses))
	for i, status := range domain.AllStatuses {
		if i > 0 {
			query += ","
		}
		query += fmt.Sprintf(" COUNT(*) FILTER (WHERE statut = $%d)", i+1)
		args = append(args, string(status))
	}
	query += " FROM special_orders"

	values := make([]int, len(domain.AllStatuses))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		return nil, mapError("count special orders by status", err)
	}

	counts := make(map[domain.Status]int, len(domain.AllStatuses))
	for i, status := range domain.AllStatuses {
		counts[status] = values[i]
	}
	return counts, nil
}

// Exists проверяет наличие заказа.
func (s *Store) Exists(ctx context.Context, id domain.OrderID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM special_orders WHERE id = $1)`, int64(id),
	).Scan(&exists); err != nil {
		return false, mapError("check special order", err)
	}
	return exists, nil
}

// ListTimeline возвращает журнал изменений заказа в хронологическом порядке.
func (s *Store) ListTimeline(ctx context.Context, id domain.OrderID) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, event_type, from_status, to_status, transition_kind,
		       paid_before, paid_after, reason, occurred_at
		FROM special_order_timeline
		WHERE order_id = $1
		ORDER BY occurred_at, id
	`, int64(id))
	if err != nil {
		return nil, mapError("list timeline", err)
	}
	defer rows.Close()

	result := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var (
			event                    domain.TimelineEvent
			orderID                  int64
			eventType, toStatus      string
			fromStatus, kind, reason sql.NullString
			paidBefore, paidAfter    decimal.NullDecimal
		)
		if err := rows.Scan(
			&orderID, &eventType, &fromStatus, &toStatus, &kind,
			&paidBefore, &paidAfter, &reason, &event.Occurred,
		); err != nil {
			return nil, mapError("scan timeline event", err)
		}
		event.OrderID = domain.OrderID(orderID)
		event.Type = domain.TimelineEventType(eventType)
		event.FromStatus = domain.Status(fromStatus.String)
		event.ToStatus = domain.Status(toStatus)
		event.Kind = domain.TransitionKind(kind.String)
		event.PaidBefore = paidBefore.Decimal
		event.PaidAfter = paidAfter.Decimal
		event.Reason = reason.String
		event.Occurred = event.Occurred.UTC()
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate timeline", err)
	}

	return result, nil
}

var _ domain.ReadModel = (*Store)(nil)
