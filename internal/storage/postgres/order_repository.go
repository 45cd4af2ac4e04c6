package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderColumns = `
		id, client_id, fournisseur_id, marque, modele, stockage, type, type_carton, imei,
		prix_achat_fournisseur, prix_vente_client, montant_paye, montant_restant,
		statut, raison_annulation, date_commande, date_statut_change`
)

// orderRepository работает со special_orders внутри транзакции.
type orderRepository struct {
	q querier
}

func (r orderRepository) Insert(ctx context.Context, order domain.SpecialOrder) (domain.OrderID, error) {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.StatusChangedAt.IsZero() {
		order.StatusChangedAt = order.CreatedAt
	}

	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO special_orders (
			client_id, fournisseur_id, marque, modele, stockage, type, type_carton, imei,
			prix_achat_fournisseur, prix_vente_client, montant_paye, montant_restant,
			statut, raison_annulation, date_commande, date_statut_change
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id
	`,
		int64(order.ClientID), int64(order.SupplierID),
		order.Item.Brand, order.Item.Model,
		nullString(order.Item.Storage), order.Item.Type,
		nullString(order.Item.PackagingType), nullString(order.Item.DeviceID),
		order.SupplierCost, order.PriceAgreed, order.AmountPaid, order.AmountRemaining,
		string(order.Status), order.CancellationReason,
		order.CreatedAt, order.StatusChangedAt,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("insert special order: %w", domain.ErrPartyNotFound)
		}
		return 0, mapError("insert special order", err)
	}
	return domain.OrderID(id), nil
}

func (r orderRepository) Get(ctx context.Context, id domain.OrderID) (domain.SpecialOrder, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM special_orders WHERE id = $1`, int64(id))
	return scanOrderRow(row, "get special order")
}

func (r orderRepository) GetForUpdate(ctx context.Context, id domain.OrderID) (domain.SpecialOrder, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM special_orders WHERE id = $1 FOR UPDATE`, int64(id))
	return scanOrderRow(row, "lock special order")
}

func (r orderRepository) UpdateStatus(ctx context.Context, id domain.OrderID, upd domain.StatusUpdate) (domain.SpecialOrder, error) {
	row := r.q.QueryRowContext(ctx, `
		UPDATE special_orders
		SET statut = $2,
		    raison_annulation = $3,
		    date_statut_change = GREATEST($4, date_statut_change)
		WHERE id = $1
		RETURNING `+orderColumns,
		int64(id), string(upd.Status), upd.CancellationReason, upd.ChangedAt,
	)
	return scanOrderRow(row, "update special order status")
}

func (r orderRepository) UpdatePayment(ctx context.Context, id domain.OrderID, upd domain.PaymentUpdate) (domain.SpecialOrder, error) {
	row := r.q.QueryRowContext(ctx, `
		UPDATE special_orders
		SET montant_paye = $2,
		    montant_restant = $3,
		    statut = $4,
		    date_statut_change = GREATEST($5, date_statut_change)
		WHERE id = $1
		RETURNING `+orderColumns,
		int64(id), upd.AmountPaid, upd.AmountRemaining, string(upd.Status), upd.ChangedAt,
	)
	return scanOrderRow(row, "update special order payment")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(row rowScanner, op string) (domain.SpecialOrder, error) {
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SpecialOrder{}, domain.ErrOrderNotFound
		}
		return domain.SpecialOrder{}, mapError(op, err)
	}
	return order, nil
}

func scanOrder(row rowScanner) (domain.SpecialOrder, error) {
	var (
		order                            domain.SpecialOrder
		id, clientID, supplierID         int64
		storage, packagingType, deviceID sql.NullString
		status                           string
		reason                           sql.NullString
	)
	if err := row.Scan(
		&id, &clientID, &supplierID,
		&order.Item.Brand, &order.Item.Model, &storage, &order.Item.Type, &packagingType, &deviceID,
		&order.SupplierCost, &order.PriceAgreed, &order.AmountPaid, &order.AmountRemaining,
		&status, &reason, &order.CreatedAt, &order.StatusChangedAt,
	); err != nil {
		return domain.SpecialOrder{}, err
	}

	order.ID = domain.OrderID(id)
	order.ClientID = domain.ClientID(clientID)
	order.SupplierID = domain.SupplierID(supplierID)
	order.Item.Storage = storage.String
	order.Item.PackagingType = packagingType.String
	order.Item.DeviceID = deviceID.String
	order.Status = domain.Status(status)
	if reason.Valid {
		value := reason.String
		order.CancellationReason = &value
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.StatusChangedAt = order.StatusChangedAt.UTC()
	return order, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

var _ domain.OrderRepository = orderRepository{}
