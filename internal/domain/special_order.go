package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderID: идентификатор спецзаказа (special_orders.id).
type OrderID int64

// ClientID: идентификатор клиента (clients.id).
type ClientID int64

// SupplierID: идентификатор поставщика (fournisseurs.id).
type SupplierID int64

// ItemDescriptor описывает заказанный товар. Все поля непрозрачны для ядра.
type ItemDescriptor struct {
	Brand         string
	Model         string
	Storage       string
	Type          string
	PackagingType string
	DeviceID      string
}

// SpecialOrder: предзаказ клиента на товар у поставщика с поэтапной оплатой.
type SpecialOrder struct {
	ID         OrderID
	ClientID   ClientID
	SupplierID SupplierID
	Item       ItemDescriptor
	// SupplierCost: закупочная цена у поставщика (prix_achat_fournisseur).
	SupplierCost       decimal.Decimal
	PriceAgreed        decimal.Decimal
	AmountPaid         decimal.Decimal
	AmountRemaining    decimal.Decimal
	Status             Status
	CancellationReason *string
	CreatedAt          time.Time
	StatusChangedAt    time.Time
}

// ValidateInvariants проверяет финансовые инварианты заказа и возвращает список замечаний.
func (o *SpecialOrder) ValidateInvariants() []error {
	var errs []error

	if !o.PriceAgreed.IsPositive() {
		errs = append(errs, NewValidationError("prix_vente_client", "must be greater than 0"))
	}
	if o.AmountPaid.IsNegative() || o.AmountPaid.GreaterThan(o.PriceAgreed) {
		errs = append(errs, &PaymentError{Field: "montant_paye", Value: o.AmountPaid, Ceiling: o.PriceAgreed})
	}
	if !o.AmountRemaining.Equal(o.PriceAgreed.Sub(o.AmountPaid)) {
		errs = append(errs, NewValidationError("montant_restant", "must equal price minus amount paid"))
	}
	if !o.Status.Valid() {
		errs = append(errs, NewValidationError("statut", "unknown status "+string(o.Status)))
	} else if o.Status.PaymentTracked() {
		// Ordered/Received/Cancelled/Replaced выставляются вручную и не сверяются с оплатой.
		if rec, err := Derive(o.PriceAgreed, o.AmountPaid); err == nil && rec.Status != o.Status {
			errs = append(errs, NewValidationError("statut", "does not match payment state "+string(rec.Status)))
		}
	}
	if o.CancellationReason != nil && o.Status != StatusCancelled {
		errs = append(errs, NewValidationError("raison_annulation", "allowed only for cancelled orders"))
	}
	if o.StatusChangedAt.Before(o.CreatedAt) {
		errs = append(errs, NewValidationError("date_statut_change", "must not precede date_commande"))
	}

	return errs
}

// OrderView: проекция списка: заказ вместе с именами клиента и поставщика.
type OrderView struct {
	Order        SpecialOrder
	ClientName   string
	ClientPhone  string
	SupplierName string
}

// SoldAt повторяет поведение исходной выборки: дата продажи равна дате смены статуса.
func (v OrderView) SoldAt() time.Time {
	return v.Order.StatusChangedAt
}

// CreateOrderInput содержит данные для оформления спецзаказа.
type CreateOrderInput struct {
	ClientName   string
	SupplierName string
	Item         ItemDescriptor
	SupplierCost decimal.Decimal
	PriceAgreed  decimal.Decimal
	OpeningPaid  decimal.Decimal
}

// Normalize обрезает пробелы в текстовых полях.
func (in CreateOrderInput) Normalize() CreateOrderInput {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.SupplierName = strings.TrimSpace(in.SupplierName)
	in.Item.Brand = strings.TrimSpace(in.Item.Brand)
	in.Item.Model = strings.TrimSpace(in.Item.Model)
	in.Item.Storage = strings.TrimSpace(in.Item.Storage)
	in.Item.Type = strings.TrimSpace(in.Item.Type)
	in.Item.PackagingType = strings.TrimSpace(in.Item.PackagingType)
	in.Item.DeviceID = strings.TrimSpace(in.Item.DeviceID)
	return in
}

// Validate проверяет обязательные поля и денежные значения.
// Возвращает первую найденную ошибку.
func (in CreateOrderInput) Validate() error {
	switch {
	case in.ClientName == "":
		return NewValidationError("client_nom", "is required")
	case in.SupplierName == "":
		return NewValidationError("fournisseur_nom", "is required")
	case in.Item.Brand == "":
		return NewValidationError("marque", "is required")
	case in.Item.Model == "":
		return NewValidationError("modele", "is required")
	case in.Item.Type == "":
		return NewValidationError("type", "is required")
	case in.SupplierCost.IsNegative():
		return NewValidationError("prix_achat_fournisseur", "must be non-negative")
	}
	if err := CheckAmount("prix_achat_fournisseur", in.SupplierCost); err != nil {
		return err
	}
	_, err := Derive(in.PriceAgreed, in.OpeningPaid)
	return err
}
