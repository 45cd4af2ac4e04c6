package domain

import "github.com/shopspring/decimal"

// Reconciliation: результат пересчёта оплаты.
type Reconciliation struct {
	Remaining decimal.Decimal
	Status    Status
}

// Derive вычисляет остаток и статус по цене и предлагаемой сумме оплаты.
// Функция чистая: вызывается и при создании заказа, и при обновлении оплаты.
func Derive(priceAgreed, proposedPaid decimal.Decimal) (Reconciliation, error) {
	if err := CheckAmount("prix_vente_client", priceAgreed); err != nil {
		return Reconciliation{}, err
	}
	if err := CheckAmount("montant_paye", proposedPaid); err != nil {
		return Reconciliation{}, err
	}
	if !priceAgreed.IsPositive() {
		return Reconciliation{}, &PaymentError{Field: "prix_vente_client", Value: priceAgreed, Ceiling: priceAgreed}
	}
	if proposedPaid.IsNegative() || proposedPaid.GreaterThan(priceAgreed) {
		return Reconciliation{}, &PaymentError{Field: "montant_paye", Value: proposedPaid, Ceiling: priceAgreed}
	}

	rec := Reconciliation{Remaining: priceAgreed.Sub(proposedPaid)}
	switch {
	case proposedPaid.GreaterThanOrEqual(priceAgreed):
		rec.Status = StatusSold
	case proposedPaid.IsPositive():
		rec.Status = StatusPartiallyPaid
	default:
		rec.Status = StatusPending
	}
	return rec, nil
}
