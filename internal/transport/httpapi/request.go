package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

const maxBodyBytes = 1 << 20

// CreateOrderRequest: тело POST /api/special-orders.
type CreateOrderRequest struct {
	ClientName    string `json:"client_nom" validate:"required"`
	SupplierName  string `json:"fournisseur_nom" validate:"required"`
	Brand         string `json:"marque" validate:"required"`
	Model         string `json:"modele" validate:"required"`
	Storage       string `json:"stockage"`
	Type          string `json:"type" validate:"required"`
	PackagingType string `json:"type_carton"`
	DeviceID      string `json:"imei" validate:"omitempty,max=64"`
	SupplierCost  Amount `json:"prix_achat_fournisseur"`
	PriceAgreed   Amount `json:"prix_vente_client"`
	OpeningPaid   Amount `json:"montant_paye"`
}

// UpdateStatusRequest: тело PUT /api/special-orders/{id}/update-status.
type UpdateStatusRequest struct {
	Status             string  `json:"statut" validate:"required"`
	CancellationReason *string `json:"raison_annulation"`
}

// UpdatePaymentRequest: тело PUT /api/special-orders/{id}/update-payment.
type UpdatePaymentRequest struct {
	AmountPaid Amount `json:"new_montant_paye"`
}

// ToInput переводит запрос в доменную команду.
func (r CreateOrderRequest) ToInput() (domain.CreateOrderInput, error) {
	if !r.PriceAgreed.IsSet() {
		return domain.CreateOrderInput{}, domain.NewValidationError("prix_vente_client", "is required")
	}
	price, err := r.PriceAgreed.Decimal("prix_vente_client")
	if err != nil {
		return domain.CreateOrderInput{}, err
	}
	cost, err := r.SupplierCost.DecimalOr("prix_achat_fournisseur", decimal.Zero)
	if err != nil {
		return domain.CreateOrderInput{}, err
	}
	paid, err := r.OpeningPaid.DecimalOr("montant_paye", decimal.Zero)
	if err != nil {
		return domain.CreateOrderInput{}, err
	}

	return domain.CreateOrderInput{
		ClientName:   r.ClientName,
		SupplierName: r.SupplierName,
		Item: domain.ItemDescriptor{
			Brand:         r.Brand,
			Model:         r.Model,
			Storage:       r.Storage,
			Type:          r.Type,
			PackagingType: r.PackagingType,
			DeviceID:      r.DeviceID,
		},
		SupplierCost: cost,
		PriceAgreed:  price,
		OpeningPaid:  paid,
	}, nil
}

// ValidationErrorResponse возвращается при ошибках валидации тегов.
type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			details[fieldErr.Field()] = "is required"
		case "max":
			details[fieldErr.Field()] = fmt.Sprintf("must be at most %s characters", fieldErr.Param())
		default:
			details[fieldErr.Field()] = "failed on " + fieldErr.Tag()
		}
	}
	return details
}

// decodeJSON читает тело запроса. Неизвестные поля игнорируются.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is empty")
		}
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}
