package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	"github.com/vladislavdragonenkov/specialorders/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/specialorders/internal/service/query"
	"github.com/vladislavdragonenkov/specialorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/specialorders/internal/transport/httpapi"
)

type apiFixture struct {
	store  *memory.Store
	server http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	entry := logger.WithField("component", "http-api")

	store := memory.NewStore()
	store.AddClient("Alice", "+33 6 00 00 00 00")
	store.AddSupplier("Acme")

	manager := lifecycle.NewManager(store, lifecycle.WithLogger(entry))
	queries := query.NewService(store, entry)
	handler := httpapi.NewHandler(manager, queries, entry)

	return &apiFixture{
		store:  store,
		server: httpapi.NewRouter(handler, memory.NewIdempotencyRepository(), entry),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) create(t *testing.T, price, paid string) domain.OrderID {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/special-orders", createBody(price, paid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var payload struct {
		Message string         `json:"message"`
		OrderID domain.OrderID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotZero(t, payload.OrderID)
	return payload.OrderID
}

func createBody(price, paid string) string {
	return `{
		"client_nom": "Alice",
		"fournisseur_nom": "Acme",
		"marque": "Apple",
		"modele": "iPhone 15",
		"stockage": "256",
		"type": "phone",
		"type_carton": "sealed",
		"imei": "356938035643809",
		"prix_achat_fournisseur": "350",
		"prix_vente_client": ` + price + `,
		"montant_paye": ` + paid + `
	}`
}

func orderPath(id domain.OrderID, suffix string) string {
	return "/api/special-orders/" + strconv.FormatInt(int64(id), 10) + suffix
}

type updatedOrder struct {
	Message      string `json:"message"`
	UpdatedOrder struct {
		ID                 domain.OrderID `json:"id"`
		Status             string         `json:"statut"`
		AmountPaid         string         `json:"montant_paye"`
		AmountRemaining    string         `json:"montant_restant"`
		CancellationReason *string        `json:"raison_annulation"`
	} `json:"updatedOrder"`
}

func decodeUpdated(t *testing.T, rec *httptest.ResponseRecorder) updatedOrder {
	t.Helper()
	var payload updatedOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return payload
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	msg, _ := payload["error"].(string)
	return msg
}

func TestCreateAndList(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t, "1000", "300")

	rec := f.do(t, http.MethodGet, "/api/special-orders", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	view := views[0]
	assert.EqualValues(t, id, view["order_id"])
	assert.Equal(t, "Alice", view["client_nom"])
	assert.Equal(t, "+33 6 00 00 00 00", view["client_telephone"])
	assert.Equal(t, "Acme", view["fournisseur_nom"])
	assert.Equal(t, "paiement_partiel", view["statut"])
	assert.Equal(t, "1000.00", view["prix_vente_client"])
	assert.Equal(t, "300.00", view["montant_paye"])
	assert.Equal(t, "700.00", view["montant_restant"])
	assert.Equal(t, "350.00", view["prix_achat_fournisseur"])
	assert.Equal(t, view["date_statut_change"], view["date_vente"])
}

func TestListEmptyReturnsArray(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/special-orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateRejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing client",
			body:       `{"fournisseur_nom":"Acme","marque":"Apple","modele":"X","type":"phone","prix_vente_client":10}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed",
		},
		{
			name:       "missing price",
			body:       `{"client_nom":"Alice","fournisseur_nom":"Acme","marque":"Apple","modele":"X","type":"phone"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "prix_vente_client: is required",
		},
		{
			name:       "non numeric price",
			body:       createBody(`"abc"`, `0`),
			wantStatus: http.StatusBadRequest,
			wantError:  `prix_vente_client: "abc" is not a number`,
		},
		{
			name:       "overpayment",
			body:       createBody(`100`, `150`),
			wantStatus: http.StatusBadRequest,
			wantError:  "montant_paye: amount paid (150) must be between 0 and the order price (100)",
		},
		{
			name:       "unknown client",
			body:       `{"client_nom":"Bob","fournisseur_nom":"Acme","marque":"Apple","modele":"X","type":"phone","prix_vente_client":10}`,
			wantStatus: http.StatusNotFound,
			wantError:  `client "Bob" not found`,
		},
		{
			name:       "unknown supplier",
			body:       `{"client_nom":"Alice","fournisseur_nom":"Globex","marque":"Apple","modele":"X","type":"phone","prix_vente_client":10}`,
			wantStatus: http.StatusNotFound,
			wantError:  `supplier "Globex" not found`,
		},
		{
			name:       "malformed json",
			body:       `{"client_nom":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "body: invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			rec := f.do(t, http.MethodPost, "/api/special-orders", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, errorMessage(t, rec), tt.wantError)

			views, err := f.store.ListViews(context.Background())
			require.NoError(t, err)
			assert.Empty(t, views)
		})
	}
}

func TestCreateValidationDetailsUseJSONNames(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/special-orders", `{"prix_vente_client":10}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload httpapi.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "is required", payload.Details["client_nom"])
	assert.Equal(t, "is required", payload.Details["fournisseur_nom"])
	assert.Equal(t, "is required", payload.Details["marque"])
}

func TestUpdatePaymentScenario(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t, "1000", "0")

	steps := []struct {
		amount     string
		wantStatus string
		remaining  string
	}{
		{amount: `500`, wantStatus: "paiement_partiel", remaining: "500.00"},
		{amount: `"1000.00"`, wantStatus: "vendu", remaining: "0.00"},
		{amount: `0`, wantStatus: "en_attente", remaining: "1000.00"},
	}
	for _, step := range steps {
		rec := f.do(t, http.MethodPut, orderPath(id, "/update-payment"), `{"new_montant_paye":`+step.amount+`}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		payload := decodeUpdated(t, rec)
		assert.Equal(t, step.wantStatus, payload.UpdatedOrder.Status)
		assert.Equal(t, step.remaining, payload.UpdatedOrder.AmountRemaining)
	}
}

func TestUpdatePaymentRejections(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t, "500", "0")

	rec := f.do(t, http.MethodPut, orderPath(id, "/update-payment"), `{"new_montant_paye":600}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "(600)")
	assert.Contains(t, errorMessage(t, rec), "(500)")

	rec = f.do(t, http.MethodPut, orderPath(id, "/update-payment"), `{"new_montant_paye":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, orderPath(id, "/update-payment"), `{"new_montant_paye":"ten"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, orderPath(id, "/update-payment"), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, orderPath(999, "/update-payment"), `{"new_montant_paye":10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/special-orders/abc/update-payment", `{"new_montant_paye":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	views, err := f.store.ListViews(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Order.AmountPaid.IsZero())
}

func TestUpdateStatusCancelKeepsPaymentAndReason(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t, "1000", "200")

	rec := f.do(t, http.MethodPut, orderPath(id, "/update-status"), `{"statut":"annulé","raison_annulation":"client changed mind"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeUpdated(t, rec)
	assert.Equal(t, "annulé", payload.UpdatedOrder.Status)
	assert.Equal(t, "200.00", payload.UpdatedOrder.AmountPaid)
	assert.Equal(t, "800.00", payload.UpdatedOrder.AmountRemaining)
	require.NotNil(t, payload.UpdatedOrder.CancellationReason)
	assert.Equal(t, "client changed mind", *payload.UpdatedOrder.CancellationReason)

	rec = f.do(t, http.MethodPut, orderPath(id, "/update-payment"), `{"new_montant_paye":300}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPut, orderPath(id, "/update-status"), `{"statut":"ordered"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	payload = decodeUpdated(t, rec)
	assert.Equal(t, "commandé", payload.UpdatedOrder.Status)
	assert.Nil(t, payload.UpdatedOrder.CancellationReason)
}

func TestUpdateStatusRejections(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t, "1000", "0")

	rec := f.do(t, http.MethodPut, orderPath(id, "/update-status"), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, orderPath(id, "/update-status"), `{"statut":"lost"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "unknown status")

	rec = f.do(t, http.MethodPut, orderPath(404, "/update-status"), `{"statut":"reçu"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAreZeroFilled(t *testing.T) {
	f := newAPIFixture(t)
	f.create(t, "1000", "0")
	f.create(t, "1000", "1000")

	rec := f.do(t, http.MethodGet, "/api/special-orders-stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Len(t, stats, len(domain.AllStatuses))
	assert.Equal(t, 1, stats["en_attente"])
	assert.Equal(t, 1, stats["vendu"])
	assert.Equal(t, 0, stats["remplacé"])
}

func TestTimeline(t *testing.T) {
	f := newAPIFixture(t)
	id := f.create(t, "1000", "0")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, orderPath(id, "/update-payment"), `{"new_montant_paye":400}`).Code)

	rec := f.do(t, http.MethodGet, orderPath(id, "/timeline"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "OrderCreated", events[0]["type"])
	assert.Equal(t, "PaymentUpdated", events[1]["type"])
	assert.Equal(t, "0.00", events[1]["montant_paye_before"])
	assert.Equal(t, "400.00", events[1]["montant_paye_after"])

	rec = f.do(t, http.MethodGet, orderPath(77, "/timeline"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) Create(ctx context.Context, in domain.CreateOrderInput) (domain.OrderID, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.OrderID), args.Error(1)
}

func (m *mockLifecycle) TransitionStatus(ctx context.Context, id domain.OrderID, to domain.Status, reason *string) (domain.SpecialOrder, error) {
	args := m.Called(ctx, id, to, reason)
	return args.Get(0).(domain.SpecialOrder), args.Error(1)
}

func (m *mockLifecycle) UpdatePayment(ctx context.Context, id domain.OrderID, amountPaid decimal.Decimal) (domain.SpecialOrder, error) {
	args := m.Called(ctx, id, amountPaid)
	return args.Get(0).(domain.SpecialOrder), args.Error(1)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		retryAfter bool
	}{
		{name: "timeout", err: domain.ErrTimeout, wantStatus: http.StatusServiceUnavailable, retryAfter: true},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusServiceUnavailable, retryAfter: true},
		{name: "transaction", err: domain.ErrTransactionFailure, wantStatus: http.StatusInternalServerError},
		{name: "transition", err: domain.ErrInvalidTransition, wantStatus: http.StatusConflict},
		{name: "frozen", err: domain.ErrPaymentFrozen, wantStatus: http.StatusConflict},
		{name: "not found", err: domain.ErrOrderNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := logtest.NewNullLogger()
			entry := logger.WithField("component", "http-api")

			lc := &mockLifecycle{}
			lc.On("UpdatePayment", mock.Anything, domain.OrderID(5), mock.Anything).
				Return(domain.SpecialOrder{}, tt.err).Once()

			router := httpapi.NewRouter(httpapi.NewHandler(lc, query.NewService(memory.NewStore(), entry), entry), nil, entry)
			req := httptest.NewRequest(http.MethodPut, "/api/special-orders/5/update-payment", bytes.NewReader([]byte(`{"new_montant_paye":1}`)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.retryAfter {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, rec.Header().Get("Retry-After"))
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "failed to update special order payment", errorMessage(t, rec))
			}
			lc.AssertExpectations(t)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", errorMessage(t, rec))
}
