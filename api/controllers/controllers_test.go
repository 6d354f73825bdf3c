package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medmarket/medmarket-backend/api/middleware"
	"github.com/medmarket/medmarket-backend/internal/approvals"
	"github.com/medmarket/medmarket-backend/internal/cart"
	"github.com/medmarket/medmarket-backend/internal/checkout"
	"github.com/medmarket/medmarket-backend/internal/eligibility"
	"github.com/medmarket/medmarket-backend/internal/orders"
	productsvc "github.com/medmarket/medmarket-backend/internal/products"
	"github.com/medmarket/medmarket-backend/internal/users"
	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/pagination"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
)

func withActor(req *http.Request, role enums.UserRole) (*http.Request, middleware.Actor) {
	actor := middleware.Actor{UserID: uuid.New(), Role: role, Approval: enums.ApprovalStatusApproved}
	return req.WithContext(middleware.WithActor(req.Context(), actor)), actor
}

func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

type stubCart struct {
	cart.Service
	actor    cart.Actor
	product  uuid.UUID
	quantity int
	err      error
}

func (s *stubCart) Get(context.Context, uuid.UUID) (*cart.View, error) {
	return &cart.View{Lines: []cart.LineView{}}, s.err
}

func (s *stubCart) AddItem(_ context.Context, actor cart.Actor, productID uuid.UUID, quantity int) (*cart.View, error) {
	s.actor, s.product, s.quantity = actor, productID, quantity
	if s.err != nil {
		return nil, s.err
	}
	return &cart.View{ItemCount: quantity, Total: decimal.NewFromInt(int64(quantity))}, nil
}

func (s *stubCart) UpdateItem(_ context.Context, actor cart.Actor, productID uuid.UUID, quantity int) (*cart.View, error) {
	s.actor, s.product, s.quantity = actor, productID, quantity
	return &cart.View{ItemCount: quantity}, s.err
}

func TestCartRequiresAuthentication(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	CartGet(&stubCart{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), decodeError(t, rec))
}

func TestCartAddItemPassesActorAndQuantity(t *testing.T) {
	svc := &stubCart{}
	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","quantity":25}`
	req, actor := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), enums.UserRoleDoctor)
	rec := httptest.NewRecorder()

	CartAddItem(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, actor.UserID, svc.actor.UserID)
	assert.Equal(t, enums.UserRoleDoctor, svc.actor.Role)
	assert.Equal(t, productID, svc.product)
	assert.Equal(t, 25, svc.quantity)
}

func TestCartAddItemValidatesBody(t *testing.T) {
	cases := map[string]string{
		"zero quantity":  `{"product_id":"` + uuid.NewString() + `","quantity":0}`,
		"bad product id": `{"product_id":"nope","quantity":1}`,
		"above line cap": `{"product_id":"` + uuid.NewString() + `","quantity":100001}`,
		"max int":        `{"product_id":"` + uuid.NewString() + `","quantity":9223372036854775807}`,
		"unknown field":  `{"product_id":"` + uuid.NewString() + `","quantity":1,"price":"1"}`,
		"empty":          ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubCart{}
			req, _ := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), enums.UserRoleCustomer)
			rec := httptest.NewRecorder()
			CartAddItem(svc, nil).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, svc.quantity)
		})
	}
}

func TestCartUpdateItemSurfacesServiceErrors(t *testing.T) {
	svc := &stubCart{err: pkgerrors.New(pkgerrors.CodeForbidden, "approval required")}
	req, _ := withActor(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/x", strings.NewReader(`{"quantity":3}`)), enums.UserRoleCustomer)
	req = withParam(req, "productId", uuid.NewString())
	rec := httptest.NewRecorder()

	CartUpdateItem(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 3, svc.quantity)
}

type stubProducts struct {
	productsvc.Service
	input productsvc.ListProductsInput
	tiers []pricing.Tier
}

func (s *stubProducts) ListProducts(_ context.Context, input productsvc.ListProductsInput) (*productsvc.ProductListResult, error) {
	s.input = input
	return &productsvc.ProductListResult{Items: []productsvc.ProductDTO{{ID: uuid.New(), Name: "Syringe"}}, Cursor: "next"}, nil
}

func (s *stubProducts) ReplaceDiscounts(_ context.Context, id uuid.UUID, tiers []pricing.Tier) (*productsvc.ProductDTO, error) {
	s.tiers = tiers
	return &productsvc.ProductDTO{ID: id}, nil
}

func TestCatalogProductsForwardsFilters(t *testing.T) {
	svc := &stubProducts{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=syringes&q=%20insulin%20&limit=5", nil)
	rec := httptest.NewRecorder()

	CatalogProducts(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "syringes", svc.input.CategorySlug)
	assert.Equal(t, "insulin", svc.input.Search)
	assert.Equal(t, 5, svc.input.Pagination.Limit)

	var body struct {
		Data struct {
			Items      []map[string]any `json:"items"`
			NextCursor string           `json:"next_cursor"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Items, 1)
	assert.Equal(t, "next", body.Data.NextCursor)
}

func TestAdminReplaceDiscountsDecodesTiers(t *testing.T) {
	svc := &stubProducts{}
	body := `{"bulk_discounts":[{"min_quantity":10,"max_quantity":49,"discount_percentage":"10"},{"min_quantity":50,"max_quantity":null,"discount_percentage":"20"}]}`
	req := withParam(httptest.NewRequest(http.MethodPut, "/api/admin/v1/products/x/discounts", strings.NewReader(body)), "productId", uuid.NewString())
	rec := httptest.NewRecorder()

	AdminReplaceDiscounts(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.tiers, 2)
	assert.False(t, svc.tiers[1].MaxQuantity.IsBounded())
}

type stubCheckout struct {
	decision eligibility.Decision
	result   *checkout.Result
	err      error
}

func (s *stubCheckout) Eligibility(context.Context, uuid.UUID) eligibility.Decision {
	return s.decision
}

func (s *stubCheckout) Execute(context.Context, uuid.UUID) (*checkout.Result, error) {
	return s.result, s.err
}

func TestCheckoutEligibilityAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/eligibility", nil)
	rec := httptest.NewRecorder()

	CheckoutEligibility(&stubCheckout{}, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data eligibility.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.Eligible)
	assert.Equal(t, eligibility.ReasonNotAuthenticated, body.Data.Reason)
}

func TestCheckoutExecute(t *testing.T) {
	svc := &stubCheckout{result: &checkout.Result{PaymentIntentID: "pi_1", ClientSecret: "secret"}}
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil), enums.UserRoleDoctor)
	rec := httptest.NewRecorder()

	CheckoutExecute(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"client_secret":"secret"`)

	svc.err = pkgerrors.New(pkgerrors.CodeForbidden, "checkout blocked").WithDetails(map[string]any{"reason": "APPROVAL_PENDING"})
	rec = httptest.NewRecorder()
	CheckoutExecute(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "APPROVAL_PENDING")
}

type stubOrders struct {
	orders.Service
	status enums.OrderStatus
	userID uuid.UUID
}

func (s *stubOrders) ListForUser(_ context.Context, userID uuid.UUID, _ pagination.Params) (*orders.OrderList, error) {
	s.userID = userID
	return &orders.OrderList{}, nil
}

func (s *stubOrders) AdminUpdateStatus(_ context.Context, id uuid.UUID, next enums.OrderStatus) (*orders.OrderDTO, error) {
	s.status = next
	if next == enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move")
	}
	return &orders.OrderDTO{ID: id, Status: next}, nil
}

func TestOrderListScopesToCaller(t *testing.T) {
	svc := &stubOrders{}
	req, actor := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), enums.UserRoleCustomer)
	rec := httptest.NewRecorder()

	OrderList(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actor.UserID, svc.userID)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestAdminOrderUpdateStatus(t *testing.T) {
	svc := &stubOrders{}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"shipped"}`)), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()
	AdminOrderUpdateStatus(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.OrderStatusShipped, svc.status)

	req = withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"pending_payment"}`)), "orderId", uuid.NewString())
	rec = httptest.NewRecorder()
	AdminOrderUpdateStatus(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

type stubApprovals struct {
	params approvals.ListParams
	input  approvals.DecisionInput
}

func (s *stubApprovals) List(_ context.Context, params approvals.ListParams) (*approvals.ListResult, error) {
	s.params = params
	return &approvals.ListResult{}, nil
}

func (s *stubApprovals) Decide(_ context.Context, input approvals.DecisionInput) (*users.UserDTO, error) {
	s.input = input
	return &users.UserDTO{ID: input.UserID}, nil
}

func TestAdminApprovalListStatusFilter(t *testing.T) {
	svc := &stubApprovals{}
	rec := httptest.NewRecorder()
	AdminApprovalList(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.ApprovalStatusPending, svc.params.Status)

	rec = httptest.NewRecorder()
	AdminApprovalList(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?status=all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.params.Status)

	rec = httptest.NewRecorder()
	AdminApprovalList(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?status=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRejectRequiresReason(t *testing.T) {
	svc := &stubApprovals{}
	userID := uuid.New()

	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), enums.UserRoleAdmin)
	req = withParam(req, "userId", userID.String())
	rec := httptest.NewRecorder()
	AdminReject(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, admin := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"license expired"}`)), enums.UserRoleAdmin)
	req = withParam(req, "userId", userID.String())
	rec = httptest.NewRecorder()
	AdminReject(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, enums.ApprovalDecisionReject, svc.input.Decision)
	assert.Equal(t, admin.UserID, svc.input.Reviewer)
	assert.Equal(t, "license expired", svc.input.Reason)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{
		"db": pingFunc(func(context.Context) error { return nil }),
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{
		"db":    pingFunc(func(context.Context) error { return nil }),
		"redis": pingFunc(func(context.Context) error { return errors.New("refused") }),
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}
