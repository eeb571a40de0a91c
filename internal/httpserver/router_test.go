package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"garment-storefront/internal/auth"
	"garment-storefront/internal/domain"
	"garment-storefront/internal/lifecycle"
	"garment-storefront/internal/orderapi"
	"garment-storefront/internal/service/record"
	"github.com/gin-gonic/gin"
)

const testSecret = "router-test-secret"

type stubOrderService struct {
	order      *domain.Order
	err        error
	lastActor  domain.Actor
	lastID     string
	lastInput  record.TransitionInput
	lastItems  []record.ItemInput
	lastImages []domain.Upload
	lastState  domain.State
}

func (s *stubOrderService) CreateCatalogOrder(_ context.Context, actor domain.Actor, items []record.ItemInput, _ string) (*domain.Order, error) {
	s.lastActor = actor
	s.lastItems = items
	return s.order, s.err
}

func (s *stubOrderService) ProposeCustom(_ context.Context, actor domain.Actor, _ domain.CustomOrderSpec, images []domain.Upload, _ bool) (*domain.Order, error) {
	s.lastActor = actor
	s.lastImages = images
	return s.order, s.err
}

func (s *stubOrderService) Transition(_ context.Context, actor domain.Actor, id string, in record.TransitionInput) (*domain.Order, error) {
	s.lastActor = actor
	s.lastID = id
	s.lastInput = in
	return s.order, s.err
}

func (s *stubOrderService) Get(_ context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	s.lastActor = actor
	s.lastID = id
	return s.order, s.err
}

func (s *stubOrderService) List(_ context.Context, actor domain.Actor, state domain.State) ([]domain.Order, error) {
	s.lastActor = actor
	s.lastState = state
	if s.order == nil {
		return nil, s.err
	}
	return []domain.Order{*s.order}, s.err
}

func logDiscard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestRouter(t *testing.T, svc *stubOrderService) *gin.Engine {
	t.Helper()
	router, err := buildRouter(logDiscard(), nil, Deps{Orders: svc, Tokens: auth.New(testSecret)})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	gin.SetMode(gin.TestMode)
	return router
}

func bearer(t *testing.T, actor domain.Actor) string {
	t.Helper()
	tok, err := auth.New(testSecret).Issue(actor, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) orderapi.ErrorResponse {
	t.Helper()
	var body orderapi.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

var (
	testCustomer = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	testStaff    = domain.Actor{ID: "staff-1", Role: domain.RoleStaff}
)

func TestBuildRouter_RequiresDeps(t *testing.T) {
	if _, err := buildRouter(logDiscard(), nil, Deps{}); err == nil {
		t.Fatalf("expected error without services")
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, &stubOrderService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without db, got %d", rec.Code)
	}
}

func TestReadyz_ReportsFailedChecks(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	router, err := buildRouter(logDiscard(), nil, Deps{Orders: &stubOrderService{}, Tokens: auth.New(testSecret), ArtifactDir: missing})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Failed map[string]string `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Failed["db"] != "not configured" {
		t.Fatalf("expected db failure, got %+v", body.Failed)
	}
	if _, ok := body.Failed["artifacts"]; !ok {
		t.Fatalf("expected artifacts failure, got %+v", body.Failed)
	}
}

func TestAuthMiddleware_RejectsMissingAndInvalidTokens(t *testing.T) {
	router := newTestRouter(t, &stubOrderService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/order", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/order", nil)
	forged, err := auth.New("other-secret").Issue(testStaff, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}
	if decodeError(t, rec).Code != orderapi.CodeUnauthorized {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &stubOrderService{order: &domain.Order{ID: "o-1", State: domain.StatePendingPayment, TotalCents: 158000}}
	router := newTestRouter(t, svc)

	body := `{"items":[{"productId":"kaos-polos","size":"M","color":"black","quantity":2}],"notes":"ring twice"}`
	req := httptest.NewRequest(http.MethodPost, "/order", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, testCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.lastActor != testCustomer {
		t.Fatalf("unexpected actor %+v", svc.lastActor)
	}
	if len(svc.lastItems) != 1 || svc.lastItems[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", svc.lastItems)
	}
	if !strings.Contains(rec.Body.String(), `"state":"PendingPayment"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestTransition_RequiresExpectedState(t *testing.T) {
	svc := &stubOrderService{order: &domain.Order{ID: "o-1"}}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/order/production/o-1", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, testStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != orderapi.CodeValidation || got.Field != orderapi.HeaderExpectedState {
		t.Fatalf("unexpected error %+v", got)
	}
	if svc.lastID != "" {
		t.Fatalf("service should not be called")
	}
}

func TestVerify_MapsDecisionAndLegacyExpectedState(t *testing.T) {
	svc := &stubOrderService{order: &domain.Order{ID: "o-1", State: domain.StatePendingPayment}}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/order/verify/o-1", strings.NewReader(`{"decision":"reject","reason":"blurry"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, testStaff))
	req.Header.Set(orderapi.HeaderExpectedState, "Menunggu_Konfirmasi")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.lastInput.Action != lifecycle.ActionRejectPayment || svc.lastInput.Reason != "blurry" {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
	if svc.lastInput.Expected != domain.StateAwaitingVerification {
		t.Fatalf("expected AwaitingVerification, got %s", svc.lastInput.Expected)
	}

	req = httptest.NewRequest(http.MethodPost, "/order/verify/o-1", strings.NewReader(`{"decision":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, testStaff))
	req.Header.Set(orderapi.HeaderExpectedState, "AwaitingVerification")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Field != "decision" {
		t.Fatalf("expected decision validation error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestTransition_ConflictBody(t *testing.T) {
	svc := &stubOrderService{err: domain.StateConflict(domain.StateInProduction, domain.StateCancelled)}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/order/dispatch/o-1", strings.NewReader("carrierRef=JNE-1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", bearer(t, testStaff))
	req.Header.Set(orderapi.HeaderExpectedState, "InProduction")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	got := decodeError(t, rec)
	if got.Code != orderapi.CodeStateConflict || got.ExpectedState != domain.StateInProduction || got.ActualState != domain.StateCancelled {
		t.Fatalf("unexpected error %+v", got)
	}
	if svc.lastInput.CarrierRef != "JNE-1" || svc.lastInput.Photo != nil {
		t.Fatalf("unexpected dispatch input %+v", svc.lastInput)
	}
}

func TestUploadProof_Multipart(t *testing.T) {
	svc := &stubOrderService{order: &domain.Order{ID: "o-1", State: domain.StateAwaitingVerification}}
	router := newTestRouter(t, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("orderId", "o-1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	w, err := mw.CreateFormFile("proofImage", "transfer.jpg")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	w.Write([]byte("jpeg-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/order/checkout/proof", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, testCustomer))
	req.Header.Set(orderapi.HeaderExpectedState, "PendingPayment")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.lastID != "o-1" || svc.lastInput.Action != lifecycle.ActionUploadProof {
		t.Fatalf("unexpected call id=%s input=%+v", svc.lastID, svc.lastInput)
	}
	if svc.lastInput.Proof == nil || string(svc.lastInput.Proof.Data) != "jpeg-bytes" || svc.lastInput.Proof.Name != "transfer.jpg" {
		t.Fatalf("unexpected proof %+v", svc.lastInput.Proof)
	}
}

func TestList_StateFilter(t *testing.T) {
	svc := &stubOrderService{order: &domain.Order{ID: "o-1", State: domain.StateCompleted}}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/order?state=Selesai", nil)
	req.Header.Set("Authorization", bearer(t, testStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || svc.lastState != domain.StateCompleted {
		t.Fatalf("unexpected response %d state=%s", rec.Code, svc.lastState)
	}

	req = httptest.NewRequest(http.MethodGet, "/order?state=Teleported", nil)
	req.Header.Set("Authorization", bearer(t, testStaff))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	svc := &stubOrderService{err: errors.New("connection reset by peer")}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/order/6c1f0f38-4d4b-4a40-9a61-1f8f3ac0b4a2", nil)
	req.Header.Set("Authorization", bearer(t, testStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestClientRoundTrip(t *testing.T) {
	svc := &stubOrderService{err: domain.Unauthorized(string(lifecycle.ActionStartProduction), domain.RoleCustomer)}
	router := newTestRouter(t, svc)
	srv := httptest.NewServer(router)
	defer srv.Close()

	tok, err := auth.New(testSecret).Issue(testCustomer, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	client := orderapi.New(srv.URL, tok, 2*time.Second, nil)

	_, err = client.StartProduction(context.Background(), "o-1", domain.StateVerified)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if svc.lastInput.Expected != domain.StateVerified {
		t.Fatalf("expected header to reach the service, got %q", svc.lastInput.Expected)
	}

	svc.err = nil
	svc.order = &domain.Order{ID: "o-1", State: domain.StateInProduction}
	o, err := client.StartProduction(context.Background(), "o-1", domain.StateVerified)
	if err != nil {
		t.Fatalf("StartProduction: %v", err)
	}
	if o.State != domain.StateInProduction {
		t.Fatalf("unexpected state %s", o.State)
	}
}

type stubCatalog struct {
	products []domain.Product
}

func (s *stubCatalog) List(context.Context) ([]domain.Product, error) {
	return s.products, nil
}

func (s *stubCatalog) Get(_ context.Context, id string) (*domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func TestCatalogRoutesArePublic(t *testing.T) {
	catalog := &stubCatalog{products: []domain.Product{{ID: "kaos-polos", Name: "Plain Tee", PriceCents: 79000}}}
	router, err := buildRouter(logDiscard(), nil, Deps{Orders: &stubOrderService{}, Products: catalog, Tokens: auth.New(testSecret)})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	srv := httptest.NewServer(router)
	defer srv.Close()

	client := orderapi.New(srv.URL, "", time.Second, nil)
	products, err := client.Products(context.Background())
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 1 || products[0].PriceCents != 79000 {
		t.Fatalf("unexpected products %+v", products)
	}
	if _, err := client.Product(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
