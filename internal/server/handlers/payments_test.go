package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	paymentservice "github.com/lumenlearn/pvs/internal/application/payment"
	"github.com/lumenlearn/pvs/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePaymentService struct {
	payments map[string]*domain.Payment
	override struct {
		id     string
		status domain.PaymentStatus
		notes  string
	}
}

func newFakePaymentService(payments ...*domain.Payment) *fakePaymentService {
	s := &fakePaymentService{payments: make(map[string]*domain.Payment)}
	for _, p := range payments {
		s.payments[p.ID] = p
	}
	return s
}

func (s *fakePaymentService) Submit(ctx context.Context, in paymentservice.SubmitInput) (*domain.Payment, error) {
	p := &domain.Payment{
		ID:               "new-id",
		UserID:           in.UserID,
		TxRef:            in.TxRef,
		Status:           domain.StatusPending,
		ValidationStatus: string(domain.ValidationUnclear),
		ExpiresAt:        time.Now().Add(24 * time.Hour),
	}
	s.payments[p.ID] = p
	return p, nil
}

func (s *fakePaymentService) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return s.payments[id], nil
}

func (s *fakePaymentService) Stats(ctx context.Context, windowHours int) (*domain.PaymentStats, error) {
	return &domain.PaymentStats{WindowHours: windowHours}, nil
}

func (s *fakePaymentService) AdminOverride(ctx context.Context, id string, status domain.PaymentStatus, notes string) (*domain.Payment, error) {
	p := s.payments[id]
	if p == nil {
		return nil, fmt.Errorf("payment not found: %s", id)
	}
	s.override.id = id
	s.override.status = status
	s.override.notes = notes
	p.Status = status
	return p, nil
}

type fakeVerificationService struct {
	confirmed bool
	err       error
	calls     []string
}

func (s *fakeVerificationService) Start(ctx context.Context) {}
func (s *fakeVerificationService) Stop()                     {}

func (s *fakeVerificationService) VerifyNow(ctx context.Context, paymentID string) (bool, error) {
	s.calls = append(s.calls, paymentID)
	return s.confirmed, s.err
}

func testRouter(paymentSvc *fakePaymentService, verificationSvc *fakeVerificationService) *gin.Engine {
	h := NewPaymentHandler(paymentSvc, verificationSvc, zerolog.Nop())
	r := gin.New()
	r.POST("/v1/payments", h.Submit)
	r.GET("/v1/payments/:id", h.Get)
	r.POST("/v1/payments/:id/verify", h.VerifyNow)
	r.POST("/v1/payments/:id/reject", h.Reject)
	r.POST("/v1/payments/:id/approve", h.Approve)
	r.GET("/v1/stats", h.Stats)
	return r
}

func TestSubmitHandler(t *testing.T) {
	svc := newFakePaymentService()
	r := testRouter(svc, &fakeVerificationService{})

	body := `{
		"user_id": "user-1",
		"plan_id": "plan-1",
		"tx_ref": "abc",
		"amount": 1.5,
		"currency": "BTC",
		"method_symbol": "BTC"
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/payments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["payment_id"] != "new-id" {
		t.Errorf("payment_id = %v", resp["payment_id"])
	}
	if resp["status"] != string(domain.StatusPending) {
		t.Errorf("status = %v, want pending", resp["status"])
	}
}

func TestSubmitHandlerRejectsMissingFields(t *testing.T) {
	r := testRouter(newFakePaymentService(), &fakeVerificationService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/payments", bytes.NewBufferString(`{"user_id": "u"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetHandler(t *testing.T) {
	svc := newFakePaymentService(&domain.Payment{ID: "p1", Status: domain.StatusPending})
	r := testRouter(svc, &fakeVerificationService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/p1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var p domain.Payment
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if p.ID != "p1" {
		t.Errorf("id = %s, want p1", p.ID)
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	r := testRouter(newFakePaymentService(), &fakeVerificationService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestVerifyNowHandler(t *testing.T) {
	verificationSvc := &fakeVerificationService{confirmed: true}
	r := testRouter(newFakePaymentService(), verificationSvc)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/p1/verify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(verificationSvc.calls) != 1 || verificationSvc.calls[0] != "p1" {
		t.Errorf("VerifyNow calls = %v, want [p1]", verificationSvc.calls)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["confirmed"] != true {
		t.Errorf("confirmed = %v, want true", resp["confirmed"])
	}
}

func TestVerifyNowHandlerNotFound(t *testing.T) {
	verificationSvc := &fakeVerificationService{err: fmt.Errorf("payment not found: missing")}
	r := testRouter(newFakePaymentService(), verificationSvc)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/missing/verify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRejectHandler(t *testing.T) {
	svc := newFakePaymentService(&domain.Payment{ID: "p1", Status: domain.StatusPending})
	r := testRouter(svc, &fakeVerificationService{})

	body := `{"notes": "fabricated receipt"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/p1/reject", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if svc.override.status != domain.StatusRejected {
		t.Errorf("override status = %s, want rejected", svc.override.status)
	}
	if svc.override.notes != "fabricated receipt" {
		t.Errorf("override notes = %q", svc.override.notes)
	}
}

func TestRejectHandlerEmptyBody(t *testing.T) {
	svc := newFakePaymentService(&domain.Payment{ID: "p1", Status: domain.StatusPending})
	r := testRouter(svc, &fakeVerificationService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/p1/reject", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; notes are optional", w.Code)
	}
}

func TestApproveHandler(t *testing.T) {
	svc := newFakePaymentService(&domain.Payment{ID: "p1", Status: domain.StatusPending})
	r := testRouter(svc, &fakeVerificationService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/p1/approve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.override.status != domain.StatusConfirmed {
		t.Errorf("override status = %s, want confirmed", svc.override.status)
	}
}

func TestStatsHandler(t *testing.T) {
	r := testRouter(newFakePaymentService(), &fakeVerificationService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/stats?window_hours=48", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var stats domain.PaymentStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if stats.WindowHours != 48 {
		t.Errorf("window hours = %d, want 48", stats.WindowHours)
	}
}

func TestStatsHandlerDefaultWindow(t *testing.T) {
	r := testRouter(newFakePaymentService(), &fakeVerificationService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/stats?window_hours=bogus", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var stats domain.PaymentStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if stats.WindowHours != 24 {
		t.Errorf("window hours = %d, want default 24", stats.WindowHours)
	}
}
