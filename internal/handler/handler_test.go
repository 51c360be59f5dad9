package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/middleware"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/service"
)

type stubService struct {
	registerUser *model.User
	registerErr  error

	loginResult *service.LoginResult
	loginErr    error

	addPointsBalance int64
	addPointsErr     error

	createOrderResp *model.Order
	createOrderErr  error

	ordersResp []model.Order
	ordersErr  error

	reconcileStatuses []pos.OrderStatus
	reconcileErr      error
}

func (s *stubService) RegisterUser(context.Context, service.RegisterInput) (*model.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubService) Login(context.Context, string, string, string, int64) (*service.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubService) Logout(context.Context, string) error { return nil }

func (s *stubService) SendPasswordReset(context.Context, string) error { return nil }

func (s *stubService) ResetRedirectURL(token string) string {
	return "app://reset-password?token=" + token
}

func (s *stubService) ValidateResetToken(context.Context, string) error { return nil }

func (s *stubService) ResetPassword(context.Context, string, string) error { return nil }

func (s *stubService) GetUserByID(context.Context, int64) (*model.User, error) { return nil, nil }

func (s *stubService) GetUserByEmail(context.Context, string, int64) (*model.User, error) {
	return nil, nil
}

func (s *stubService) GetUserByPhone(context.Context, string, int64) (*model.User, error) {
	return nil, nil
}

func (s *stubService) LookupUser(context.Context, string, string, int64) (*model.User, error) {
	return nil, nil
}

func (s *stubService) GetUsersByBusiness(context.Context, int64) ([]model.User, error) {
	return nil, nil
}

func (s *stubService) DeleteUser(context.Context, int64) error { return nil }

func (s *stubService) UpdateUser(context.Context, int64, service.UpdateUserInput) (*model.User, error) {
	return nil, nil
}

func (s *stubService) AddPoints(context.Context, int64, float64) (int64, error) {
	return s.addPointsBalance, s.addPointsErr
}

func (s *stubService) RedeemPoints(context.Context, int64, float64) (int64, error) {
	return s.addPointsBalance, s.addPointsErr
}

func (s *stubService) UpdatePushToken(context.Context, string, string) error { return nil }

func (s *stubService) GetPushToken(context.Context, int64) (string, error) { return "", nil }

func (s *stubService) ToggleNotifications(context.Context, int64) (bool, error) { return false, nil }

func (s *stubService) UpgradeMembership(context.Context, int64) error { return nil }

func (s *stubService) DowngradeMembership(context.Context, int64) error { return nil }

func (s *stubService) CreateReferral(context.Context, int64, string, string) (*model.Referral, error) {
	return nil, nil
}

func (s *stubService) GetReferralsByUser(context.Context, int64) ([]model.Referral, error) {
	return nil, nil
}

func (s *stubService) ReconcileUserOrders(context.Context, int64) ([]pos.OrderStatus, error) {
	return s.reconcileStatuses, s.reconcileErr
}

func (s *stubService) CreateOrder(context.Context, service.CreateOrderInput) (*model.Order, error) {
	return s.createOrderResp, s.createOrderErr
}

func (s *stubService) GetOrderByID(context.Context, int64) (*model.Order, error) { return nil, nil }

func (s *stubService) GetOrdersByBusiness(context.Context, int64) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetOrdersByUser(context.Context, int64) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetPendingOrdersByUser(context.Context, int64) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) CreateBusiness(context.Context, string) (*model.Business, error) {
	return nil, nil
}

func (s *stubService) GetAllBusinesses(context.Context) ([]model.Business, error) { return nil, nil }

func (s *stubService) GetBusinessByID(context.Context, int64) (*model.Business, error) {
	return nil, nil
}

func (s *stubService) UpdateBusiness(context.Context, int64, repository.BusinessUpdate) (*model.Business, error) {
	return nil, nil
}

func (s *stubService) DeleteBusiness(context.Context, int64) error { return nil }

func (s *stubService) SendBusinessEmail(context.Context, string, string, string, string) error {
	return nil
}

func (s *stubService) SendPushToUser(context.Context, int64, string, string) (*model.Notification, error) {
	return nil, nil
}

func (s *stubService) GetNotificationsByUser(context.Context, int64) ([]model.Notification, error) {
	return nil, nil
}

func (s *stubService) DeleteNotification(context.Context, int64) error { return nil }

func (s *stubService) DeleteNotificationsByUser(context.Context, int64) error { return nil }

func (s *stubService) MarkNotificationRead(context.Context, int64) error { return nil }

func (s *stubService) MarkAllNotificationsRead(context.Context, int64) error { return nil }

func (s *stubService) GetAllProducts(context.Context, int64) ([]model.Product, error) {
	return nil, nil
}

type stubSessions struct {
	sessions map[string]*model.Session
}

func (s *stubSessions) GetActiveSession(_ context.Context, sessionID string) (*model.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return sess, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware(&stubSessions{sessions: map[string]*model.Session{
		"sess-1": {SessionID: "sess-1", UserID: 1, BusinessID: 7, ExpiresAt: time.Now().Add(time.Hour)},
	}})

	return NewHandler(svc, logger, auth)
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer sess-1")
	return req
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: 42, Email: "new@example.com", BusinessID: 7},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		FirstName:  "Ada",
		Email:      "new@example.com",
		Password:   "longenough",
		BusinessID: 7,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		FirstName:  "Ada",
		Email:      "taken@example.com",
		Password:   "longenough",
		BusinessID: 7,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}

	var resp apiError
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Field != "email" {
		t.Fatalf("error field = %q, want email", resp.Field)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{loginErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "user@example.com", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestLogin_Success(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	svc := &stubService{loginResult: &service.LoginResult{
		User:    &model.User{ID: 1, Email: "user@example.com"},
		Session: &model.Session{SessionID: "sess-1", ExpiresAt: expires},
	}}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "user@example.com", Password: "right"})

	req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp loginResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Fatalf("session id = %q, want sess-1", resp.SessionID)
	}
}

func TestAddPoints_InvalidAmount(t *testing.T) {
	svc := &stubService{addPointsErr: service.ErrInvalidAmount}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(pointsRequest{UserID: 1, Points: -5})

	req := authedRequest(http.MethodPut, "/api/users/add-points", body)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.AddPoints))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestRedeemPoints_Insufficient(t *testing.T) {
	svc := &stubService{addPointsErr: repository.ErrInsufficientPoints}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(pointsRequest{UserID: 1, Points: 1000})

	req := authedRequest(http.MethodPut, "/api/users/redeem-points", body)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.RedeemPoints))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestCreateOrder_ConflictingPoints(t *testing.T) {
	svc := &stubService{createOrderErr: service.ErrConflictingPoints}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createOrderRequest{
		PosOrderID:   "A100",
		PointsAdd:    50,
		PointsRedeem: 50,
	})

	req := authedRequest(http.MethodPost, "/api/orders/create", body)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestValidateSession_ReturnsStatuses(t *testing.T) {
	svc := &stubService{reconcileStatuses: []pos.OrderStatus{
		{ID: "A100", Complete: true},
	}}
	h := newTestHandler(t, svc)

	req := authedRequest(http.MethodGet, "/api/users/validate-session", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.ValidateSession))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp struct {
		Valid  bool              `json:"valid"`
		Orders []pos.OrderStatus `json:"orders"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("expected valid session")
	}
	if len(resp.Orders) != 1 || resp.Orders[0].ID != "A100" {
		t.Fatalf("unexpected orders payload: %+v", resp.Orders)
	}
}

func TestGetOrders_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetOrders))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}
