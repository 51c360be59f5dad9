package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
)

// fakeRepo keeps the ledger in memory with the same exactly-once semantics
// as the Postgres implementation: eager debit at order creation, settlement
// gated on the points_awarded flag.
type fakeRepo struct {
	Repository

	mu            sync.Mutex
	users         map[int64]*model.User
	orders        map[int64]*model.Order
	notifications []model.Notification
	nextOrderID   int64
	settleCalls   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       make(map[int64]*model.User),
		orders:      make(map[int64]*model.Order),
		nextOrderID: 1,
	}
}

func (f *fakeRepo) addUser(u model.User) {
	f.users[u.ID] = &u
}

func (f *fakeRepo) balance(userID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID].Points
}

func (f *fakeRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeRepo) CreditPoints(_ context.Context, userID, businessID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.BusinessID != businessID {
		return 0, repository.ErrUserNotFound
	}
	u.Points += amount
	return u.Points, nil
}

func (f *fakeRepo) DebitPoints(_ context.Context, userID, businessID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.BusinessID != businessID {
		return 0, repository.ErrUserNotFound
	}
	if u.Points < amount {
		return 0, repository.ErrInsufficientPoints
	}
	u.Points -= amount
	return u.Points, nil
}

func (f *fakeRepo) GetUserPushToken(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	if u.PushToken == nil {
		return "", nil
	}
	return *u.PushToken, nil
}

func (f *fakeRepo) CreateNotification(_ context.Context, userID int64, title, message string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := model.Notification{
		ID:      int64(len(f.notifications) + 1),
		UserID:  userID,
		Title:   title,
		Message: message,
		Status:  model.NotificationUnread,
	}
	f.notifications = append(f.notifications, n)
	return &n, nil
}

func (f *fakeRepo) CreateOrder(_ context.Context, o *model.Order) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	created := *o
	if o.PointsRedeem > 0 {
		u, ok := f.users[o.UserID]
		if !ok {
			return nil, repository.ErrUserNotFound
		}
		if u.Points < o.PointsRedeem {
			return nil, repository.ErrInsufficientPoints
		}
		u.Points -= o.PointsRedeem
		created.PointsLocked = o.PointsRedeem
		created.PointsAwarded = true
	}

	created.ID = f.nextOrderID
	f.nextOrderID++
	f.orders[created.ID] = &created

	copied := created
	return &copied, nil
}

func (f *fakeRepo) GetUnsettledOrders(_ context.Context, limit int) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Order
	for id := int64(1); id < f.nextOrderID && len(out) < limit; id++ {
		o, ok := f.orders[id]
		if !ok || o.Complete || o.PosOrderID == "" {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeRepo) GetUnsettledOrdersByUser(_ context.Context, userID int64) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Order
	for id := int64(1); id < f.nextOrderID; id++ {
		o, ok := f.orders[id]
		if !ok || o.UserID != userID || o.Complete || o.PosOrderID == "" {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeRepo) SettleOrder(_ context.Context, orderID int64) (*repository.SettlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleCalls++

	o, ok := f.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}

	var res repository.SettlementResult
	if o.PointsAwarded {
		o.Complete = true
		res.AlreadyAwarded = true
		return &res, nil
	}

	u := f.users[o.UserID]
	switch {
	case o.PointsAdd > 0:
		u.Points += o.PointsAdd
		res.PointsCredited = o.PointsAdd
	case o.PointsRedeem > 0:
		if u.Points < o.PointsRedeem {
			return nil, repository.ErrInsufficientPoints
		}
		u.Points -= o.PointsRedeem
		res.PointsDebited = o.PointsRedeem
	}

	o.Complete = true
	o.PointsAwarded = true
	return &res, nil
}

// fakeProvider serves canned POS responses keyed by POS order id.
type fakeProvider struct {
	tokenErr error
	statuses map[string]*pos.OrderStatus
	errs     map[string]error

	mu      sync.Mutex
	fetches int
}

func (p *fakeProvider) FetchToken(context.Context) (string, error) {
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	return "test-token", nil
}

func (p *fakeProvider) FetchOrderStatus(_ context.Context, _, posOrderID string) (*pos.OrderStatus, error) {
	p.mu.Lock()
	p.fetches++
	p.mu.Unlock()

	if err, ok := p.errs[posOrderID]; ok {
		return nil, err
	}
	return p.statuses[posOrderID], nil
}

func (p *fakeProvider) CreateCustomer(context.Context, string, pos.Customer) (string, error) {
	return "", errors.New("not implemented")
}

func (p *fakeProvider) SearchInventory(context.Context, string, []pos.InventoryFilter) ([]pos.InventoryItem, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) SearchItems(context.Context, string) ([]pos.InventoryItem, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) SearchBatches(context.Context, string) ([]pos.Batch, error) {
	return nil, errors.New("not implemented")
}

func newTestService(repo *fakeRepo, provider PosProvider) *Service {
	var registry *ProviderRegistry
	if provider != nil {
		registry = NewProviderRegistry(provider)
	}
	return NewService(repo, registry, nil, nil, nil, Options{})
}

func TestReconcileCreditsCompletedOrderOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1, AllowNotifications: false})
	repo.orders[1] = &model.Order{ID: 1, UserID: 1, BusinessID: 1, PosOrderID: "A100", PointsAdd: 500}
	repo.nextOrderID = 2

	provider := &fakeProvider{statuses: map[string]*pos.OrderStatus{
		"A100": {ID: "A100", Complete: true},
	}}
	svc := newTestService(repo, provider)

	statuses, err := svc.ReconcileAllOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if got := repo.balance(1); got != 500 {
		t.Errorf("expected balance 500 after settlement, got %d", got)
	}

	// A second pass over an already settled order must not change anything.
	if _, err := svc.ReconcileAllOrders(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 500 {
		t.Errorf("expected balance to stay 500 after second pass, got %d", got)
	}
}

func TestReconcileIncompleteOrderUntouched(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1})
	repo.orders[1] = &model.Order{ID: 1, UserID: 1, BusinessID: 1, PosOrderID: "A100", PointsAdd: 500}
	repo.nextOrderID = 2

	provider := &fakeProvider{statuses: map[string]*pos.OrderStatus{
		"A100": {ID: "A100", Complete: false, Status: "in_process"},
	}}
	svc := newTestService(repo, provider)

	if _, err := svc.ReconcileAllOrders(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 0 {
		t.Errorf("expected balance 0 for incomplete order, got %d", got)
	}
	if repo.settleCalls != 0 {
		t.Errorf("expected no settlement for incomplete order, got %d calls", repo.settleCalls)
	}
}

func TestReconcileOrderLifecycle(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1})
	repo.orders[1] = &model.Order{ID: 1, UserID: 1, BusinessID: 1, PosOrderID: "A100", PointsAdd: 50}
	repo.nextOrderID = 2

	provider := &fakeProvider{statuses: map[string]*pos.OrderStatus{
		"A100": {ID: "A100", Complete: false, Status: "in_process"},
	}}
	svc := newTestService(repo, provider)

	// Pass 1: POS reports incomplete, nothing changes.
	if _, err := svc.ReconcileAllOrders(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 0 {
		t.Fatalf("expected balance 0 while pending, got %d", got)
	}

	// Pass 2: the order completes and is settled.
	provider.statuses["A100"] = &pos.OrderStatus{ID: "A100", Complete: true}
	if _, err := svc.ReconcileAllOrders(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 50 {
		t.Fatalf("expected balance 50 after completion, got %d", got)
	}
	if o := repo.orders[1]; !o.Complete || !o.PointsAwarded {
		t.Fatalf("expected order settled, got complete=%v awarded=%v", o.Complete, o.PointsAwarded)
	}

	// Pass 3: settled orders are no longer picked up or re-credited.
	if _, err := svc.ReconcileAllOrders(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 50 {
		t.Errorf("expected balance to stay 50, got %d", got)
	}
}

func TestReconcileFetchFailureDoesNotBlockOthers(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1})
	repo.orders[1] = &model.Order{ID: 1, UserID: 1, BusinessID: 1, PosOrderID: "A100", PointsAdd: 100}
	repo.orders[2] = &model.Order{ID: 2, UserID: 1, BusinessID: 1, PosOrderID: "A200", PointsAdd: 200}
	repo.nextOrderID = 3

	provider := &fakeProvider{
		errs: map[string]error{"A100": pos.ErrFetchFailed},
		statuses: map[string]*pos.OrderStatus{
			"A200": {ID: "A200", Complete: true},
		},
	}
	svc := newTestService(repo, provider)

	statuses, err := svc.ReconcileAllOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if got := repo.balance(1); got != 200 {
		t.Errorf("expected only the fetchable order settled, balance 200, got %d", got)
	}

	// The failed order stays pending for the next pass.
	pending, err := repo.GetUnsettledOrders(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != 1 {
		t.Errorf("expected order 1 still pending, got %+v", pending)
	}
}

func TestReconcileAuthFailureSkipsPass(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1})
	repo.orders[1] = &model.Order{ID: 1, UserID: 1, BusinessID: 1, PosOrderID: "A100", PointsAdd: 500}
	repo.nextOrderID = 2

	provider := &fakeProvider{tokenErr: pos.ErrAuthFailed}
	svc := newTestService(repo, provider)

	statuses, err := svc.ReconcileAllOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected no statuses, got %d", len(statuses))
	}
	if provider.fetches != 0 {
		t.Errorf("expected no status fetches without a token, got %d", provider.fetches)
	}
	if got := repo.balance(1); got != 0 {
		t.Errorf("expected balance untouched, got %d", got)
	}
}

func TestRedeemOrderDebitedAtCreationOnly(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1, Points: 500})
	svc := newTestService(repo, &fakeProvider{statuses: map[string]*pos.OrderStatus{
		"A100": {ID: "A100", Complete: true},
	}})

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:       1,
		PosOrderID:   "A100",
		PointsRedeem: 300,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.PointsAwarded {
		t.Error("expected redeem order marked awarded at creation")
	}
	if got := repo.balance(1); got != 200 {
		t.Fatalf("expected balance 200 after eager debit, got %d", got)
	}

	// Reconciliation flips completion but must not debit a second time.
	if _, err := svc.ReconcileAllOrders(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 200 {
		t.Errorf("expected balance to stay 200 after settlement, got %d", got)
	}
	if o := repo.orders[order.ID]; !o.Complete {
		t.Error("expected order marked complete")
	}
}

func TestReconcileUserOrdersScopedToUser(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1})
	repo.addUser(model.User{ID: 2, BusinessID: 1})
	repo.orders[1] = &model.Order{ID: 1, UserID: 1, BusinessID: 1, PosOrderID: "A100", PointsAdd: 100}
	repo.orders[2] = &model.Order{ID: 2, UserID: 2, BusinessID: 1, PosOrderID: "A200", PointsAdd: 200}
	repo.nextOrderID = 3

	provider := &fakeProvider{statuses: map[string]*pos.OrderStatus{
		"A100": {ID: "A100", Complete: true},
		"A200": {ID: "A200", Complete: true},
	}}
	svc := newTestService(repo, provider)

	if _, err := svc.ReconcileUserOrders(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 100 {
		t.Errorf("expected user 1 balance 100, got %d", got)
	}
	if got := repo.balance(2); got != 0 {
		t.Errorf("expected user 2 untouched, got %d", got)
	}
}

func TestAddPointsFloorsAmount(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1})
	svc := newTestService(repo, nil)

	if _, err := svc.AddPoints(context.Background(), 1, 10.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.balance(1); got != 10 {
		t.Errorf("expected 10.9 floored to 10, got %d", got)
	}
}

func TestAddPointsRejectsNonPositive(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1})
	svc := newTestService(repo, nil)

	for _, amount := range []float64{0, -5, 0.5} {
		if _, err := svc.AddPoints(context.Background(), 1, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if got := repo.balance(1); got != 0 {
		t.Errorf("expected balance untouched, got %d", got)
	}
}

func TestRedeemPointsInsufficientBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1, Points: 100})
	svc := newTestService(repo, nil)

	if _, err := svc.RedeemPoints(context.Background(), 1, 200); !errors.Is(err, repository.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if got := repo.balance(1); got != 100 {
		t.Errorf("expected balance untouched, got %d", got)
	}
}

func TestCreateOrderRejectsConflictingPoints(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1, Points: 100})
	svc := newTestService(repo, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:       1,
		PosOrderID:   "A100",
		PointsAdd:    50,
		PointsRedeem: 50,
	})
	if !errors.Is(err, ErrConflictingPoints) {
		t.Fatalf("expected ErrConflictingPoints, got %v", err)
	}
}

func TestCreateOrderInsufficientBalanceForRedeem(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1, Points: 100})
	svc := newTestService(repo, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:       1,
		PosOrderID:   "A100",
		PointsRedeem: 300,
	})
	if !errors.Is(err, repository.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if got := repo.balance(1); got != 100 {
		t.Errorf("expected balance untouched, got %d", got)
	}
}

func TestSendPushRespectsOptOut(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(model.User{ID: 1, BusinessID: 1, AllowNotifications: false})
	svc := newTestService(repo, nil)

	if _, err := svc.SendPushToUser(context.Background(), 1, "t", "b"); !errors.Is(err, ErrPushUnavailable) {
		t.Fatalf("expected ErrPushUnavailable, got %v", err)
	}
	if len(repo.notifications) != 0 {
		t.Errorf("expected no stored notification for opted-out user, got %d", len(repo.notifications))
	}
}

func TestSendPushStoresNotification(t *testing.T) {
	repo := newFakeRepo()
	token := "device-token"
	repo.addUser(model.User{ID: 1, BusinessID: 1, AllowNotifications: true, PushToken: &token})
	svc := newTestService(repo, nil)

	n, err := svc.SendPushToUser(context.Background(), 1, "Hello", "World")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != model.NotificationUnread {
		t.Errorf("expected unread notification, got %s", n.Status)
	}
	if len(repo.notifications) != 1 {
		t.Errorf("expected 1 stored notification, got %d", len(repo.notifications))
	}
}
