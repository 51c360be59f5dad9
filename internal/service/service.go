// Package service implements the business logic of the dispensary loyalty service.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/notify"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
)

// ErrInvalidAmount is returned for non-positive point amounts.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// Repository describes the data access contract used by the service.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string, businessID int64) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone, normalized string, businessID int64) (*model.User, error)
	FindUserByEmailOrPhone(ctx context.Context, email, phone string, businessID int64) (*model.User, error)
	GetUsersByBusiness(ctx context.Context, businessID int64) ([]model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UpdateUser(ctx context.Context, id int64, upd repository.UserUpdate) (*model.User, error)
	CreditPoints(ctx context.Context, userID, businessID, amount int64) (int64, error)
	DebitPoints(ctx context.Context, userID, businessID, amount int64) (int64, error)
	GetUserPushToken(ctx context.Context, userID int64) (string, error)
	UpdateUserPushToken(ctx context.Context, email, token string) error
	SetAlleavesCustomerID(ctx context.Context, userID int64, customerID string) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash []byte) error
	SetResetToken(ctx context.Context, userID int64, token string, expiry time.Time) error
	GetUserByResetToken(ctx context.Context, token string) (*model.User, error)
	ToggleNotifications(ctx context.Context, userID int64) (bool, error)
	SetPremium(ctx context.Context, userID int64, premium bool, start, end *time.Time) error

	CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetOrdersByBusiness(ctx context.Context, businessID int64) ([]model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetUnsettledOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetUnsettledOrders(ctx context.Context, limit int) ([]model.Order, error)
	SettleOrder(ctx context.Context, orderID int64) (*repository.SettlementResult, error)

	CreateBusiness(ctx context.Context, name string) (*model.Business, error)
	GetAllBusinesses(ctx context.Context) ([]model.Business, error)
	GetBusinessByID(ctx context.Context, id int64) (*model.Business, error)
	GetBusinessByNameAndID(ctx context.Context, id int64, name string) (*model.Business, error)
	DeleteBusiness(ctx context.Context, id int64) error
	UpdateBusiness(ctx context.Context, id int64, upd repository.BusinessUpdate) (*model.Business, error)

	CreateReferral(ctx context.Context, referrerID int64, email, phone string) (*model.Referral, error)
	FindReferralByEmail(ctx context.Context, email string) (*model.Referral, error)
	FindReferralByPhone(ctx context.Context, phone string) (*model.Referral, error)
	MarkReferralConverted(ctx context.Context, id int64) error
	GetReferralsByUser(ctx context.Context, referrerID int64) ([]model.Referral, error)

	CreateSession(ctx context.Context, s *model.Session) error
	GetActiveSession(ctx context.Context, sessionID string) (*model.Session, error)
	FindActiveSessionForUser(ctx context.Context, userID, businessID int64) (*model.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	CreateNotification(ctx context.Context, userID int64, title, message string) (*model.Notification, error)
	GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	DeleteNotification(ctx context.Context, id int64) error
	DeleteNotificationsByUser(ctx context.Context, userID int64) error
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
}

// OrderStatusProvider is the POS capability the reconciliation engine
// depends on. One implementation exists per POS integration; the registry
// selects the right one for a business.
type OrderStatusProvider interface {
	FetchToken(ctx context.Context) (string, error)
	FetchOrderStatus(ctx context.Context, token, posOrderID string) (*pos.OrderStatus, error)
}

// PosProvider is the full POS integration surface.
type PosProvider interface {
	OrderStatusProvider
	CreateCustomer(ctx context.Context, token string, cust pos.Customer) (string, error)
	SearchInventory(ctx context.Context, token string, filters []pos.InventoryFilter) ([]pos.InventoryItem, error)
	SearchItems(ctx context.Context, token string) ([]pos.InventoryItem, error)
	SearchBatches(ctx context.Context, token string) ([]pos.Batch, error)
}

// ProviderRegistry maps businesses to their POS integration, falling back
// to a default provider.
type ProviderRegistry struct {
	def        PosProvider
	byBusiness map[int64]PosProvider
}

// NewProviderRegistry creates a registry with the given default provider.
func NewProviderRegistry(def PosProvider) *ProviderRegistry {
	return &ProviderRegistry{
		def:        def,
		byBusiness: make(map[int64]PosProvider),
	}
}

// Register binds a business to a specific POS provider.
func (pr *ProviderRegistry) Register(businessID int64, p PosProvider) {
	pr.byBusiness[businessID] = p
}

// For returns the POS provider configured for a business.
func (pr *ProviderRegistry) For(businessID int64) PosProvider {
	if p, ok := pr.byBusiness[businessID]; ok {
		return p
	}
	return pr.def
}

// PushSender delivers a push notification to a device token.
type PushSender interface {
	Send(ctx context.Context, token, title, body string) (string, error)
}

// MailSender delivers a single email.
type MailSender interface {
	Send(ctx context.Context, e notify.Email) error
}

// Options carries service-level settings.
type Options struct {
	SessionSecret  string
	PublicBaseURL  string
	DeepLinkScheme string
}

// Service contains the business logic of the dispensary loyalty service.
type Service struct {
	repo      Repository
	providers *ProviderRegistry
	push      PushSender
	mailer    MailSender
	logger    *zap.Logger
	opts      Options
}

// NewService creates a service. The push and mail senders may be nil, in
// which case those side effects are skipped.
func NewService(repo Repository, providers *ProviderRegistry, push PushSender, mailer MailSender, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		providers: providers,
		push:      push,
		mailer:    mailer,
		logger:    logger,
		opts:      opts,
	}
}

// Close releases the service's resources.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// normalizeAmount floors a point amount and validates the result is positive.
// Flooring happens before validation so a fractional amount below one is
// rejected rather than silently coerced.
func normalizeAmount(amount float64) (int64, error) {
	floored := int64(math.Floor(amount))
	if floored <= 0 {
		return 0, ErrInvalidAmount
	}
	return floored, nil
}

// AddPoints credits loyalty points to a user and sends a best-effort push
// notification about the reward.
func (s *Service) AddPoints(ctx context.Context, userID int64, amount float64) (int64, error) {
	applied, err := s.creditPoints(ctx, userID, amount)
	if err != nil {
		return 0, err
	}

	title := "You've Earned Points! 🎉"
	body := fmt.Sprintf("Congrats! You've just received %d points! Keep earning rewards.", applied)
	if _, err := s.SendPushToUser(ctx, userID, title, body); err != nil {
		s.logger.Warn("points reward push failed", zap.Int64("userID", userID), zap.Error(err))
	}

	return applied, nil
}

// RedeemPoints debits loyalty points from a user.
func (s *Service) RedeemPoints(ctx context.Context, userID int64, amount float64) (int64, error) {
	normalized, err := normalizeAmount(amount)
	if err != nil {
		return 0, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	return s.repo.DebitPoints(ctx, userID, user.BusinessID, normalized)
}

func (s *Service) creditPoints(ctx context.Context, userID int64, amount float64) (int64, error) {
	normalized, err := normalizeAmount(amount)
	if err != nil {
		return 0, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	return s.repo.CreditPoints(ctx, userID, user.BusinessID, normalized)
}
