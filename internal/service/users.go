package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/notify"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/validation"
)

var (
	// ErrInvalidCredentials is returned when the email, password or business
	// of a login attempt do not match. Handlers map it to 401 without
	// revealing which part failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResetToken is returned for an unknown or expired password
	// reset token.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrInvalidInput is returned when a request is missing required fields
	// or carries malformed values.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	sessionTTL       = 168 * time.Hour
	resetTokenTTL    = time.Hour
	referralBonus    = 200
	premiumDuration  = 365 * 24 * time.Hour
	minPasswordBytes = 8
)

// RegisterInput carries a registration request.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Phone      string
	DOB        string
	Country    string
	BusinessID int64
}

// RegisterUser creates a user account, converts a pending referral into a
// bonus for both sides, and registers the customer with the POS in the
// background.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.BusinessID == 0 {
		return nil, ErrInvalidInput
	}
	if !validation.IsValidEmail(in.Email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordBytes {
		return nil, fmt.Errorf("%w: password too short", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	phone := validation.NormalizePhone(in.Phone)

	user := &model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		DOB:          in.DOB,
		Country:      in.Country,
		Phone:        phone,
		PasswordHash: hash,
		BusinessID:   in.BusinessID,
		Role:         model.RoleCustomer,
	}

	referral := s.findPendingReferral(ctx, in.Email, phone)
	if referral != nil {
		user.ReferredBy = &referral.ReferrerID
	}

	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id

	if referral != nil {
		s.convertReferral(ctx, referral, user)
	}

	s.registerPosCustomer(user)

	return user, nil
}

// findPendingReferral looks up an unconverted referral by email first, then
// by phone. Lookup failures are logged and treated as no referral; a broken
// referral record must not block registration.
func (s *Service) findPendingReferral(ctx context.Context, email, phone string) *model.Referral {
	ref, err := s.repo.FindReferralByEmail(ctx, email)
	if err == nil {
		return ref
	}
	if !errors.Is(err, repository.ErrReferralNotFound) {
		s.logger.Warn("referral lookup by email failed", zap.Error(err))
		return nil
	}

	if phone == "" {
		return nil
	}
	ref, err = s.repo.FindReferralByPhone(ctx, phone)
	if err == nil {
		return ref
	}
	if !errors.Is(err, repository.ErrReferralNotFound) {
		s.logger.Warn("referral lookup by phone failed", zap.Error(err))
	}
	return nil
}

// convertReferral marks the referral converted and credits the signup bonus
// to both parties. Each side is credited against its own business: the
// referrer may belong to a different store than the new user.
func (s *Service) convertReferral(ctx context.Context, ref *model.Referral, user *model.User) {
	if err := s.repo.MarkReferralConverted(ctx, ref.ID); err != nil {
		s.logger.Error("mark referral converted failed", zap.Int64("referralID", ref.ID), zap.Error(err))
		return
	}

	if _, err := s.repo.CreditPoints(ctx, user.ID, user.BusinessID, referralBonus); err != nil {
		s.logger.Error("referral bonus credit failed",
			zap.Int64("userID", user.ID), zap.Error(err))
	}

	referrer, err := s.repo.GetUserByID(ctx, ref.ReferrerID)
	if err != nil {
		s.logger.Error("referrer lookup failed", zap.Int64("referrerID", ref.ReferrerID), zap.Error(err))
		return
	}
	if _, err := s.repo.CreditPoints(ctx, referrer.ID, referrer.BusinessID, referralBonus); err != nil {
		s.logger.Error("referral bonus credit failed",
			zap.Int64("userID", referrer.ID), zap.Error(err))
		return
	}

	title := "Referral Bonus! 🎉"
	body := fmt.Sprintf("Your referral joined! You've earned %d bonus points.", referralBonus)
	if _, err := s.SendPushToUser(ctx, referrer.ID, title, body); err != nil {
		s.logger.Warn("referral bonus push failed", zap.Int64("userID", referrer.ID), zap.Error(err))
	}
}

// registerPosCustomer creates the customer record at the POS without holding
// up the registration response. The detached context outlives the request.
func (s *Service) registerPosCustomer(user *model.User) {
	if s.providers == nil {
		return
	}
	provider := s.providers.For(user.BusinessID)
	if provider == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		token, err := provider.FetchToken(ctx)
		if err != nil {
			s.logger.Warn("pos customer registration skipped, auth failed",
				zap.Int64("userID", user.ID), zap.Error(err))
			return
		}

		customerID, err := provider.CreateCustomer(ctx, token, pos.Customer{
			NameFirst:   user.FirstName,
			NameLast:    user.LastName,
			Phone:       user.Phone,
			Email:       user.Email,
			DateOfBirth: validation.TrimDateOnly(user.DOB),
		})
		if err != nil {
			s.logger.Warn("pos customer registration failed",
				zap.Int64("userID", user.ID), zap.Error(err))
			return
		}

		if err := s.repo.SetAlleavesCustomerID(ctx, user.ID, customerID); err != nil {
			s.logger.Error("store pos customer id failed",
				zap.Int64("userID", user.ID), zap.Error(err))
		}
	}()
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User    *model.User
	Session *model.Session
}

// Login verifies the email, password and business name of a credential set
// and returns an active session, reusing an unexpired one when present.
func (s *Service) Login(ctx context.Context, email, password, businessName string, businessID int64) (*LoginResult, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if businessID == 0 {
		businessID = user.BusinessID
	}
	business, err := s.repo.GetBusinessByNameAndID(ctx, businessID, businessName)
	if err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	session, err := s.repo.FindActiveSessionForUser(ctx, user.ID, business.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, err
		}
		session, err = s.createSession(ctx, user.ID, business.ID)
		if err != nil {
			return nil, err
		}
	}

	return &LoginResult{User: user, Session: session}, nil
}

func (s *Service) createSession(ctx context.Context, userID, businessID int64) (*model.Session, error) {
	sessionID := uuid.NewString()
	now := time.Now()
	expires := now.Add(sessionTTL)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sessionId": sessionID,
		"userId":    userID,
		"exp":       expires.Unix(),
	}).SignedString([]byte(s.opts.SessionSecret))
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	session := &model.Session{
		SessionID:    sessionID,
		SessionToken: token,
		UserID:       userID,
		BusinessID:   businessID,
		CreatedAt:    now,
		ExpiresAt:    expires,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Logout deletes the session identified by the bearer credential.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

// SendPasswordReset issues a reset token and emails the deep link. An
// unknown email returns success so the endpoint does not confirm which
// addresses have accounts.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.repo.SetResetToken(ctx, user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	if s.mailer == nil {
		s.logger.Warn("mailer not configured, reset email not sent", zap.Int64("userID", user.ID))
		return nil
	}

	link := fmt.Sprintf("%s/api/users/redirect?token=%s", s.opts.PublicBaseURL, token)
	msg := notify.Email{
		To:      user.Email,
		Subject: "Reset Your Password",
		Text:    fmt.Sprintf("To reset your password, open this link: %s\nThe link expires in one hour.", link),
		HTML: fmt.Sprintf(`<p>We received a request to reset your password.</p>
<p><a href="%s">Reset your password</a></p>
<p>The link expires in one hour. If you did not request this, you can ignore this email.</p>`, link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetRedirectURL builds the app deep link a reset email's web link
// forwards to.
func (s *Service) ResetRedirectURL(token string) string {
	return fmt.Sprintf("%s://reset-password?token=%s", s.opts.DeepLinkScheme, token)
}

// ValidateResetToken reports whether a reset token is known and unexpired.
func (s *Service) ValidateResetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	if _, err := s.repo.GetUserByResetToken(ctx, token); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

// ResetPassword sets a new password for the user holding the token and
// clears the token so it cannot be replayed.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordBytes {
		return fmt.Errorf("%w: password too short", ErrInvalidInput)
	}

	user, err := s.repo.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, user.ID, hash)
}

// GetUserByID returns a single user.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// GetUserByEmail returns the user with the given email within a business.
func (s *Service) GetUserByEmail(ctx context.Context, email string, businessID int64) (*model.User, error) {
	return s.repo.GetUserByEmail(ctx, email, businessID)
}

// GetUserByPhone matches on the last ten digits of the phone number so
// formatting and country prefixes do not matter.
func (s *Service) GetUserByPhone(ctx context.Context, phone string, businessID int64) (*model.User, error) {
	normalized := validation.NormalizePhone(phone)
	if normalized == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.GetUserByPhone(ctx, phone, normalized, businessID)
}

// LookupUser finds a customer by email or phone within a business, for
// point-of-sale checkout lookups where either identifier may be on file.
func (s *Service) LookupUser(ctx context.Context, email, phone string, businessID int64) (*model.User, error) {
	if email == "" && phone == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.FindUserByEmailOrPhone(ctx, email, validation.NormalizePhone(phone), businessID)
}

// GetUsersByBusiness lists the users of one business.
func (s *Service) GetUsersByBusiness(ctx context.Context, businessID int64) ([]model.User, error) {
	return s.repo.GetUsersByBusiness(ctx, businessID)
}

// DeleteUser removes a user account.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// UpdateUserInput carries a partial profile update. Nil fields are left
// unchanged. Points are deliberately absent: balances move only through
// the ledger operations.
type UpdateUserInput struct {
	FirstName          *string
	LastName           *string
	Email              *string
	DOB                *string
	Country            *string
	Phone              *string
	AllowNotifications *bool
}

// UpdateUser applies a partial profile update and returns the updated user.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (*model.User, error) {
	if in.Email != nil && !validation.IsValidEmail(*in.Email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}

	upd := repository.UserUpdate{
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Email:              in.Email,
		DOB:                in.DOB,
		Country:            in.Country,
		AllowNotifications: in.AllowNotifications,
	}
	if in.Phone != nil {
		normalized := validation.NormalizePhone(*in.Phone)
		upd.Phone = &normalized
	}
	return s.repo.UpdateUser(ctx, id, upd)
}

// UpdatePushToken stores the device push token for the user with the given
// email.
func (s *Service) UpdatePushToken(ctx context.Context, email, token string) error {
	if email == "" || token == "" {
		return ErrInvalidInput
	}
	return s.repo.UpdateUserPushToken(ctx, email, token)
}

// GetPushToken returns the user's stored device push token, empty when none
// is registered.
func (s *Service) GetPushToken(ctx context.Context, userID int64) (string, error) {
	return s.repo.GetUserPushToken(ctx, userID)
}

// ToggleNotifications flips the user's push notification opt-in and returns
// the new value.
func (s *Service) ToggleNotifications(ctx context.Context, userID int64) (bool, error) {
	return s.repo.ToggleNotifications(ctx, userID)
}

// UpgradeMembership grants the user premium status for one year.
func (s *Service) UpgradeMembership(ctx context.Context, userID int64) error {
	start := time.Now()
	end := start.Add(premiumDuration)
	return s.repo.SetPremium(ctx, userID, true, &start, &end)
}

// DowngradeMembership revokes the user's premium status.
func (s *Service) DowngradeMembership(ctx context.Context, userID int64) error {
	return s.repo.SetPremium(ctx, userID, false, nil, nil)
}

// CreateReferral records an invitation from a user to an email or phone
// contact.
func (s *Service) CreateReferral(ctx context.Context, referrerID int64, email, phone string) (*model.Referral, error) {
	if email == "" && phone == "" {
		return nil, ErrInvalidInput
	}
	if email != "" && !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return s.repo.CreateReferral(ctx, referrerID, email, validation.NormalizePhone(phone))
}

// GetReferralsByUser lists a user's referrals and their conversion state.
func (s *Service) GetReferralsByUser(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	return s.repo.GetReferralsByUser(ctx, referrerID)
}
