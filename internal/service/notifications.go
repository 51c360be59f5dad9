package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/notify"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
)

// ErrPushUnavailable is returned when the user cannot receive pushes:
// notifications disabled, no device token, or no sender configured.
var ErrPushUnavailable = errors.New("push delivery unavailable")

// SendPushToUser delivers a push notification to the user's device and
// stores a copy so it appears in the in-app notification list. The stored
// copy is written even when delivery fails: the user opted in, so the
// message belongs in their history.
func (s *Service) SendPushToUser(ctx context.Context, userID int64, title, body string) (*model.Notification, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.AllowNotifications {
		return nil, ErrPushUnavailable
	}

	token, err := s.repo.GetUserPushToken(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if s.push != nil && token != "" {
		if _, err := s.push.Send(ctx, token, title, body); err != nil {
			s.logger.Warn("push delivery failed",
				zap.Int64("userID", userID), zap.Error(err))
		}
	}

	return s.repo.CreateNotification(ctx, userID, title, body)
}

// BroadcastPush sends a push notification to every opted-in user of a
// business. Per-user failures are logged and skipped.
func (s *Service) BroadcastPush(ctx context.Context, businessID int64, title, body string) (int, error) {
	users, err := s.repo.GetUsersByBusiness(ctx, businessID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, u := range users {
		if !u.AllowNotifications {
			continue
		}
		if _, err := s.SendPushToUser(ctx, u.ID, title, body); err != nil {
			s.logger.Warn("broadcast push failed",
				zap.Int64("userID", u.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// GetNotificationsByUser lists a user's stored notifications, newest first.
func (s *Service) GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.repo.GetNotificationsByUser(ctx, userID)
}

// DeleteNotification removes one stored notification.
func (s *Service) DeleteNotification(ctx context.Context, id int64) error {
	return s.repo.DeleteNotification(ctx, id)
}

// DeleteNotificationsByUser clears a user's notification list.
func (s *Service) DeleteNotificationsByUser(ctx context.Context, userID int64) error {
	return s.repo.DeleteNotificationsByUser(ctx, userID)
}

// MarkNotificationRead marks one notification as read.
func (s *Service) MarkNotificationRead(ctx context.Context, id int64) error {
	return s.repo.MarkNotificationRead(ctx, id)
}

// MarkAllNotificationsRead marks all of a user's notifications as read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// SendBusinessEmail sends an email on behalf of a business through the
// configured mail provider.
func (s *Service) SendBusinessEmail(ctx context.Context, to, subject, text, html string) error {
	if s.mailer == nil {
		return fmt.Errorf("%w: mailer not configured", ErrPushUnavailable)
	}
	if to == "" || subject == "" {
		return ErrInvalidInput
	}
	return s.mailer.Send(ctx, notify.Email{To: to, Subject: subject, Text: text, HTML: html})
}
