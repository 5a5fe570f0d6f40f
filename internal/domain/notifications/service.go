package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

// Notify fans an event out to every recipient. Delivery is best effort:
// failures are logged and never returned, so a successful state
// transition is never reported as failed because of a notification.
func (s *Service) Notify(ctx context.Context, ev Event) {
	for _, userID := range ev.Recipients {
		if userID == "" {
			continue
		}
		if err := s.store.CreateNotification(ctx, userID, ev.Type, ev.Title, ev.Body, ev.RefID); err != nil {
			slog.Warn("notification persist failed", "type", ev.Type, "user", userID, "err", err)
			continue
		}
		s.email(ctx, userID, ev.Title, ev.Body)
	}
}

func (s *Service) email(ctx context.Context, userID, subject, body string) {
	if s.Mailer == nil {
		return
	}
	to, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "user", userID, "err", err)
		return
	}
	if to == "" {
		return
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, to, subject, body); err != nil {
		slog.Warn("notification email send failed", "user", userID, "err", err)
	}
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllRead(ctx, userID)
}
