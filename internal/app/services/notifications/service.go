// Package notifications delivers user notifications and fans them out to
// live subscribers.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/logger"
)

// Service persists notifications and pushes them to any live subscribers.
type Service struct {
	store storage.NotificationStore
	log   *logger.Logger

	mu   sync.RWMutex
	subs map[string]map[chan notification.Notification]struct{}
}

// New creates a configured notification service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{
		store: store,
		log:   log,
		subs:  make(map[string]map[chan notification.Notification]struct{}),
	}
}

// Notify persists a notification and pushes it to live subscribers. It never
// returns an error: notification delivery must not fail the caller's
// operation, so failures are logged and swallowed.
func (s *Service) Notify(ctx context.Context, userID string, category notification.Category, title, body, reference string) {
	n := notification.Notification{
		UserID:    userID,
		Category:  category,
		Title:     strings.TrimSpace(title),
		Body:      strings.TrimSpace(body),
		Reference: reference,
	}

	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		s.log.WithError(err).
			WithField("user_id", userID).
			Warn("notification not persisted")
		return
	}
	s.push(created)
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// UnreadCount returns the user's unread notification count.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.store.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.store.MarkAllRead(ctx, userID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// Subscribe registers a live channel for the user. The returned cancel
// function must be called when the subscriber goes away.
func (s *Service) Subscribe(userID string) (<-chan notification.Notification, func()) {
	ch := make(chan notification.Notification, 16)

	s.mu.Lock()
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[chan notification.Notification]struct{})
	}
	s.subs[userID][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if set, ok := s.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(s.subs, userID)
			}
		}
		s.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// push delivers to live subscribers without blocking; slow subscribers drop.
func (s *Service) push(n notification.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subs[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
}
