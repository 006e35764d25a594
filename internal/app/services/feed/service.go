// Package feed manages the community post stream.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/earnhub/platform/internal/app/domain/feed"
	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrNotAuthor    = errors.New("not the author")
	ErrAlreadyLiked = errors.New("post already liked")
)

// Service manages posts, comments and likes.
type Service struct {
	store    storage.FeedStore
	notifier *notifications.Service
	log      *logger.Logger
}

// New creates a configured feed service.
func New(store storage.FeedStore, notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("feed")
	}
	return &Service{store: store, notifier: notifier, log: log}
}

// CreatePost publishes a post.
func (s *Service) CreatePost(ctx context.Context, userID, body, imageKey string) (feed.Post, error) {
	body = strings.TrimSpace(body)
	if body == "" && imageKey == "" {
		return feed.Post{}, fmt.Errorf("post body is required")
	}
	if len(body) > feed.MaxBodyLength {
		return feed.Post{}, fmt.Errorf("post body exceeds %d characters", feed.MaxBodyLength)
	}
	p, err := s.store.CreatePost(ctx, feed.Post{
		UserID:   userID,
		Body:     body,
		ImageKey: imageKey,
	})
	if err != nil {
		return feed.Post{}, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// GetPost returns one post.
func (s *Service) GetPost(ctx context.Context, id string) (feed.Post, error) {
	return s.store.GetPost(ctx, id)
}

// ListPosts returns the feed, newest first.
func (s *Service) ListPosts(ctx context.Context, limit int) ([]feed.Post, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListPosts(ctx, limit)
}

// DeletePost removes a post. Authors delete their own; moderators delete any.
func (s *Service) DeletePost(ctx context.Context, id, actorID string, moderator bool) error {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if p.UserID != actorID && !moderator {
		return ErrNotAuthor
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	if moderator && p.UserID != actorID {
		s.notifier.Notify(ctx, p.UserID, notification.CategorySystem,
			"Post removed", "A moderator removed one of your posts.", id)
	}
	return nil
}

// AddComment replies to a post.
func (s *Service) AddComment(ctx context.Context, postID, userID, body string) (feed.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return feed.Comment{}, fmt.Errorf("comment body is required")
	}
	if len(body) > feed.MaxBodyLength {
		return feed.Comment{}, fmt.Errorf("comment body exceeds %d characters", feed.MaxBodyLength)
	}
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return feed.Comment{}, err
	}
	c, err := s.store.CreateComment(ctx, feed.Comment{
		PostID: postID,
		UserID: userID,
		Body:   body,
	})
	if err != nil {
		return feed.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	if p.UserID != userID {
		s.notifier.Notify(ctx, p.UserID, notification.CategorySystem,
			"New comment", "Someone commented on your post.", postID)
	}
	return c, nil
}

// ListComments returns a post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, postID string, limit int) ([]feed.Comment, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return s.store.ListComments(ctx, postID, limit)
}

// DeleteComment removes a comment. Authors delete their own; moderators
// delete any.
func (s *Service) DeleteComment(ctx context.Context, id, actorID string, moderator bool) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != actorID && !moderator {
		return ErrNotAuthor
	}
	return s.store.DeleteComment(ctx, id)
}

// Like records the user's like. Liking twice fails.
func (s *Service) Like(ctx context.Context, postID, userID string) error {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return err
	}
	if err := s.store.AddLike(ctx, feed.Like{PostID: postID, UserID: userID}); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrAlreadyLiked
		}
		return err
	}
	return nil
}

// Unlike removes the user's like, if any.
func (s *Service) Unlike(ctx context.Context, postID, userID string) error {
	return s.store.RemoveLike(ctx, postID, userID)
}
