package feed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/earnhub/platform/internal/app/domain/feed"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage/memory"
)

func testService(store *memory.Store) *Service {
	return New(store, notifications.New(store, nil), nil)
}

func seedAuthor(t *testing.T, store *memory.Store, email, code string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Email: email, Name: "Author", ReferralCode: code,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCreatePost(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	author := seedAuthor(t, store, "a@example.com", "FD1")

	if _, err := svc.CreatePost(ctx, author.ID, "   ", ""); err == nil {
		t.Fatalf("expected empty post to be rejected")
	}
	if _, err := svc.CreatePost(ctx, author.ID, strings.Repeat("x", feed.MaxBodyLength+1), ""); err == nil {
		t.Fatalf("expected oversized post to be rejected")
	}

	// An image-only post is fine.
	if _, err := svc.CreatePost(ctx, author.ID, "", "uploads/pic.jpg"); err != nil {
		t.Fatalf("image post: %v", err)
	}

	p, err := svc.CreatePost(ctx, author.ID, "hello world", "")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if p.Comments != 0 || p.Likes != 0 {
		t.Fatalf("fresh post has counters: %+v", p)
	}

	posts, err := svc.ListPosts(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
}

func TestCommentCounter(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	author := seedAuthor(t, store, "a@example.com", "FD1")
	reader := seedAuthor(t, store, "b@example.com", "FD2")

	p, err := svc.CreatePost(ctx, author.ID, "hello", "")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if _, err := svc.AddComment(ctx, p.ID, reader.ID, ""); err == nil {
		t.Fatalf("expected empty comment to be rejected")
	}
	c, err := svc.AddComment(ctx, p.ID, reader.ID, "nice one")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}

	got, _ := svc.GetPost(ctx, p.ID)
	if got.Comments != 1 {
		t.Fatalf("comment counter wrong: %d", got.Comments)
	}

	if err := svc.DeleteComment(ctx, c.ID, author.ID, false); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	if err := svc.DeleteComment(ctx, c.ID, reader.ID, false); err != nil {
		t.Fatalf("delete own comment: %v", err)
	}
	got, _ = svc.GetPost(ctx, p.ID)
	if got.Comments != 0 {
		t.Fatalf("comment counter not decremented: %d", got.Comments)
	}
}

func TestLikes(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	author := seedAuthor(t, store, "a@example.com", "FD1")
	reader := seedAuthor(t, store, "b@example.com", "FD2")

	p, err := svc.CreatePost(ctx, author.ID, "hello", "")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if err := svc.Like(ctx, p.ID, reader.ID); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := svc.Like(ctx, p.ID, reader.ID); !errors.Is(err, ErrAlreadyLiked) {
		t.Fatalf("expected ErrAlreadyLiked, got %v", err)
	}
	got, _ := svc.GetPost(ctx, p.ID)
	if got.Likes != 1 {
		t.Fatalf("like counter wrong: %d", got.Likes)
	}

	if err := svc.Unlike(ctx, p.ID, reader.ID); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	got, _ = svc.GetPost(ctx, p.ID)
	if got.Likes != 0 {
		t.Fatalf("like counter not decremented: %d", got.Likes)
	}
	if err := svc.Unlike(ctx, p.ID, reader.ID); err == nil {
		t.Fatalf("expected second unlike to report the missing like")
	}
}

func TestDeletePostModeration(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	author := seedAuthor(t, store, "a@example.com", "FD1")
	mod := seedAuthor(t, store, "m@example.com", "FD2")

	p, err := svc.CreatePost(ctx, author.ID, "spam spam", "")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if err := svc.DeletePost(ctx, p.ID, mod.ID, false); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	if err := svc.DeletePost(ctx, p.ID, mod.ID, true); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	if _, err := svc.GetPost(ctx, p.ID); err == nil {
		t.Fatalf("post still readable after delete")
	}

	// The author is told their post was removed.
	notes, err := store.ListNotifications(ctx, author.ID, false, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	found := false
	for _, n := range notes {
		if n.Title == "Post removed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("moderation notice not sent: %+v", notes)
	}
}
